// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicdesk/triage/internal/models"
)

// Postgres stores complaints in a Postgres table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a complaint store backed by the given pool.
// It ensures the complaints table exists on creation.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	s := &Postgres{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure complaint schema: %w", err)
	}
	slog.Info("complaint store initialised", "driver", "postgres")
	return s, nil
}

func (s *Postgres) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS complaints (
			id           TEXT PRIMARY KEY,
			message_id   TEXT NOT NULL,
			source       TEXT NOT NULL DEFAULT '',
			extracted    JSONB NOT NULL,
			attachments  JSONB NOT NULL DEFAULT '[]',
			risk_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
			severity     TEXT NOT NULL DEFAULT '',
			priority     TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'open',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at  TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_complaints_message ON complaints(message_id);
		CREATE INDEX IF NOT EXISTS idx_complaints_status ON complaints(status);
		CREATE INDEX IF NOT EXISTS idx_complaints_risk ON complaints(risk_score DESC);
	`)
	return err
}

const pgColumns = `id, message_id, source, extracted, attachments,
		       risk_score, severity, priority, status, created_at, resolved_at`

// ExistsByMessageID reports whether a complaint references messageID.
func (s *Postgres) ExistsByMessageID(ctx context.Context, messageID string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, `
		SELECT 1 FROM complaints WHERE message_id = $1 LIMIT 1
	`, messageID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByMessageID returns the oldest complaint for messageID.
func (s *Postgres) GetByMessageID(ctx context.Context, messageID string) (*models.Complaint, error) {
	r := s.pool.QueryRow(ctx, `
		SELECT `+pgColumns+`
		FROM complaints
		WHERE message_id = $1
		ORDER BY created_at
		LIMIT 1
	`, messageID)
	return scanComplaint(r)
}

// Create inserts a new complaint.
func (s *Postgres) Create(ctx context.Context, c *models.Complaint) error {
	if err := validateNew(c); err != nil {
		return err
	}
	r, err := toRow(c)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO complaints
			(id, message_id, source, extracted, attachments,
			 risk_score, severity, priority, status, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, r.ID, r.MessageID, r.Source, string(r.Extracted), string(r.Attachments),
		r.RiskScore, r.Severity, r.Priority, r.Status, r.CreatedAt, r.ResolvedAt)
	if err != nil {
		return fmt.Errorf("insert complaint %s: %w", c.ID, err)
	}
	return nil
}

// Get retrieves a complaint by ID.
func (s *Postgres) Get(ctx context.Context, id string) (*models.Complaint, error) {
	r := s.pool.QueryRow(ctx, `
		SELECT `+pgColumns+`
		FROM complaints
		WHERE id = $1
	`, id)
	return scanComplaint(r)
}

// List returns complaints ordered by risk score descending.
func (s *Postgres) List(ctx context.Context, opts ListOptions) ([]models.Complaint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgColumns+`
		FROM complaints
		WHERE ($1 = '' OR status = $1)
		ORDER BY risk_score DESC, created_at DESC
		LIMIT $2
	`, string(opts.Status), opts.limit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectComplaints(rows)
}

// Resolve sets a complaint's status to closed.
func (s *Postgres) Resolve(ctx context.Context, id string, at time.Time) (*models.Complaint, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE complaints
		SET status = 'closed', resolved_at = COALESCE(resolved_at, $2)
		WHERE id = $1
	`, id, at.UTC())
	if err != nil {
		return nil, fmt.Errorf("resolve complaint %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Ping checks the database connection.
func (s *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

// scanComplaint scans a single row into a Complaint.
func scanComplaint(r pgx.Row) (*models.Complaint, error) {
	var rr row
	err := r.Scan(
		&rr.ID, &rr.MessageID, &rr.Source, &rr.Extracted, &rr.Attachments,
		&rr.RiskScore, &rr.Severity, &rr.Priority, &rr.Status, &rr.CreatedAt, &rr.ResolvedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rr.complaint()
}

// collectComplaints scans multiple rows into a slice of Complaints.
func collectComplaints(rows pgx.Rows) ([]models.Complaint, error) {
	out := []models.Complaint{}
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
