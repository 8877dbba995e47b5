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
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/civicdesk/triage/internal/models"
)

// DefaultSQLitePath is used when no path is configured.
const DefaultSQLitePath = "./data/triage.db"

// timeLayout is fixed-width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite stores complaints in a local SQLite file. Timestamps are kept as
// UTC text.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		path = DefaultSQLitePath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer avoids SQLITE_BUSY under the HTTP server.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure complaint schema: %w", err)
	}
	slog.Info("complaint store initialised", "driver", "sqlite", "path", path)
	return s, nil
}

func (s *SQLite) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS complaints (
		id          TEXT PRIMARY KEY,
		message_id  TEXT NOT NULL,
		source      TEXT NOT NULL DEFAULT '',
		extracted   TEXT NOT NULL,
		attachments TEXT NOT NULL DEFAULT '[]',
		risk_score  REAL NOT NULL DEFAULT 0,
		severity    TEXT NOT NULL DEFAULT '',
		priority    TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'open',
		created_at  TEXT NOT NULL,
		resolved_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_complaints_message ON complaints(message_id);
	CREATE INDEX IF NOT EXISTS idx_complaints_status ON complaints(status);
	CREATE INDEX IF NOT EXISTS idx_complaints_risk ON complaints(risk_score);
	`)
	return err
}

const sqliteColumns = `id, message_id, source, extracted, attachments,
		risk_score, severity, priority, status, created_at, resolved_at`

// ExistsByMessageID reports whether a complaint references messageID.
func (s *SQLite) ExistsByMessageID(ctx context.Context, messageID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM complaints WHERE message_id = ? LIMIT 1`, messageID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByMessageID returns the oldest complaint for messageID.
func (s *SQLite) GetByMessageID(ctx context.Context, messageID string) (*models.Complaint, error) {
	r := s.db.QueryRowContext(ctx, `
		SELECT `+sqliteColumns+`
		FROM complaints
		WHERE message_id = ?
		ORDER BY created_at
		LIMIT 1`, messageID)
	return scanSQLite(r)
}

// Create inserts a new complaint.
func (s *SQLite) Create(ctx context.Context, c *models.Complaint) error {
	if err := validateNew(c); err != nil {
		return err
	}
	r, err := toRow(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO complaints
			(id, message_id, source, extracted, attachments,
			 risk_score, severity, priority, status, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.MessageID, r.Source, string(r.Extracted), string(r.Attachments),
		r.RiskScore, r.Severity, r.Priority, r.Status,
		formatTime(r.CreatedAt), formatTimePtr(r.ResolvedAt))
	if err != nil {
		return fmt.Errorf("insert complaint %s: %w", c.ID, err)
	}
	return nil
}

// Get retrieves a complaint by ID.
func (s *SQLite) Get(ctx context.Context, id string) (*models.Complaint, error) {
	r := s.db.QueryRowContext(ctx, `
		SELECT `+sqliteColumns+`
		FROM complaints
		WHERE id = ?`, id)
	return scanSQLite(r)
}

// List returns complaints ordered by risk score descending.
func (s *SQLite) List(ctx context.Context, opts ListOptions) ([]models.Complaint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteColumns+`
		FROM complaints
		WHERE (?1 = '' OR status = ?1)
		ORDER BY risk_score DESC, created_at DESC
		LIMIT ?2`, string(opts.Status), opts.limit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Complaint{}
	for rows.Next() {
		c, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Resolve sets a complaint's status to closed.
func (s *SQLite) Resolve(ctx context.Context, id string, at time.Time) (*models.Complaint, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE complaints
		SET status = 'closed', resolved_at = COALESCE(resolved_at, ?)
		WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return nil, fmt.Errorf("resolve complaint %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Ping checks the database handle.
func (s *SQLite) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(sc scanner) (*models.Complaint, error) {
	var (
		r               row
		extracted, atts string
		createdAt       string
		resolvedAt      sql.NullString
	)
	err := sc.Scan(
		&r.ID, &r.MessageID, &r.Source, &extracted, &atts,
		&r.RiskScore, &r.Severity, &r.Priority, &r.Status, &createdAt, &resolvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	r.Extracted = []byte(extracted)
	r.Attachments = []byte(atts)
	if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", r.ID, err)
	}
	if resolvedAt.Valid && resolvedAt.String != "" {
		t, err := time.Parse(timeLayout, resolvedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse resolved_at for %s: %w", r.ID, err)
		}
		r.ResolvedAt = &t
	}
	return r.complaint()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
