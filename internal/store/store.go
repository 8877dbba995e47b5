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

// Package store persists complaints. Postgres is the production backend;
// SQLite serves single-node deployments and tests.
//
// The message_id column is indexed but deliberately not unique: the
// ingestion dedup check is the only guard against a second complaint for
// the same message.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicdesk/triage/internal/models"
)

// ErrNotFound is returned when no complaint matches.
var ErrNotFound = errors.New("complaint not found")

// Store is the complaint persistence contract.
type Store interface {
	// ExistsByMessageID reports whether any complaint references messageID.
	ExistsByMessageID(ctx context.Context, messageID string) (bool, error)
	// GetByMessageID returns the oldest complaint for messageID.
	GetByMessageID(ctx context.Context, messageID string) (*models.Complaint, error)
	Create(ctx context.Context, c *models.Complaint) error
	Get(ctx context.Context, id string) (*models.Complaint, error)
	// List returns complaints ordered by risk score, highest first.
	List(ctx context.Context, opts ListOptions) ([]models.Complaint, error)
	// Resolve closes a complaint. Resolving a closed complaint keeps its
	// original resolution time.
	Resolve(ctx context.Context, id string, at time.Time) (*models.Complaint, error)
	Ping(ctx context.Context) error
	Close() error
}

// ListOptions filters List.
type ListOptions struct {
	Status models.Status // empty means any
	Limit  int           // <= 0 means DefaultListLimit
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

func (o ListOptions) limit() int {
	switch {
	case o.Limit <= 0:
		return DefaultListLimit
	case o.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return o.Limit
	}
}

// Open connects to the backend named by driver ("postgres" or "sqlite")
// and ensures the schema exists.
func Open(ctx context.Context, driver, url string) (Store, error) {
	switch driver {
	case "postgres", "postgresql", "":
		if url == "" {
			return nil, fmt.Errorf("postgres storage requires a database URL")
		}
		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("create postgres pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		s, err := NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil
	case "sqlite":
		return NewSQLite(ctx, url)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// row is the flattened column form shared by both backends.
type row struct {
	ID          string
	MessageID   string
	Source      string
	Extracted   []byte
	Attachments []byte
	RiskScore   float64
	Severity    string
	Priority    string
	Status      string
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

func toRow(c *models.Complaint) (row, error) {
	extracted, err := json.Marshal(c.Extracted)
	if err != nil {
		return row{}, fmt.Errorf("marshal extracted fields: %w", err)
	}
	atts := c.Attachments
	if atts == nil {
		atts = []models.Attachment{}
	}
	attachments, err := json.Marshal(atts)
	if err != nil {
		return row{}, fmt.Errorf("marshal attachments: %w", err)
	}
	status := c.Status
	if status == "" {
		status = models.StatusOpen
	}
	return row{
		ID:          c.ID,
		MessageID:   c.MessageID,
		Source:      c.Source,
		Extracted:   extracted,
		Attachments: attachments,
		RiskScore:   c.Risk.Score,
		Severity:    c.Risk.Severity,
		Priority:    c.Risk.Priority,
		Status:      string(status),
		CreatedAt:   c.CreatedAt.UTC(),
		ResolvedAt:  c.ResolvedAt,
	}, nil
}

func (r row) complaint() (*models.Complaint, error) {
	c := &models.Complaint{
		ID:        r.ID,
		MessageID: r.MessageID,
		Source:    r.Source,
		Risk: models.RiskAnalysis{
			Score:    r.RiskScore,
			Severity: r.Severity,
			Priority: r.Priority,
		},
		Status:     models.Status(r.Status),
		CreatedAt:  r.CreatedAt.UTC(),
		ResolvedAt: r.ResolvedAt,
	}
	if c.ResolvedAt != nil {
		t := c.ResolvedAt.UTC()
		c.ResolvedAt = &t
	}
	if err := json.Unmarshal(r.Extracted, &c.Extracted); err != nil {
		return nil, fmt.Errorf("decode extracted fields for %s: %w", r.ID, err)
	}
	if err := json.Unmarshal(r.Attachments, &c.Attachments); err != nil {
		return nil, fmt.Errorf("decode attachments for %s: %w", r.ID, err)
	}
	if c.Attachments == nil {
		c.Attachments = []models.Attachment{}
	}
	return c, nil
}

func validateNew(c *models.Complaint) error {
	if c == nil {
		return errors.New("nil complaint")
	}
	if c.ID == "" {
		return errors.New("complaint id is required")
	}
	if c.MessageID == "" {
		return errors.New("complaint message id is required")
	}
	if c.Status != "" && !c.Status.Valid() {
		return fmt.Errorf("invalid complaint status %q", c.Status)
	}
	return nil
}
