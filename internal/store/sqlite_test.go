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
	"path/filepath"
	"testing"
	"time"

	"github.com/civicdesk/triage/internal/models"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "triage.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func complaint(id, messageID string, score float64, created time.Time) *models.Complaint {
	return &models.Complaint{
		ID:        id,
		MessageID: messageID,
		Source:    "gmail",
		Extracted: models.Extracted{
			Subject:        "Pothole on 5th",
			Complaint:      "Large pothole near the school",
			Sender:         "Asha",
			Location:       "Zone 3",
			PopulationUsed: 800,
			ContentType:    models.ContentTypePDF,
		},
		Attachments: []models.Attachment{{Filename: "report.pdf", Size: 2048}},
		Risk:        models.RiskAnalysis{Score: score, Severity: "Low", Priority: "Medium"},
		CreatedAt:   created,
	}
}

func TestSQLite_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC)

	if err := s.Create(ctx, complaint("c1", "m1", 12.5, created)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.MessageID != "m1" || got.Source != "gmail" {
		t.Errorf("got %+v", got)
	}
	if got.Status != models.StatusOpen {
		t.Errorf("Status = %q, want open", got.Status)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if got.Extracted.Location != "Zone 3" || got.Extracted.PopulationUsed != 800 {
		t.Errorf("Extracted = %+v", got.Extracted)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Filename != "report.pdf" {
		t.Errorf("Attachments = %+v", got.Attachments)
	}
	if got.Risk.Score != 12.5 {
		t.Errorf("Risk = %+v", got.Risk)
	}
}

func TestSQLite_ExistsByMessageID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	exists, err := s.ExistsByMessageID(ctx, "m1")
	if err != nil || exists {
		t.Fatalf("before create: exists=%v err=%v", exists, err)
	}

	if err := s.Create(ctx, complaint("c1", "m1", 1, time.Now())); err != nil {
		t.Fatalf("Create: %v", err)
	}

	exists, err = s.ExistsByMessageID(ctx, "m1")
	if err != nil || !exists {
		t.Fatalf("after create: exists=%v err=%v", exists, err)
	}

	got, err := s.GetByMessageID(ctx, "m1")
	if err != nil || got.ID != "c1" {
		t.Fatalf("GetByMessageID = %+v, %v", got, err)
	}
}

func TestSQLite_GetMissing(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetByMessageID(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByMessageID err = %v, want ErrNotFound", err)
	}
}

func TestSQLite_ListOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, c := range []*models.Complaint{
		complaint("low", "m1", 5, base),
		complaint("high", "m2", 90, base.Add(time.Minute)),
		complaint("mid", "m3", 50, base.Add(2*time.Minute)),
	} {
		if err := s.Create(ctx, c); err != nil {
			t.Fatalf("Create %s: %v", c.ID, err)
		}
	}
	if _, err := s.Resolve(ctx, "mid", base.Add(time.Hour)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	all, err := s.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var ids []string
	for _, c := range all {
		ids = append(ids, c.ID)
	}
	if len(ids) != 3 || ids[0] != "high" || ids[1] != "mid" || ids[2] != "low" {
		t.Errorf("order = %v, want [high mid low]", ids)
	}

	open, err := s.List(ctx, ListOptions{Status: models.StatusOpen})
	if err != nil {
		t.Fatalf("List open: %v", err)
	}
	if len(open) != 2 {
		t.Errorf("open count = %d, want 2", len(open))
	}

	limited, err := s.List(ctx, ListOptions{Limit: 1})
	if err != nil {
		t.Fatalf("List limit: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "high" {
		t.Errorf("limited = %+v", limited)
	}
}

func TestSQLite_ResolveKeepsFirstResolutionTime(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.Create(ctx, complaint("c1", "m1", 1, time.Now())); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	got, err := s.Resolve(ctx, "c1", first)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Status != models.StatusClosed || got.ResolvedAt == nil || !got.ResolvedAt.Equal(first) {
		t.Fatalf("after resolve: %+v", got)
	}

	got, err = s.Resolve(ctx, "c1", first.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if !got.ResolvedAt.Equal(first) {
		t.Errorf("ResolvedAt = %v, want %v", got.ResolvedAt, first)
	}

	if _, err := s.Resolve(ctx, "missing", first); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve missing err = %v, want ErrNotFound", err)
	}
}

func TestSQLite_CreateValidates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bad := complaint("", "m1", 0, time.Now())
	if err := s.Create(ctx, bad); err == nil {
		t.Error("expected error for missing id")
	}
	bad = complaint("c1", "m1", 0, time.Now())
	bad.Status = "pending"
	if err := s.Create(ctx, bad); err == nil {
		t.Error("expected error for invalid status")
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mongo", "x"); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestListOptions_Limit(t *testing.T) {
	tests := map[int]int{0: DefaultListLimit, -3: DefaultListLimit, 7: 7, MaxListLimit + 1: MaxListLimit}
	for in, want := range tests {
		if got := (ListOptions{Limit: in}).limit(); got != want {
			t.Errorf("limit(%d) = %d, want %d", in, got, want)
		}
	}
}
