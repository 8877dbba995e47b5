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

package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/civicdesk/triage/internal/models"
)

func TestNewEnvelope(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("IST", 19800))
	c := &models.Complaint{ID: "c1", MessageID: "m1", Status: models.StatusOpen}

	a := NewEnvelope(c, at)
	b := NewEnvelope(c, at)

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("envelope IDs must be unique and non-empty: %q %q", a.ID, b.ID)
	}
	if a.Kind != EventComplaintCreated {
		t.Errorf("Kind = %q", a.Kind)
	}
	if a.PublishedAt.Location() != time.UTC {
		t.Errorf("PublishedAt not UTC: %v", a.PublishedAt)
	}

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	inner, ok := decoded["complaint"].(map[string]interface{})
	if !ok || inner["message_id"] != "m1" {
		t.Errorf("complaint payload = %v", decoded["complaint"])
	}
}

// TestPublishComplaint_Unreachable verifies errors surface when Redis is down.
func TestPublishComplaint_Unreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	p := NewPublisher(rdb, "complaints")
	if err := p.PublishComplaint(context.Background(), &models.Complaint{ID: "c1"}); err == nil {
		t.Error("expected error publishing to unreachable redis")
	}
	if err := p.Ping(context.Background()); err == nil {
		t.Error("expected ping error")
	}
}

func TestPublishComplaint_PushesEnvelope(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := NewPublisher(rdb, "complaints")
	p.now = func() time.Time { return at }

	ctx := context.Background()
	if err := p.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	for _, id := range []string{"c1", "c2"} {
		c := &models.Complaint{ID: id, MessageID: "msg-" + id, Status: models.StatusOpen}
		if err := p.PublishComplaint(ctx, c); err != nil {
			t.Fatalf("PublishComplaint(%s): %v", id, err)
		}
	}

	items, err := mr.List("complaints")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("queue length = %d, want 2", len(items))
	}

	// LPUSH puts the newest event at the head.
	var env Envelope
	if err := json.Unmarshal([]byte(items[0]), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Kind != EventComplaintCreated || env.ID == "" {
		t.Errorf("envelope = %+v", env)
	}
	if !env.PublishedAt.Equal(at) {
		t.Errorf("PublishedAt = %v, want %v", env.PublishedAt, at)
	}
	if env.Complaint == nil || env.Complaint.ID != "c2" || env.Complaint.MessageID != "msg-c2" {
		t.Errorf("complaint = %+v", env.Complaint)
	}
}
