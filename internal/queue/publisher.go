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

// Package queue publishes newly ingested complaints to a Redis list so the
// downstream analysis backend can pick them up with BRPOP.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/civicdesk/triage/internal/models"
)

// EventComplaintCreated is the only event kind published today.
const EventComplaintCreated = "complaint.created"

// Envelope is the JSON document pushed onto the list.
type Envelope struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	PublishedAt time.Time         `json:"published_at"`
	Complaint   *models.Complaint `json:"complaint"`
}

// Publisher pushes complaint events onto a Redis list.
type Publisher struct {
	rdb       *redis.Client
	queueName string
	now       func() time.Time
}

// NewPublisher creates a Redis publisher targeting the named list.
func NewPublisher(rdb *redis.Client, queueName string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
		now:       time.Now,
	}
}

// NewEnvelope wraps a complaint in a fresh event envelope.
func NewEnvelope(c *models.Complaint, at time.Time) Envelope {
	return Envelope{
		ID:          uuid.New().String(),
		Kind:        EventComplaintCreated,
		PublishedAt: at.UTC(),
		Complaint:   c,
	}
}

// PublishComplaint serialises the complaint and LPUSHes it to the queue.
func (p *Publisher) PublishComplaint(ctx context.Context, c *models.Complaint) error {
	env := NewEnvelope(c, p.now())

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal complaint event: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, data).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	slog.Info("published complaint to queue",
		"event_id", env.ID,
		"complaint_id", c.ID,
		"message_id", c.MessageID,
		"queue", p.queueName,
	)
	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
