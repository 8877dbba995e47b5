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

package ingest

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/civicdesk/triage/internal/classify"
	"github.com/civicdesk/triage/internal/extract"
	"github.com/civicdesk/triage/internal/models"
	"github.com/civicdesk/triage/internal/store"
)

// Per-item outcomes of an explicit process request.
const (
	ItemCreated      = "created"
	ItemDuplicate    = "duplicate"
	ItemNotComplaint = "not_complaint"
	ItemError        = "error"
)

// Item is the outcome for one requested message ID.
type Item struct {
	MessageID string               `json:"message_id"`
	Status    string               `json:"status"`
	Verdict   *classify.Verdict    `json:"verdict,omitempty"`
	Risk      *models.RiskAnalysis `json:"risk_analysis,omitempty"`
	Complaint *models.Complaint    `json:"complaint,omitempty"`
	Records   []models.Record      `json:"records,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// ProcessResult collects per-ID outcomes in request order.
type ProcessResult struct {
	Items []Item   `json:"items"`
	Logs  []string `json:"logs"`

	Token *oauth2.Token `json:"-"`
}

// Process classifies and scores an explicit list of message IDs. New
// complaints are persisted and published; IDs already ingested return the
// stored complaint. Messages are not marked read.
func (s *Service) Process(ctx context.Context, tok *oauth2.Token, ids []string) (*ProcessResult, error) {
	log := &runLog{}
	log.info(fmt.Sprintf("Processing %d requested messages", len(ids)), "count", len(ids))

	gw, used, err := s.connect(ctx, log, tok)
	if err != nil {
		return nil, err
	}
	defer closeGateway(gw)

	result := &ProcessResult{Items: make([]Item, 0, len(ids)), Token: used}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			log.warn("Processing cancelled", "error", err)
			break
		}
		result.Items = append(result.Items, s.processOne(ctx, gw, log, id))
	}
	result.Logs = log.lines
	return result, nil
}

func (s *Service) processOne(ctx context.Context, gw Gateway, log *runLog, id string) Item {
	item := Item{MessageID: id}

	if s.dedup.AlreadyProcessed(ctx, id) {
		existing, err := s.store.GetByMessageID(ctx, id)
		switch {
		case err == nil:
			item.Status = ItemDuplicate
			item.Complaint = existing
			item.Risk = &existing.Risk
			log.info(fmt.Sprintf("%s already processed", id), "message_id", id, "complaint_id", existing.ID)
			return item
		case !errors.Is(err, store.ErrNotFound):
			item.Status = ItemError
			item.Error = "failed to load stored complaint"
			log.warn(fmt.Sprintf("Failed to load complaint for %s", id), "message_id", id, "error", err)
			return item
		}
		// Raced with a delete; fall through and process as new.
	}

	msg, err := gw.Get(ctx, id)
	if err != nil || msg == nil {
		item.Status = ItemError
		item.Error = "failed to fetch message"
		log.warn(fmt.Sprintf("Failed to fetch %s", id), "message_id", id, "error", err)
		return item
	}

	attachments := extract.Attachments(msg.Payload)
	verdict := s.classifier.Classify(msg, attachments)
	item.Verdict = &verdict

	complaint := s.buildComplaint(msg, attachments)
	item.Risk = &complaint.Risk

	if !verdict.IsComplaint ||
		(s.classifier.Policy().RequireAttachment && len(attachments) == 0) {
		item.Status = ItemNotComplaint
		log.info(fmt.Sprintf("%s is not a complaint", id), "message_id", id)
		return item
	}

	if err := s.store.Create(ctx, complaint); err != nil {
		item.Status = ItemError
		item.Error = "failed to save complaint"
		log.warn(fmt.Sprintf("Failed to save complaint for %s", id), "message_id", id, "error", err)
		return item
	}
	item.Status = ItemCreated
	item.Complaint = complaint
	item.Records = s.records(complaint, attachments)
	log.info(fmt.Sprintf("Complaint created for %s", id), "message_id", id, "complaint_id", complaint.ID)

	s.publish(ctx, log, complaint)
	return item
}
