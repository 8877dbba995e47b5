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

// Package ingest runs the complaint ingestion pipeline: list candidate
// messages, skip ones already ingested, fetch, classify, extract, score,
// persist, publish and mark read.
//
// A run is strictly sequential. Each message's steps finish before the next
// message starts, so the returned log reads in mailbox order. Overlapping
// runs are not coordinated; the dedup check is the only guard.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/civicdesk/triage/internal/classify"
	"github.com/civicdesk/triage/internal/dedup"
	"github.com/civicdesk/triage/internal/extract"
	"github.com/civicdesk/triage/internal/metrics"
	"github.com/civicdesk/triage/internal/models"
	"github.com/civicdesk/triage/internal/risk"
)

const (
	// DefaultQuery selects unread messages with a PDF attachment outside the
	// promotions, social and spam buckets.
	DefaultQuery = "is:unread has:attachment filename:pdf -category:promotions -category:social -label:spam"

	// DefaultMaxResults bounds one run. Larger values are clamped.
	DefaultMaxResults = 20
)

// Service performs ingestion runs.
type Service struct {
	connector  Connector
	store      ComplaintStore
	dedup      *dedup.Checker
	classifier *classify.Classifier
	places     *extract.Places
	publisher  Publisher
	source     string
	query      string
	maxResults int
	now        func() time.Time
	newID      func() string
}

// Config holds dependencies for the service.
type Config struct {
	Connector  Connector
	Store      ComplaintStore
	Dedup      *dedup.Checker
	Classifier *classify.Classifier
	// Places resolves city names for the location field. Nil selects
	// extract.DefaultPlaces.
	Places *extract.Places
	// Publisher is optional.
	Publisher Publisher
	// Source labels persisted complaints ("gmail", "imap").
	Source     string
	Query      string
	MaxResults int
	Now        func() time.Time
	NewID      func() string
}

// NewService creates an ingestion service.
func NewService(cfg Config) *Service {
	s := &Service{
		connector:  cfg.Connector,
		store:      cfg.Store,
		dedup:      cfg.Dedup,
		classifier: cfg.Classifier,
		places:     cfg.Places,
		publisher:  cfg.Publisher,
		source:     cfg.Source,
		query:      cfg.Query,
		maxResults: cfg.MaxResults,
		now:        cfg.Now,
		newID:      cfg.NewID,
	}
	if s.classifier == nil {
		s.classifier = classify.New(classify.DefaultKeywords, classify.Policy{})
	}
	if s.places == nil {
		s.places = extract.NewPlaces(extract.DefaultPlaces)
	}
	if s.source == "" {
		s.source = "gmail"
	}
	if s.query == "" {
		s.query = DefaultQuery
	}
	if s.maxResults <= 0 || s.maxResults > DefaultMaxResults {
		s.maxResults = DefaultMaxResults
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.New().String() }
	}
	return s
}

// Result summarises a completed run.
type Result struct {
	Logs            []string        `json:"logs"`
	Records         []models.Record `json:"records"`
	TotalProcessed  int             `json:"total_processed"`
	ComplaintsFound int             `json:"complaints_found"`
	Duplicates      int             `json:"duplicates"`
	Skipped         int             `json:"skipped"`
	Errors          int             `json:"errors"`
	Elapsed         time.Duration   `json:"-"`

	// Token is the credential the run used, refreshed if needed.
	Token *oauth2.Token `json:"-"`
}

// runLog accumulates the human-readable run log and mirrors each line to slog.
type runLog struct {
	lines []string
}

func (l *runLog) add(level slog.Level, msg string, attrs ...any) {
	l.lines = append(l.lines, msg)
	slog.Log(context.Background(), level, msg, attrs...)
}

func (l *runLog) info(msg string, attrs ...any) { l.add(slog.LevelInfo, msg, attrs...) }
func (l *runLog) warn(msg string, attrs ...any) { l.add(slog.LevelWarn, msg, attrs...) }

func (l *runLog) fail(code, message string, err error) *RunError {
	l.add(slog.LevelError, message, "code", code, "error", err)
	metrics.IngestRuns.WithLabelValues(code).Inc()
	return &RunError{Code: code, Message: message, Logs: l.lines, Err: err}
}

// connect runs the run-level preconditions: credentials, token, store.
func (s *Service) connect(ctx context.Context, log *runLog, tok *oauth2.Token) (Gateway, *oauth2.Token, error) {
	if s.connector == nil {
		return nil, nil, log.fail(CodeConfigMissing, "No mail gateway configured", nil)
	}
	gw, used, err := s.connector.Connect(ctx, tok)
	if err != nil {
		code, msg := connectError(err)
		return nil, nil, log.fail(code, msg, err)
	}
	log.info("Connected to mailbox")

	if s.store == nil {
		closeGateway(gw)
		return nil, nil, log.fail(CodeStoreUnavailable, "Complaint store is not configured", nil)
	}
	if err := s.store.Ping(ctx); err != nil {
		closeGateway(gw)
		return nil, nil, log.fail(CodeStoreUnavailable, "Complaint store is unavailable", err)
	}
	return gw, used, nil
}

// closeGateway releases session-oriented gateways such as IMAP.
func closeGateway(gw Gateway) {
	c, ok := gw.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		slog.Warn("failed to close mail gateway", "error", err)
	}
}

// Run performs one ingestion run. Per-message failures are logged and
// skipped; run-level failures return a *RunError.
func (s *Service) Run(ctx context.Context, tok *oauth2.Token) (*Result, error) {
	start := s.now()
	log := &runLog{}
	log.info("Starting mailbox scan")

	gw, used, err := s.connect(ctx, log, tok)
	if err != nil {
		return nil, err
	}
	defer closeGateway(gw)

	ids, err := gw.List(ctx, s.query, s.maxResults)
	if err != nil {
		code, msg := gatewayError(err)
		return nil, log.fail(code, msg, err)
	}

	result := &Result{
		Records:        []models.Record{},
		TotalProcessed: len(ids),
		Token:          used,
	}
	log.info(fmt.Sprintf("Found %d candidate messages", len(ids)), "count", len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			log.warn("Run cancelled", "error", err)
			break
		}
		s.ingestMessage(ctx, gw, log, result, id)
	}

	log.info(fmt.Sprintf("Scan complete: %d complaints from %d messages", result.ComplaintsFound, result.TotalProcessed),
		"complaints", result.ComplaintsFound,
		"duplicates", result.Duplicates,
		"skipped", result.Skipped,
		"errors", result.Errors,
	)
	result.Logs = log.lines
	result.Elapsed = s.now().Sub(start)
	metrics.IngestRuns.WithLabelValues("ok").Inc()
	return result, nil
}

// ingestMessage handles one candidate. It never returns an error: every
// outcome is recorded in the log and counters.
func (s *Service) ingestMessage(ctx context.Context, gw Gateway, log *runLog, result *Result, id string) {
	if s.dedup.AlreadyProcessed(ctx, id) {
		log.info(fmt.Sprintf("Skipped %s: already processed", id), "message_id", id)
		result.Duplicates++
		metrics.MessagesSeen.WithLabelValues("duplicate").Inc()
		return
	}

	msg, err := gw.Get(ctx, id)
	if err != nil || msg == nil {
		log.warn(fmt.Sprintf("Failed to fetch %s", id), "message_id", id, "error", err)
		result.Errors++
		metrics.MessagesSeen.WithLabelValues("error").Inc()
		return
	}

	attachments := extract.Attachments(msg.Payload)
	verdict := s.classifier.Classify(msg, attachments)
	if !verdict.IsComplaint {
		log.info(fmt.Sprintf("Skipped %s: not a complaint", id), "message_id", id)
		result.Skipped++
		metrics.MessagesSeen.WithLabelValues("not_complaint").Inc()
		return
	}
	if s.classifier.Policy().RequireAttachment && len(attachments) == 0 {
		log.info(fmt.Sprintf("Skipped %s: no attachments", id), "message_id", id)
		result.Skipped++
		metrics.MessagesSeen.WithLabelValues("no_attachment").Inc()
		return
	}

	complaint := s.buildComplaint(msg, attachments)
	if err := s.store.Create(ctx, complaint); err != nil {
		log.warn(fmt.Sprintf("Failed to save complaint for %s", id), "message_id", id, "error", err)
		result.Errors++
		metrics.MessagesSeen.WithLabelValues("error").Inc()
		return
	}

	records := s.records(complaint, attachments)
	result.Records = append(result.Records, records...)
	result.ComplaintsFound++
	metrics.MessagesSeen.WithLabelValues("ingested").Inc()
	log.info(fmt.Sprintf("Complaint found in %s (%s): %q", id, verdict.Reason, complaint.Extracted.Subject),
		"message_id", id,
		"complaint_id", complaint.ID,
		"records", len(records),
		"risk_score", complaint.Risk.Score,
	)

	s.publish(ctx, log, complaint)

	if err := gw.MarkRead(ctx, id); err != nil {
		log.warn(fmt.Sprintf("Failed to mark %s as read", id), "message_id", id, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, log *runLog, c *models.Complaint) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishComplaint(ctx, c); err != nil {
		metrics.QueuePublishFailures.Inc()
		log.warn(fmt.Sprintf("Failed to queue complaint %s for analysis", c.ID),
			"complaint_id", c.ID, "error", err)
	}
}

// buildComplaint assembles the persisted complaint for a classified message.
func (s *Service) buildComplaint(msg *models.Message, attachments []models.Attachment) *models.Complaint {
	now := s.now().UTC()
	fields := extract.Fields(msg, attachments, now, s.places)
	return &models.Complaint{
		ID:          s.newID(),
		MessageID:   msg.ID,
		Source:      s.source,
		Extracted:   fields,
		Attachments: attachments,
		Risk:        risk.Score(fields.Complaint),
		Status:      models.StatusOpen,
		CreatedAt:   now,
	}
}

// records emits one AttachmentRecord per attachment, or a single
// EmailBodyRecord when there are none.
func (s *Service) records(c *models.Complaint, attachments []models.Attachment) []models.Record {
	if len(attachments) == 0 {
		return []models.Record{models.EmailBodyRecord{
			ID:          s.newID(),
			MessageID:   c.MessageID,
			ComplaintID: c.ID,
			Sender:      c.Extracted.Sender,
			Subject:     c.Extracted.Subject,
			Timestamp:   c.Extracted.Date,
			Status:      string(c.Status),
		}}
	}

	out := make([]models.Record, 0, len(attachments))
	for _, a := range attachments {
		out = append(out, models.AttachmentRecord{
			ID:          s.newID(),
			MessageID:   c.MessageID,
			ComplaintID: c.ID,
			Sender:      c.Extracted.Sender,
			Source:      a.Filename,
			FileSize:    a.Size,
			Timestamp:   c.Extracted.Date,
			Status:      string(c.Status),
		})
	}
	return out
}
