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
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/civicdesk/triage/internal/dedup"
	"github.com/civicdesk/triage/internal/models"
	"github.com/civicdesk/triage/internal/store"
)

// --- Mock gateway ---

type fakeGateway struct {
	mu       sync.Mutex
	ids      []string
	messages map[string]*models.Message
	listErr  error
	getErr   map[string]error
	markErr  error
	marked   []string
	queries  []string
}

func newFakeGateway(msgs ...*models.Message) *fakeGateway {
	g := &fakeGateway{messages: make(map[string]*models.Message), getErr: make(map[string]error)}
	for _, m := range msgs {
		g.ids = append(g.ids, m.ID)
		g.messages[m.ID] = m
	}
	return g
}

func (g *fakeGateway) List(_ context.Context, query string, maxResults int) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries = append(g.queries, query)
	if g.listErr != nil {
		return nil, g.listErr
	}
	ids := g.ids
	if len(ids) > maxResults {
		ids = ids[:maxResults]
	}
	return append([]string(nil), ids...), nil
}

func (g *fakeGateway) Get(_ context.Context, id string) (*models.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.getErr[id]; err != nil {
		return nil, err
	}
	m, ok := g.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s not found", id)
	}
	return m, nil
}

func (g *fakeGateway) MarkRead(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.markErr != nil {
		return g.markErr
	}
	g.marked = append(g.marked, id)
	return nil
}

// --- Mock connector ---

type fakeConnector struct {
	gw        *fakeGateway
	err       error
	refreshed *oauth2.Token
	calls     int
}

func (c *fakeConnector) Connect(_ context.Context, tok *oauth2.Token) (Gateway, *oauth2.Token, error) {
	c.calls++
	if c.err != nil {
		return nil, nil, c.err
	}
	if c.refreshed != nil {
		return c.gw, c.refreshed, nil
	}
	return c.gw, tok, nil
}

// --- Mock store ---

type memStore struct {
	mu         sync.Mutex
	complaints []*models.Complaint
	pingErr    error
	createErr  error
	existsErr  error
}

func (s *memStore) Ping(context.Context) error { return s.pingErr }

func (s *memStore) ExistsByMessageID(_ context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	for _, c := range s.complaints {
		if c.MessageID == messageID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) GetByMessageID(_ context.Context, messageID string) (*models.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.complaints {
		if c.MessageID == messageID {
			return c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memStore) Create(_ context.Context, c *models.Complaint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.complaints = append(s.complaints, c)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.complaints)
}

// --- Mock publisher ---

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *fakePublisher) PublishComplaint(_ context.Context, c *models.Complaint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, c.ID)
	return nil
}

// --- Test helpers ---

var errUnreachable = errors.New("connection refused")

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type harness struct {
	gw    *fakeGateway
	conn  *fakeConnector
	store *memStore
	pub   *fakePublisher
	svc   *Service
}

func newHarness(msgs ...*models.Message) *harness {
	h := &harness{
		gw:    newFakeGateway(msgs...),
		store: &memStore{},
		pub:   &fakePublisher{},
	}
	h.conn = &fakeConnector{gw: h.gw}
	h.svc = h.build(Config{})
	return h
}

// build wires a service over the harness fakes, letting cfg override
// anything it sets.
func (h *harness) build(cfg Config) *Service {
	if cfg.Connector == nil {
		cfg.Connector = h.conn
	}
	if cfg.Store == nil {
		cfg.Store = h.store
	}
	if cfg.Dedup == nil {
		cfg.Dedup = dedup.NewChecker(h.store)
	}
	if cfg.Publisher == nil {
		cfg.Publisher = h.pub
	}
	n := 0
	cfg.NewID = func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}
	cfg.Now = func() time.Time { return fixedNow }
	return NewService(cfg)
}

func token() *oauth2.Token {
	return &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: fixedNow.Add(time.Hour)}
}

func message(id, subject, snippet string, files ...string) *models.Message {
	root := &models.Part{PartID: "", MimeType: "multipart/mixed"}
	root.Parts = append(root.Parts, &models.Part{PartID: "0", MimeType: "text/plain"})
	for i, f := range files {
		root.Parts = append(root.Parts, &models.Part{
			PartID:   fmt.Sprintf("%d", i+1),
			MimeType: "application/octet-stream",
			Filename: f,
			Size:     int64(1024 * (i + 1)),
		})
	}
	return &models.Message{
		ID:      id,
		Subject: subject,
		From:    "Asha Rao <asha@example.org>",
		Date:    "Fri, 13 Mar 2026 18:04:00 +0530",
		Snippet: snippet,
		Payload: root,
	}
}
