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

// Package imapgw is the mail gateway for plain IMAP mailboxes. Message IDs
// are IMAP UIDs in the selected mailbox; "unread" is the absence of the
// \Seen flag.
package imapgw

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"golang.org/x/oauth2"

	"github.com/civicdesk/triage/internal/auth"
	"github.com/civicdesk/triage/internal/ingest"
	"github.com/civicdesk/triage/internal/models"
)

// DefaultMailbox is selected when none is configured.
const DefaultMailbox = "INBOX"

// Config holds IMAP connection settings.
type Config struct {
	Addr     string
	Username string
	Password string
	Mailbox  string
	// Insecure dials without TLS. Only for local servers.
	Insecure bool
}

// Connector opens one IMAP session per run. The stored OAuth token is not
// used; IMAP mailboxes authenticate with the configured password.
type Connector struct {
	cfg Config
}

// NewConnector creates an IMAP connector.
func NewConnector(cfg Config) *Connector {
	if cfg.Mailbox == "" {
		cfg.Mailbox = DefaultMailbox
	}
	return &Connector{cfg: cfg}
}

// Connect dials, logs in and selects the mailbox. The returned gateway
// must be closed.
func (c *Connector) Connect(ctx context.Context, tok *oauth2.Token) (ingest.Gateway, *oauth2.Token, error) {
	if c.cfg.Addr == "" || c.cfg.Username == "" {
		return nil, nil, auth.ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		cl  *client.Client
		err error
	)
	if c.cfg.Insecure {
		cl, err = client.Dial(c.cfg.Addr)
	} else {
		cl, err = client.DialTLS(c.cfg.Addr, nil)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("connect to imap server %s: %w", c.cfg.Addr, err)
	}

	if err := cl.Login(c.cfg.Username, c.cfg.Password); err != nil {
		cl.Logout()
		return nil, nil, fmt.Errorf("imap login as %s: %w", c.cfg.Username, err)
	}

	mbox, err := cl.Select(c.cfg.Mailbox, false)
	if err != nil {
		cl.Logout()
		return nil, nil, fmt.Errorf("select mailbox %s: %w", c.cfg.Mailbox, err)
	}
	slog.Debug("imap mailbox selected",
		"mailbox", c.cfg.Mailbox,
		"messages", mbox.Messages,
	)

	return &Gateway{client: cl}, tok, nil
}

// Gateway is one logged-in IMAP session with a mailbox selected.
type Gateway struct {
	mu     sync.Mutex
	client *client.Client
}

// List returns up to maxResults UIDs of unseen messages, oldest first.
// IMAP has no Gmail-style query language, so query is ignored.
func (g *Gateway) List(ctx context.Context, query string, maxResults int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := g.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search unseen messages: %w", err)
	}

	if maxResults > 0 && len(uids) > maxResults {
		uids = uids[:maxResults]
	}
	ids := make([]string, len(uids))
	for i, uid := range uids {
		ids[i] = strconv.FormatUint(uint64(uid), 10)
	}
	return ids, nil
}

// Get fetches the full message without setting \Seen.
func (g *Gateway) Get(ctx context.Context, id string) (*models.Message, error) {
	uid, err := parseUID(id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- g.client.UidFetch(seqSet, items, messages)
	}()

	var fetched *imap.Message
	for m := range messages {
		if fetched == nil {
			fetched = m
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch message %s: %w", id, err)
	}
	if fetched == nil {
		return nil, fmt.Errorf("fetch message %s: not found", id)
	}

	body := fetched.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("fetch message %s: server returned no body", id)
	}
	return parseMessage(id, body)
}

// MarkRead sets the \Seen flag.
func (g *Gateway) MarkRead(ctx context.Context, id string) error {
	uid, err := parseUID(id)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := g.client.UidStore(seqSet, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("mark message %s seen: %w", id, err)
	}
	return nil
}

// Close logs out and closes the connection.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.client.Logout()
}

func parseUID(id string) (uint32, error) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid imap uid %q", id)
	}
	return uint32(n), nil
}
