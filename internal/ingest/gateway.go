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

	"golang.org/x/oauth2"

	"github.com/civicdesk/triage/internal/models"
)

// Gateway is the mail API contract the orchestrator consumes.
type Gateway interface {
	// List returns candidate message IDs in mailbox order.
	List(ctx context.Context, query string, maxResults int) ([]string, error)
	// Get fetches headers, snippet and part tree for one message.
	Get(ctx context.Context, id string) (*models.Message, error)
	// MarkRead clears the message's unread state.
	MarkRead(ctx context.Context, id string) error
}

// Connector turns a stored credential into a ready gateway. It returns the
// token actually used, which differs from tok after a refresh, so the
// caller can persist it.
//
// Implementations report auth.ErrNotConfigured, auth.ErrMissingToken and
// auth.ErrTokenExpired for the corresponding run-level failures.
type Connector interface {
	Connect(ctx context.Context, tok *oauth2.Token) (Gateway, *oauth2.Token, error)
}

// ComplaintStore is the subset of the complaint store used by ingestion.
type ComplaintStore interface {
	Ping(ctx context.Context) error
	Create(ctx context.Context, c *models.Complaint) error
	GetByMessageID(ctx context.Context, messageID string) (*models.Complaint, error)
}

// Publisher forwards new complaints to the analysis queue.
type Publisher interface {
	PublishComplaint(ctx context.Context, c *models.Complaint) error
}
