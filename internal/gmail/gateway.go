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

// Package gmail is the mail gateway for Gmail mailboxes. It lists candidate
// messages, fetches full message detail and clears the UNREAD label, all
// through the Gmail REST API behind a shared circuit breaker.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/civicdesk/triage/internal/auth"
	"github.com/civicdesk/triage/internal/models"
)

const (
	// DefaultMaxResults bounds a List call with no explicit limit.
	DefaultMaxResults = 20

	me          = "me"
	unreadLabel = "UNREAD"
)

// Gateway wraps one authorised Gmail service.
type Gateway struct {
	svc *gmail.Service
	cb  *gobreaker.CircuitBreaker
}

// NewGateway creates a gateway over svc. cb may be shared between gateways.
func NewGateway(svc *gmail.Service, cb *gobreaker.CircuitBreaker) *Gateway {
	if cb == nil {
		cb = NewBreaker("gmail-api")
	}
	return &Gateway{svc: svc, cb: cb}
}

// NewBreaker returns a circuit breaker that opens after repeated server-side
// failures. Client errors (4xx other than 429) do not count against it.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !tripsBreaker(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
}

func tripsBreaker(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return true
	}
	switch apiErr.Code {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// List returns up to maxResults message IDs matching query, in API order.
func (g *Gateway) List(ctx context.Context, query string, maxResults int) ([]string, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	var resp *gmail.ListMessagesResponse
	err := g.execute("list", func() error {
		var apiErr error
		resp, apiErr = g.svc.Users.Messages.List(me).
			Q(query).
			MaxResults(int64(maxResults)).
			Context(ctx).
			Do()
		return apiErr
	})
	if err != nil {
		return nil, wrapError(err, "list messages")
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m != nil && m.Id != "" {
			ids = append(ids, m.Id)
		}
	}
	return ids, nil
}

// Get fetches the full message: headers, snippet and part tree.
func (g *Gateway) Get(ctx context.Context, id string) (*models.Message, error) {
	var msg *gmail.Message
	err := g.execute("get", func() error {
		var apiErr error
		msg, apiErr = g.svc.Users.Messages.Get(me, id).Format("full").Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return nil, wrapError(err, fmt.Sprintf("get message %s", id))
	}
	return convertMessage(msg), nil
}

// MarkRead removes the UNREAD label.
func (g *Gateway) MarkRead(ctx context.Context, id string) error {
	err := g.execute("modify", func() error {
		_, apiErr := g.svc.Users.Messages.Modify(me, id, &gmail.ModifyMessageRequest{
			RemoveLabelIds: []string{unreadLabel},
		}).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return wrapError(err, fmt.Sprintf("mark message %s read", id))
	}
	return nil
}

func (g *Gateway) execute(op string, fn func() error) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		slog.Warn("gmail call rejected by circuit breaker",
			"op", op,
			"state", g.cb.State().String(),
		)
	}
	return err
}

// wrapError maps a 401 to auth.ErrTokenExpired so the run aborts with the
// re-authentication code. Everything else is wrapped as-is.
func wrapError(err error, what string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w: %v", what, auth.ErrTokenExpired, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}
