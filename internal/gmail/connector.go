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

package gmail

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/civicdesk/triage/internal/auth"
	"github.com/civicdesk/triage/internal/ingest"
)

// Connector builds an authorised Gateway for a stored token.
type Connector struct {
	auth *auth.Authenticator
	cb   *gobreaker.CircuitBreaker
	opts []option.ClientOption
}

// NewConnector creates a connector. Extra client options are appended
// after the token source; tests use them to point at a local server.
func NewConnector(a *auth.Authenticator, cb *gobreaker.CircuitBreaker, opts ...option.ClientOption) *Connector {
	if cb == nil {
		cb = NewBreaker("gmail-api")
	}
	return &Connector{auth: a, cb: cb, opts: opts}
}

// Connect refreshes tok and returns a gateway using the fresh
// token. Auth failures carry the auth package sentinels.
func (c *Connector) Connect(ctx context.Context, tok *oauth2.Token) (ingest.Gateway, *oauth2.Token, error) {
	fresh, err := c.auth.Refresh(ctx, tok)
	if err != nil {
		return nil, nil, err
	}

	opts := append([]option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(fresh))}, c.opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGateway(svc, c.cb), fresh, nil
}
