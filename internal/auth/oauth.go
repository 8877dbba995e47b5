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

// Package auth handles the Google OAuth consent flow and keeps each staff
// session's token pair in Redis. The browser only ever sees an opaque
// session ID.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

var (
	// ErrNotConfigured means the OAuth client credentials are missing.
	ErrNotConfigured = errors.New("mail credentials not configured")
	// ErrMissingToken means the session has no stored token.
	ErrMissingToken = errors.New("no mail token for session")
	// ErrTokenExpired means the token could not be refreshed.
	ErrTokenExpired = errors.New("mail token expired or revoked")
)

// Config holds the OAuth client settings.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint overrides google.Endpoint; used by tests.
	Endpoint *oauth2.Endpoint
}

// Authenticator wraps the OAuth client for the mailbox scope.
type Authenticator struct {
	cfg *oauth2.Config
}

// New creates an authenticator. Missing credentials are not an error here;
// they surface as ErrNotConfigured on first use.
func New(c Config) *Authenticator {
	endpoint := google.Endpoint
	if c.Endpoint != nil {
		endpoint = *c.Endpoint
	}
	return &Authenticator{cfg: &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       []string{gmail.GmailModifyScope},
		Endpoint:     endpoint,
	}}
}

// Configured reports whether client credentials are present.
func (a *Authenticator) Configured() bool {
	return a != nil && a.cfg.ClientID != "" && a.cfg.ClientSecret != "" && a.cfg.RedirectURL != ""
}

// NewState returns a random value for the OAuth state parameter.
func NewState() string {
	return uuid.New().String()
}

// AuthURL returns the consent page URL. Offline access with forced consent
// makes Google issue a refresh token every time.
func (a *Authenticator) AuthURL(state string) (string, error) {
	if !a.Configured() {
		return "", ErrNotConfigured
	}
	return a.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Exchange trades an authorization code for a token pair.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if !a.Configured() {
		return nil, ErrNotConfigured
	}
	tok, err := a.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

// Refresh exchanges tok's refresh token for a new access token, even when
// the current one has not expired, so a revoked grant fails before any
// mailbox call. A token without a refresh token is used until it expires.
// A refresh failure is reported as ErrTokenExpired.
func (a *Authenticator) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if !a.Configured() {
		return nil, ErrNotConfigured
	}
	if tok == nil || (tok.AccessToken == "" && tok.RefreshToken == "") {
		return nil, ErrMissingToken
	}
	if tok.RefreshToken != "" {
		forced := *tok
		forced.Expiry = time.Now().Add(-time.Minute)
		tok = &forced
	}
	fresh, err := a.cfg.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
	}
	return fresh, nil
}

// TokenSource returns a source that keeps refreshing tok as needed.
func (a *Authenticator) TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource {
	return a.cfg.TokenSource(ctx, tok)
}
