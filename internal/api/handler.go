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

// Package api serves the dashboard's HTTP surface: the mailbox consent
// flow, ingestion triggers and the complaint list.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/oauth2"

	"github.com/civicdesk/triage/internal/auth"
	"github.com/civicdesk/triage/internal/ingest"
	"github.com/civicdesk/triage/internal/models"
	"github.com/civicdesk/triage/internal/store"
)

const (
	sessionCookie = "triage_session"
	stateCookie   = "triage_oauth_state"
	stateTTL      = 10 * time.Minute
)

// Ingester runs ingestion for a session's token.
type Ingester interface {
	Run(ctx context.Context, tok *oauth2.Token) (*ingest.Result, error)
	Process(ctx context.Context, tok *oauth2.Token, ids []string) (*ingest.ProcessResult, error)
}

// Consent is the OAuth client used by the auth routes.
type Consent interface {
	AuthURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// Sessions keeps each browser session's mailbox token server-side.
type Sessions interface {
	Save(ctx context.Context, sessionID string, tok *oauth2.Token) error
	Load(ctx context.Context, sessionID string) (*oauth2.Token, error)
}

// Complaints is the store subset the dashboard reads and resolves.
type Complaints interface {
	List(ctx context.Context, opts store.ListOptions) ([]models.Complaint, error)
	Get(ctx context.Context, id string) (*models.Complaint, error)
	Resolve(ctx context.Context, id string, at time.Time) (*models.Complaint, error)
}

// HealthCheck is one named dependency check for /health.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Config holds the handler's dependencies.
type Config struct {
	Ingest     Ingester
	Consent    Consent
	Sessions   Sessions
	Complaints Complaints
	Checks     []HealthCheck

	// PostAuthRedirect is where the browser lands after consent.
	PostAuthRedirect string
	CookieSecure     bool
	SessionTTL       time.Duration
	Now              func() time.Time
}

// Handler serves the HTTP API.
type Handler struct {
	ingest     Ingester
	consent    Consent
	sessions   Sessions
	complaints Complaints
	checks     []HealthCheck
	validate   *validator.Validate

	postAuthRedirect string
	cookieSecure     bool
	sessionTTL       time.Duration
	now              func() time.Time
}

// NewHandler creates an API handler.
func NewHandler(cfg Config) *Handler {
	h := &Handler{
		ingest:           cfg.Ingest,
		consent:          cfg.Consent,
		sessions:         cfg.Sessions,
		complaints:       cfg.Complaints,
		checks:           cfg.Checks,
		validate:         validator.New(),
		postAuthRedirect: cfg.PostAuthRedirect,
		cookieSecure:     cfg.CookieSecure,
		sessionTTL:       cfg.SessionTTL,
		now:              cfg.Now,
	}
	if h.postAuthRedirect == "" {
		h.postAuthRedirect = "/"
	}
	if h.sessionTTL <= 0 {
		h.sessionTTL = auth.DefaultSessionTTL
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// writeJSON sends a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError sends {"error": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// runStatus maps a run-level error code to an HTTP status.
func runStatus(code string) int {
	switch code {
	case ingest.CodeAuthMissing, ingest.CodeAuthExpired:
		return http.StatusUnauthorized
	case ingest.CodeStoreUnavailable, ingest.CodeSessionUnavailable:
		return http.StatusServiceUnavailable
	case ingest.CodeGatewayError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeRunError renders an ingestion failure. Run errors keep their code
// and log so the UI can show what happened and re-trigger consent.
func writeRunError(w http.ResponseWriter, err error) {
	var re *ingest.RunError
	if errors.As(err, &re) {
		writeJSON(w, runStatus(re.Code), re)
		return
	}
	slog.Error("ingestion failed", "error", err)
	writeError(w, http.StatusInternalServerError, "ingestion failed")
}
