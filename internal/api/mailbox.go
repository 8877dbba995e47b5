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

package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/civicdesk/triage/internal/auth"
	"github.com/civicdesk/triage/internal/ingest"
)

// ProcessRequest is the body of POST /api/gmail/process.
type ProcessRequest struct {
	EmailIDs []string `json:"email_ids" validate:"required,min=1,max=100,dive,required,max=256"`
}

// StartAuth redirects the browser to the provider consent page.
func (h *Handler) StartAuth(w http.ResponseWriter, r *http.Request) {
	if h.consent == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"code":  ingest.CodeConfigMissing,
			"error": "Mail credentials are not configured",
		})
		return
	}

	state := auth.NewState()
	url, err := h.consent.AuthURL(state)
	if err != nil {
		if errors.Is(err, auth.ErrNotConfigured) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"code":  ingest.CodeConfigMissing,
				"error": "Mail credentials are not configured",
			})
			return
		}
		slog.Error("failed to build consent url", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start authorisation")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/api/gmail/auth",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, url, http.StatusFound)
}

// AuthCallback exchanges the authorization code, stores the token pair
// against a session and sets the session cookie.
func (h *Handler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		slog.Warn("consent denied", "reason", reason)
		writeError(w, http.StatusBadRequest, "Authorisation was not granted")
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "No authorization code received")
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(q.Get("state"))) != 1 {
		slog.Warn("oauth state mismatch")
		writeError(w, http.StatusBadRequest, "Invalid authorisation state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/api/gmail/auth", MaxAge: -1})

	if h.consent == nil || h.sessions == nil {
		writeError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}

	tok, err := h.consent.Exchange(r.Context(), code)
	if err != nil {
		slog.Error("oauth code exchange failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}

	sessionID := auth.NewSessionID()
	if err := h.sessions.Save(r.Context(), sessionID, tok); err != nil {
		slog.Error("failed to save session", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Could not save session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	slog.Info("mailbox authorised", "session", sessionID[:8])
	http.Redirect(w, r, h.postAuthRedirect, http.StatusFound)
}

// Fetch runs one ingestion pass over the session's mailbox.
func (h *Handler) Fetch(w http.ResponseWriter, r *http.Request) {
	sessionID, tok, err := h.sessionToken(r)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	result, err := h.ingest.Run(r.Context(), tok)
	if err != nil {
		writeRunError(w, err)
		return
	}
	h.persistRefresh(r.Context(), sessionID, tok, result.Token)

	writeJSON(w, http.StatusOK, result)
}

// Process classifies and stores an explicit list of message IDs.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "email_ids must list 1 to 100 message IDs")
		return
	}

	sessionID, tok, err := h.sessionToken(r)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	result, err := h.ingest.Process(r.Context(), tok, req.EmailIDs)
	if err != nil {
		writeRunError(w, err)
		return
	}
	h.persistRefresh(r.Context(), sessionID, tok, result.Token)

	writeJSON(w, http.StatusOK, result)
}

// sessionToken returns the session cookie value and its stored token, if
// any. A missing cookie or key is passed on as a nil token so the connector
// reports AUTH_MISSING; any other load failure is returned.
func (h *Handler) sessionToken(r *http.Request) (string, *oauth2.Token, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" || h.sessions == nil {
		return "", nil, nil
	}
	tok, err := h.sessions.Load(r.Context(), cookie.Value)
	if errors.Is(err, auth.ErrMissingToken) {
		return cookie.Value, nil, nil
	}
	if err != nil {
		return cookie.Value, nil, err
	}
	return cookie.Value, tok, nil
}

// writeSessionError reports an unreadable session store. The UI must not
// treat it as an auth failure and restart consent.
func writeSessionError(w http.ResponseWriter, err error) {
	slog.Error("failed to load session token", "error", err)
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"code":  ingest.CodeSessionUnavailable,
		"error": "Session store is unavailable. Please try again shortly.",
	})
}

// persistRefresh saves a token the connector refreshed during the run.
func (h *Handler) persistRefresh(ctx context.Context, sessionID string, before, after *oauth2.Token) {
	if sessionID == "" || after == nil || h.sessions == nil {
		return
	}
	if before != nil && before.AccessToken == after.AccessToken {
		return
	}
	if err := h.sessions.Save(ctx, sessionID, after); err != nil {
		slog.Warn("failed to save refreshed token", "error", err)
	}
}
