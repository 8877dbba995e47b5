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
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/civicdesk/triage/internal/metrics"
	"github.com/civicdesk/triage/internal/models"
	"github.com/civicdesk/triage/internal/store"
)

// listQuery is the validated query string of GET /api/complaints.
type listQuery struct {
	Status string `validate:"omitempty,oneof=open closed"`
	Limit  int    `validate:"gte=0,lte=1000"`
}

// ListComplaints returns stored complaints, highest risk first.
func (h *Handler) ListComplaints(w http.ResponseWriter, r *http.Request) {
	q := listQuery{Status: r.URL.Query().Get("status")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		q.Limit = n
	}
	if err := h.validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, "status must be open or closed and limit between 0 and 1000")
		return
	}

	complaints, err := h.complaints.List(r.Context(), store.ListOptions{
		Status: models.Status(q.Status),
		Limit:  q.Limit,
	})
	if err != nil {
		slog.Error("failed to list complaints", "error", err)
		writeError(w, http.StatusServiceUnavailable, "complaint store unavailable")
		return
	}
	if complaints == nil {
		complaints = []models.Complaint{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"complaints": complaints,
		"count":      len(complaints),
	})
}

// GetComplaint returns one complaint.
func (h *Handler) GetComplaint(w http.ResponseWriter, r *http.Request) {
	c, err := h.complaints.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "complaint not found")
		return
	}
	if err != nil {
		slog.Error("failed to get complaint", "error", err)
		writeError(w, http.StatusServiceUnavailable, "complaint store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ResolveComplaint closes a complaint. Resolving a closed complaint
// returns it unchanged.
func (h *Handler) ResolveComplaint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.complaints.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "complaint not found")
		return
	}
	if err != nil {
		slog.Error("failed to get complaint", "id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "complaint store unavailable")
		return
	}
	if c.Status == models.StatusClosed {
		writeJSON(w, http.StatusOK, c)
		return
	}

	c, err = h.complaints.Resolve(r.Context(), id, h.now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "complaint not found")
		return
	}
	if err != nil {
		slog.Error("failed to resolve complaint", "id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "complaint store unavailable")
		return
	}

	metrics.ComplaintsResolved.Inc()
	slog.Info("complaint resolved", "id", id)
	writeJSON(w, http.StatusOK, c)
}

// check is the outcome of one health check.
type check struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
}

// Health pings each configured dependency.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]check, len(h.checks))
	healthy := true
	for _, c := range h.checks {
		start := time.Now()
		if err := c.Ping(ctx); err != nil {
			slog.Warn("health check failed", "check", c.Name, "error", err)
			checks[c.Name] = check{Status: "fail"}
			healthy = false
			continue
		}
		checks[c.Name] = check{Status: "pass", Latency: time.Since(start).String()}
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}
