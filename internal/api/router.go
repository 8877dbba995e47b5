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
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/civicdesk/triage/internal/metrics"
)

// NewRouter wires the API routes.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	// Metrics first so every request is counted
	r.Use(metricsMiddleware)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/gmail", func(r chi.Router) {
			r.Get("/auth", h.StartAuth)
			r.Get("/auth/callback", h.AuthCallback)
			r.Get("/fetch", h.Fetch)
			r.Post("/process", h.Process)
		})
		r.Route("/complaints", func(r chi.Router) {
			r.Get("/", h.ListComplaints)
			r.Get("/{id}", h.GetComplaint)
			r.Patch("/{id}/resolve", h.ResolveComplaint)
		})
	})

	return r
}

// statusWriter wraps http.ResponseWriter to capture status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := normalizePath(r.URL.Path)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses complaint IDs to keep label cardinality bounded.
func normalizePath(path string) string {
	const prefix = "/api/complaints/"
	if !strings.HasPrefix(path, prefix) || len(path) == len(prefix) {
		return path
	}
	if strings.HasSuffix(path, "/resolve") {
		return prefix + ":id/resolve"
	}
	return prefix + ":id"
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"latency", time.Since(start).String(),
				"request_id", chimw.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// Serve starts the API server on the given port. It binds the port
// immediately and signals readiness via the first returned channel before
// accepting connections. The server shuts down when ctx is cancelled; the
// second channel closes once in-flight requests have drained.
func Serve(ctx context.Context, port int, handler http.Handler) (<-chan struct{}, <-chan struct{}, error) {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Ingestion runs call the mail API once per message.
		WriteTimeout: 5 * time.Minute,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, nil, fmt.Errorf("bind api port %d: %w", port, err)
	}

	ready := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		<-ctx.Done()
		slog.Info("api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("api server shutdown error", "error", err)
		}
	}()

	go func() {
		slog.Info("api server listening", "addr", ln.Addr().String())
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("api server error", "error", err)
		}
	}()

	return ready, stopped, nil
}
