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

// Complaint Triage Service
//
// Entry point for the triage HTTP service. It:
//  1. Loads configuration from config.yaml, .env and the environment
//  2. Opens the complaint store (PostgreSQL or SQLite) and Redis
//  3. Builds the mail connector for the configured provider
//  4. Serves the consent, ingestion and complaint endpoints
//  5. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/civicdesk/triage/internal/api"
	"github.com/civicdesk/triage/internal/auth"
	"github.com/civicdesk/triage/internal/classify"
	"github.com/civicdesk/triage/internal/config"
	"github.com/civicdesk/triage/internal/dedup"
	"github.com/civicdesk/triage/internal/extract"
	"github.com/civicdesk/triage/internal/gmail"
	"github.com/civicdesk/triage/internal/imapgw"
	"github.com/civicdesk/triage/internal/ingest"
	"github.com/civicdesk/triage/internal/queue"
	"github.com/civicdesk/triage/internal/store"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting complaint triage service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"provider", cfg.Provider,
		"storage", cfg.StorageDriver,
		"max_results", cfg.MaxResults,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Complaint Store ---
	complaints, err := store.Open(ctx, cfg.StorageDriver, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to open complaint store", "error", err)
		os.Exit(1)
	}
	defer complaints.Close()
	slog.Info("complaint store ready", "driver", cfg.StorageDriver)

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	publisher := queue.NewPublisher(rdb, cfg.ComplaintsQueue)
	if err := publisher.Ping(ctx); err != nil {
		// Sessions and the analysis queue degrade; complaints still persist.
		slog.Warn("redis unreachable at startup", "error", err)
	} else {
		slog.Info("connected to Redis")
	}
	sessions := auth.NewTokenStore(rdb, cfg.SessionTTL)

	// --- Mail Connector ---
	authn := auth.New(auth.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
	})
	if !authn.Configured() {
		slog.Warn("google oauth credentials missing; consent flow disabled")
	}

	var connector ingest.Connector
	switch cfg.Provider {
	case config.ProviderIMAP:
		connector = imapgw.NewConnector(imapgw.Config{
			Addr:     cfg.IMAP.Addr,
			Username: cfg.IMAP.Username,
			Password: cfg.IMAP.Password,
			Mailbox:  cfg.IMAP.Mailbox,
			Insecure: cfg.IMAP.Insecure,
		})
	default:
		connector = gmail.NewConnector(authn, gmail.NewBreaker("gmail-api"))
	}

	// --- Ingestion ---
	keywords := cfg.Classifier.Keywords
	if len(keywords) == 0 {
		keywords = classify.DefaultKeywords
	}
	places := cfg.Places
	if len(places) == 0 {
		places = extract.DefaultPlaces
	}
	classifier := classify.New(keywords, classify.Policy{
		LongSnippet:       cfg.Classifier.LongSnippet,
		RequireAttachment: cfg.Classifier.RequireAttachment,
	})

	svc := ingest.NewService(ingest.Config{
		Connector:  connector,
		Store:      complaints,
		Dedup:      dedup.NewChecker(complaints),
		Classifier: classifier,
		Places:     extract.NewPlaces(places),
		Publisher:  publisher,
		Source:     cfg.Provider,
		Query:      cfg.Query,
		MaxResults: cfg.MaxResults,
	})

	// --- HTTP API ---
	handler := api.NewHandler(api.Config{
		Ingest:     svc,
		Consent:    authn,
		Sessions:   sessions,
		Complaints: complaints,
		Checks: []api.HealthCheck{
			{Name: "store", Ping: complaints.Ping},
			{Name: "redis", Ping: publisher.Ping},
		},
		PostAuthRedirect: cfg.PostAuthRedirect,
		CookieSecure:     cfg.CookieSecure,
		SessionTTL:       cfg.SessionTTL,
	})

	ready, stopped, err := api.Serve(ctx, cfg.Port, api.NewRouter(handler))
	if err != nil {
		slog.Error("failed to start api server", "error", err)
		os.Exit(1)
	}
	<-ready
	slog.Info("triage service ready", "port", cfg.Port)

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	cancel()
	<-stopped

	slog.Info("complaint triage service stopped")
}
