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

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Mail providers.
const (
	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"
)

// MaxResultsLimit caps the messages scanned by one run.
const MaxResultsLimit = 20

// GoogleConfig holds the OAuth client for Gmail mailboxes. Empty
// credentials are allowed at startup and reported per run.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// IMAPConfig holds settings for the IMAP provider.
type IMAPConfig struct {
	Addr     string
	Username string
	Password string
	Mailbox  string
	Insecure bool
}

// ClassifierConfig selects the keyword list and policy.
type ClassifierConfig struct {
	// Keywords replaces the built-in list when non-empty.
	Keywords          []string
	LongSnippet       bool
	RequireAttachment bool
}

// Config holds all configuration for the triage service.
type Config struct {
	// Mail
	Provider   string
	Query      string
	MaxResults int
	Google     GoogleConfig
	IMAP       IMAPConfig

	Classifier ClassifierConfig
	// Places are city names recognised as complaint locations. Empty
	// selects the built-in list.
	Places []string

	// Storage
	StorageDriver string
	DatabaseURL   string

	// Redis
	RedisURL        string
	ComplaintsQueue string

	// Server
	Port             int
	PostAuthRedirect string
	CookieSecure     bool
	SessionTTL       time.Duration
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Mail struct {
		Provider   string `yaml:"provider"`
		Query      string `yaml:"query"`
		MaxResults int    `yaml:"max_results"`
		Google     struct {
			ClientID     string `yaml:"client_id"`
			ClientSecret string `yaml:"client_secret"`
			RedirectURL  string `yaml:"redirect_url"`
		} `yaml:"google"`
		IMAP struct {
			Addr     string `yaml:"addr"`
			Username string `yaml:"username"`
			Password string `yaml:"password"`
			Mailbox  string `yaml:"mailbox"`
			Insecure bool   `yaml:"insecure"`
		} `yaml:"imap"`
	} `yaml:"mail"`
	Classifier struct {
		Keywords          []string `yaml:"keywords"`
		LongSnippet       bool     `yaml:"long_snippet"`
		RequireAttachment bool     `yaml:"require_attachment"`
	} `yaml:"classifier"`
	Extract struct {
		Places []string `yaml:"places"`
	} `yaml:"extract"`
	Storage struct {
		Driver string `yaml:"driver"`
		URL    string `yaml:"url"`
	} `yaml:"storage"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			Complaints string `yaml:"complaints"`
		} `yaml:"queues"`
	} `yaml:"redis"`
	Server struct {
		Port             int    `yaml:"port"`
		PostAuthRedirect string `yaml:"post_auth_redirect"`
		CookieSecure     bool   `yaml:"cookie_secure"`
		SessionTTL       string `yaml:"session_ttl"`
	} `yaml:"server"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables. A .env file in the working directory is loaded
// first when present. The YAML file itself is optional.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("ignoring unreadable .env file", "error", err)
	}

	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	var raw rawConfig
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Info("config file not found, using environment only", "path", configPath)
	case err != nil:
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	default:
		// Expand ${VAR} references in the YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	}

	return build(raw)
}

func build(raw rawConfig) (*Config, error) {
	cfg := &Config{
		Provider:   strings.ToLower(firstNonEmpty(raw.Mail.Provider, envOrDefault("MAIL_PROVIDER", ProviderGmail))),
		Query:      firstNonEmpty(raw.Mail.Query, os.Getenv("MAIL_QUERY")),
		MaxResults: firstPositive(raw.Mail.MaxResults, envOrDefaultInt("MAIL_MAX_RESULTS", 20)),
		Google: GoogleConfig{
			ClientID:     firstNonEmpty(raw.Mail.Google.ClientID, os.Getenv("GOOGLE_CLIENT_ID")),
			ClientSecret: firstNonEmpty(raw.Mail.Google.ClientSecret, os.Getenv("GOOGLE_CLIENT_SECRET")),
			RedirectURL: firstNonEmpty(raw.Mail.Google.RedirectURL, envOrDefault("GOOGLE_REDIRECT_URI",
				"http://localhost:8080/api/gmail/auth/callback")),
		},
		IMAP: IMAPConfig{
			Addr:     firstNonEmpty(raw.Mail.IMAP.Addr, os.Getenv("IMAP_ADDR")),
			Username: firstNonEmpty(raw.Mail.IMAP.Username, os.Getenv("IMAP_USERNAME")),
			Password: firstNonEmpty(raw.Mail.IMAP.Password, os.Getenv("IMAP_PASSWORD")),
			Mailbox:  firstNonEmpty(raw.Mail.IMAP.Mailbox, envOrDefault("IMAP_MAILBOX", "INBOX")),
			Insecure: raw.Mail.IMAP.Insecure || envBool("IMAP_INSECURE"),
		},
		Classifier: ClassifierConfig{
			Keywords:          cleanKeywords(raw.Classifier.Keywords),
			LongSnippet:       raw.Classifier.LongSnippet || envBool("CLASSIFIER_LONG_SNIPPET"),
			RequireAttachment: raw.Classifier.RequireAttachment || envBool("CLASSIFIER_REQUIRE_ATTACHMENT"),
		},
		StorageDriver:    strings.ToLower(firstNonEmpty(raw.Storage.Driver, envOrDefault("STORAGE_DRIVER", "postgres"))),
		DatabaseURL:      firstNonEmpty(raw.Storage.URL, os.Getenv("DATABASE_URL")),
		RedisURL:         firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		ComplaintsQueue:  firstNonEmpty(raw.Redis.Queues.Complaints, envOrDefault("COMPLAINTS_QUEUE", "complaints")),
		Port:             firstPositive(raw.Server.Port, envOrDefaultInt("PORT", 8080)),
		PostAuthRedirect: firstNonEmpty(raw.Server.PostAuthRedirect, envOrDefault("POST_AUTH_REDIRECT", "/dashboard/complaintpage")),
		CookieSecure:     raw.Server.CookieSecure || envBool("COOKIE_SECURE"),
		SessionTTL:       30 * 24 * time.Hour,
	}

	cfg.Places = cleanKeywords(raw.Extract.Places)
	if len(cfg.Places) == 0 {
		cfg.Places = cleanKeywords(splitList(os.Getenv("EXTRACT_PLACES")))
	}

	if ttl := firstNonEmpty(raw.Server.SessionTTL, os.Getenv("SESSION_TTL")); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid session_ttl %q", ttl)
		}
		cfg.SessionTTL = d
	}

	if cfg.MaxResults > MaxResultsLimit {
		return nil, fmt.Errorf("invalid max_results %d: a run scans at most %d messages", cfg.MaxResults, MaxResultsLimit)
	}

	switch cfg.Provider {
	case ProviderGmail, ProviderIMAP:
	default:
		return nil, fmt.Errorf("unknown mail provider %q (want %s or %s)", cfg.Provider, ProviderGmail, ProviderIMAP)
	}

	switch cfg.StorageDriver {
	case "postgres", "postgresql":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("no storage configured: set storage.url or DATABASE_URL")
		}
	case "sqlite":
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	return cfg, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func cleanKeywords(in []string) []string {
	var out []string
	for _, k := range in {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
