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

// Complaint Triage Operator CLI
//
// Runs ingestion passes and manages stored complaints without the
// dashboard. Intended for cron jobs, seeding and local debugging.
//
// Usage:
//
//	triagectl fetch [--token-file token.json] [--max 20]
//	triagectl process <message-id>...
//	triagectl token export --session <id> [--token-file token.json]
//	triagectl list [--status open] [--limit 20]
//	triagectl resolve <complaint-id>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/civicdesk/triage/internal/auth"
	"github.com/civicdesk/triage/internal/classify"
	"github.com/civicdesk/triage/internal/config"
	"github.com/civicdesk/triage/internal/dedup"
	"github.com/civicdesk/triage/internal/extract"
	"github.com/civicdesk/triage/internal/gmail"
	"github.com/civicdesk/triage/internal/imapgw"
	"github.com/civicdesk/triage/internal/ingest"
	"github.com/civicdesk/triage/internal/models"
	"github.com/civicdesk/triage/internal/queue"
	"github.com/civicdesk/triage/internal/store"
)

var (
	tokenFile string
	verbose   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "triagectl",
		Short: "Operate the complaint triage pipeline",
		Long: `triagectl runs mailbox ingestion passes and manages stored
complaints using the same configuration as the triage service.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelInfo
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress to stderr")
	rootCmd.PersistentFlags().StringVar(&tokenFile, "token-file", os.Getenv("MAIL_TOKEN_FILE"), "JSON OAuth token for the gmail provider")

	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func fetchCmd() *cobra.Command {
	var maxResults int

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Scan the mailbox once and store new complaints",
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxResults > config.MaxResultsLimit {
				return fmt.Errorf("invalid --max %d: a run scans at most %d messages", maxResults, config.MaxResultsLimit)
			}
			return withRuntime(cmd.Context(), maxResults, func(ctx context.Context, rt *runtime) error {
				result, err := rt.svc.Run(ctx, rt.token)
				if err != nil {
					printRunError(os.Stderr, err)
					return err
				}
				rt.saveToken(result.Token)
				for _, line := range result.Logs {
					fmt.Println(line)
				}
				fmt.Printf("\nprocessed=%d complaints=%d duplicates=%d skipped=%d errors=%d elapsed=%s\n",
					result.TotalProcessed, result.ComplaintsFound, result.Duplicates,
					result.Skipped, result.Errors, result.Elapsed.Round(time.Millisecond))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&maxResults, "max", 0, "maximum messages to scan (default from config)")

	return cmd
}

func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <message-id>...",
		Short: "Classify and store specific messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), 0, func(ctx context.Context, rt *runtime) error {
				result, err := rt.svc.Process(ctx, rt.token, args)
				if err != nil {
					printRunError(os.Stderr, err)
					return err
				}
				rt.saveToken(result.Token)

				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "MESSAGE\tSTATUS\tCOMPLAINT\tRISK\tERROR")
				for _, item := range result.Items {
					complaintID, risk := "-", "-"
					if item.Complaint != nil {
						complaintID = item.Complaint.ID
					}
					if item.Risk != nil {
						risk = fmt.Sprintf("%.1f %s", item.Risk.Score, item.Risk.Priority)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", item.MessageID, item.Status, complaintID, risk, item.Error)
				}
				return w.Flush()
			})
		},
	}
}

func listCmd() *cobra.Command {
	var (
		status string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored complaints, highest risk first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && !models.Status(status).Valid() {
				return fmt.Errorf("invalid --status %q: want open or closed", status)
			}
			return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
				complaints, err := st.List(ctx, store.ListOptions{Status: models.Status(status), Limit: limit})
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(complaints)
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tRISK\tPRIORITY\tSTATUS\tSENDER\tSUBJECT")
				for _, c := range complaints {
					fmt.Fprintf(w, "%s\t%.1f\t%s\t%s\t%s\t%s\n",
						c.ID, c.Risk.Score, c.Risk.Priority, c.Status, c.Extracted.Sender, c.Extracted.Subject)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (open or closed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of complaints to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print complaints as JSON")

	return cmd
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <complaint-id>",
		Short: "Mark a complaint as closed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
				c, err := st.Resolve(ctx, args[0], time.Now().UTC())
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("complaint %s not found", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Printf("%s closed at %s\n", c.ID, c.ResolvedAt.Format(time.RFC3339))
				return nil
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the OAuth token used by fetch and process",
	}

	var sessionID string
	export := &cobra.Command{
		Use:   "export",
		Short: "Copy a dashboard session's token to --token-file (or stdout)",
		Long: `Reads the token stored for a dashboard session. The session ID is the
value of the triage_session cookie set after authorising the mailbox.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("invalid REDIS_URL: %w", err)
			}
			rdb := redis.NewClient(opt)
			defer rdb.Close()

			tok, err := auth.NewTokenStore(rdb, cfg.SessionTTL).Load(ctx, sessionID)
			if errors.Is(err, auth.ErrMissingToken) {
				return fmt.Errorf("no token stored for session %q; authorise through the dashboard first", sessionID)
			}
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(tok, "", "  ")
			if err != nil {
				return err
			}
			if tokenFile == "" {
				fmt.Println(string(data))
				return nil
			}
			if err := os.WriteFile(tokenFile, data, 0o600); err != nil {
				return fmt.Errorf("write token file: %w", err)
			}
			fmt.Fprintf(os.Stderr, "token written to %s\n", tokenFile)
			return nil
		},
	}
	export.Flags().StringVar(&sessionID, "session", "", "dashboard session ID (triage_session cookie)")
	export.MarkFlagRequired("session")

	cmd.AddCommand(export)
	return cmd
}

// runtime is the wiring one ingestion command needs.
type runtime struct {
	svc   *ingest.Service
	token *oauth2.Token
}

// saveToken writes a refreshed token back to --token-file.
func (rt *runtime) saveToken(tok *oauth2.Token) {
	if tokenFile == "" || tok == nil || rt.token == nil || tok.AccessToken == rt.token.AccessToken {
		return
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		slog.Warn("failed to encode refreshed token", "error", err)
		return
	}
	if err := os.WriteFile(tokenFile, data, 0o600); err != nil {
		slog.Warn("failed to save refreshed token", "path", tokenFile, "error", err)
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
}

func withStore(parent context.Context, fn func(ctx context.Context, st store.Store) error) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	st, err := store.Open(ctx, cfg.StorageDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	return fn(ctx, st)
}

func withRuntime(parent context.Context, maxResults int, fn func(ctx context.Context, rt *runtime) error) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if maxResults <= 0 {
		maxResults = cfg.MaxResults
	}

	st, err := store.Open(ctx, cfg.StorageDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	// The queue is optional for operator runs.
	var publisher ingest.Publisher
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()

		p := queue.NewPublisher(rdb, cfg.ComplaintsQueue)
		if err := p.Ping(ctx); err != nil {
			slog.Warn("redis unreachable; complaints will not be queued", "error", err)
		} else {
			publisher = p
		}
	}

	var (
		connector ingest.Connector
		tok       *oauth2.Token
	)
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
		authn := auth.New(auth.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
		})
		connector = gmail.NewConnector(authn, gmail.NewBreaker("gmail-api"))
		if tokenFile != "" {
			if tok, err = readToken(tokenFile); err != nil {
				return err
			}
		}
	}

	keywords := cfg.Classifier.Keywords
	if len(keywords) == 0 {
		keywords = classify.DefaultKeywords
	}
	places := cfg.Places
	if len(places) == 0 {
		places = extract.DefaultPlaces
	}

	svc := ingest.NewService(ingest.Config{
		Connector: connector,
		Store:     st,
		Dedup:     dedup.NewChecker(st),
		Classifier: classify.New(keywords, classify.Policy{
			LongSnippet:       cfg.Classifier.LongSnippet,
			RequireAttachment: cfg.Classifier.RequireAttachment,
		}),
		Places:     extract.NewPlaces(places),
		Publisher:  publisher,
		Source:     cfg.Provider,
		Query:      cfg.Query,
		MaxResults: maxResults,
	})

	return fn(ctx, &runtime{svc: svc, token: tok})
}

func readToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", path, err)
	}
	return &tok, nil
}

func printRunError(w io.Writer, err error) {
	var re *ingest.RunError
	if !errors.As(err, &re) {
		fmt.Fprintln(w, "Error:", err)
		return
	}
	for _, line := range re.Logs {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "Error [%s]: %s\n", re.Code, re.Message)
	if re.IsAuth() {
		fmt.Fprintln(w, "Re-authorise through the dashboard, then run: triagectl token export --session <id> --token-file <path>")
	}
}
