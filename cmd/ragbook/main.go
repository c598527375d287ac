// Copyright 2025 Poiesic Systems
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

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/ragbook"
	"github.com/poiesic/ragbook/config"
	"github.com/poiesic/ragbook/reindex"
)

// envChatToken is consulted when --chat-token is not given.
const envChatToken = "GROQ_API_KEY"

// openService builds the service for a command. Tests replace it to inject
// a mock AI provider.
var openService = func(ctx context.Context, cfg *config.Config) (*ragbook.Service, error) {
	return ragbook.New(ctx, cfg)
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ragbook",
		Usage: "Document question answering with interview booking",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				EnvVars: []string{"RAGBOOK_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Environment file loaded before the configuration",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "chat-token",
				Usage: "API token for the chat host (defaults to $" + envChatToken + ")",
			},
		},
		Before: func(c *cli.Context) error {
			if err := setupLogger(c); err != nil {
				return err
			}
			return config.LoadEnv(c.String("env-file"))
		},
		Commands: []*cli.Command{
			serveCommand(),
			ingestCommand(),
			documentsCommand(),
			askCommand(),
			reindexCommand(),
			bookingsCommand(),
		},
	}
}

// loadConfig reads the configuration named by the global flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	token := c.String("chat-token")
	if token == "" {
		token = os.Getenv(envChatToken)
	}
	cfg, err := config.Load(c.String("config"), func(cfg *config.Config) {
		if token != "" && cfg.AI.ChatToken == "" {
			cfg.AI.ChatToken = token
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// withService loads the configuration, opens the service and runs fn.
func withService(c *cli.Context, fn func(ctx context.Context, svc *ragbook.Service) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := openService(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()
	return fn(ctx, svc)
}

func reindexCommand() *cli.Command {
	return &cli.Command{
		Name:   "reindex",
		Usage:  "Re-embed every stored chunk and rewrite its vector",
		Action: reindexAction,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Number of chunks to process in each batch",
				Value: reindex.DefaultBatchSize,
			},
			&cli.IntFlag{
				Name:  "report-interval",
				Usage: "Report progress every N chunks",
				Value: 100,
			},
			&cli.IntFlag{
				Name:  "max-retries",
				Usage: "Maximum retry attempts for failed operations",
				Value: 3,
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Base delay for exponential backoff",
				Value: 1 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "restart",
				Usage: "Discard the saved checkpoint and start from the first chunk",
			},
		},
	}
}

func reindexAction(c *cli.Context) error {
	cfg := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		Restart:        c.Bool("restart"),
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if cfg.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if cfg.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	return withService(c, func(ctx context.Context, svc *ragbook.Service) error {
		out := c.App.ErrWriter
		fmt.Fprintf(out, "Vector store: %s\n", svc.Vectors().Name())
		fmt.Fprintf(out, "Embedding model: %s\n", svc.Config().AI.EmbeddingModel)
		fmt.Fprintln(out)

		r, err := svc.NewReindexer(cfg, out)
		if err != nil {
			return err
		}
		if _, err := r.Run(ctx); err != nil {
			return fmt.Errorf("reindex failed: %w", err)
		}
		return nil
	})
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
