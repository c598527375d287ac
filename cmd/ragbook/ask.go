package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/ragbook"
	"github.com/poiesic/ragbook/chat"
)

func askCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask one question against the ingested documents",
		ArgsUsage: "QUESTION...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "session",
				Aliases: []string{"s"},
				Usage:   "Continue an existing session",
			},
			&cli.IntFlag{
				Name:  "top-k",
				Usage: "Number of chunks to retrieve (1-20)",
			},
		},
		Action: func(c *cli.Context) error {
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("a question is required")
			}
			if c.IsSet("top-k") && c.Int("top-k") < 1 {
				return fmt.Errorf("top-k must be greater than 0")
			}
			return withService(c, func(ctx context.Context, svc *ragbook.Service) error {
				resp, err := svc.Chat().Ask(ctx, chat.Request{
					Query:     query,
					SessionID: c.String("session"),
					TopK:      c.Int("top-k"),
				})
				if err != nil {
					return err
				}

				out := c.App.Writer
				fmt.Fprintln(out, resp.Answer)
				fmt.Fprintln(out)
				fmt.Fprintf(out, "Session: %s\n", resp.SessionID)
				fmt.Fprintf(out, "Found %d contexts\n", len(resp.Contexts))
				for i, rc := range resp.Contexts {
					fmt.Fprintf(out, "%d: %s [%0.3f] %s\n", i, rc.Filename, rc.Score, rc.ChunkID)
				}
				return nil
			})
		},
	}
}
