package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/ragbook"
)

func documentsCommand() *cli.Command {
	return &cli.Command{
		Name:  "documents",
		Usage: "Inspect and delete ingested documents",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List documents, newest first",
				Action: func(c *cli.Context) error {
					return withService(c, func(ctx context.Context, svc *ragbook.Service) error {
						docs, err := svc.Metadata().ListDocuments(ctx)
						if err != nil {
							return err
						}
						w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
						fmt.Fprintln(w, "ID\tFILENAME\tCHUNKS\tSTRATEGY\tCREATED")
						for _, d := range docs {
							fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
								d.ID, d.Filename, d.TotalChunks, d.Strategy, d.CreatedAt.Format(time.RFC3339))
						}
						return w.Flush()
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a document with its chunks, vectors and archived upload",
				ArgsUsage: "ID",
				Action: func(c *cli.Context) error {
					id := c.Args().First()
					if id == "" {
						return fmt.Errorf("document id is required")
					}
					return withService(c, func(ctx context.Context, svc *ragbook.Service) error {
						if err := svc.Ingestion().DeleteDocument(ctx, id); err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "Deleted document %s\n", id)
						return nil
					})
				},
			},
		},
	}
}
