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
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/ragbook"
	"github.com/poiesic/ragbook/chunking"
	"github.com/poiesic/ragbook/ingestion"
)

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Ingest one or more .txt or .pdf files",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "strategy",
				Usage: "Chunking strategy (fixed_len, semantic)",
			},
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "Characters per chunk for fixed_len",
			},
			&cli.IntFlag{
				Name:  "chunk-overlap",
				Usage: "Characters shared by neighbouring chunks for fixed_len",
			},
			&cli.StringFlag{
				Name:  "split-by",
				Usage: "Semantic split unit (sentence, paragraph)",
			},
			&cli.IntFlag{
				Name:  "max-chunk-size",
				Usage: "Maximum characters per semantic chunk",
			},
		},
		Action: ingestAction,
	}
}

func ingestAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file is required")
	}

	return withService(c, func(ctx context.Context, svc *ragbook.Service) error {
		cfg := chunkingFromFlags(c, svc.Config().Chunking)

		reqs := make([]ingestion.Request, 0, c.NArg())
		for _, path := range c.Args().Slice() {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			reqs = append(reqs, ingestion.Request{
				Filename: filepath.Base(path),
				Data:     data,
				Chunking: cfg,
			})
		}

		failed := 0
		for _, r := range svc.Ingestion().IngestBatch(ctx, reqs) {
			if r.Err != nil {
				failed++
				fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", r.Filename, r.Err)
				continue
			}
			fmt.Fprintf(c.App.Writer, "%s: %d chunks (document %s)\n",
				r.Filename, r.Result.TotalChunks, r.Result.DocumentID)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(reqs))
		}
		return nil
	})
}

func chunkingFromFlags(c *cli.Context, cfg chunking.Config) chunking.Config {
	if c.IsSet("strategy") {
		cfg.Strategy = chunking.Strategy(c.String("strategy"))
	}
	if c.IsSet("chunk-size") {
		cfg.ChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("chunk-overlap") {
		cfg.ChunkOverlap = c.Int("chunk-overlap")
	}
	if c.IsSet("split-by") {
		cfg.SplitBy = chunking.SplitBy(c.String("split-by"))
	}
	if c.IsSet("max-chunk-size") {
		cfg.MaxChunkSize = c.Int("max-chunk-size")
	}
	return cfg
}
