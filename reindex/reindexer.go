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

package reindex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/ragbook/ai"
	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/storage"
	"github.com/poiesic/ragbook/vectorstore"
)

// ProcessorType names the reindex checkpoint.
const ProcessorType = "reindex"

// Config controls a reindex run.
type Config struct {
	// BatchSize is the number of chunks to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each provider call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Restart ignores a saved checkpoint and starts from the first chunk
	Restart bool
}

// DefaultConfig returns batches of 100 with three attempts per call.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reindexer re-embeds every stored chunk and upserts its vector entry.
type Reindexer struct {
	source      ChunkSource
	vectors     vectorstore.Store
	checkpoints storage.CheckpointRepository
	config      *Config
	progress    io.Writer
	processor   *BatchProcessor
	iterator    *ChunkIterator
	logger      *slog.Logger
}

// Option configures a Reindexer.
type Option func(*Reindexer)

// WithCheckpoints saves progress after every batch so that a later run can
// resume.
func WithCheckpoints(checkpoints storage.CheckpointRepository) Option {
	return func(r *Reindexer) {
		r.checkpoints = checkpoints
	}
}

// NewReindexer creates a reindexer writing progress to progress.
// A nil config uses DefaultConfig.
func NewReindexer(source ChunkSource, vectors vectorstore.Store, embedder ai.Embedder, config *Config, progress io.Writer, opts ...Option) (*Reindexer, error) {
	if source == nil {
		return nil, ErrChunkSourceRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxRetries <= 0 {
		return nil, core.Invalid(ErrInvalidMaxAttempts)
	}
	if progress == nil {
		progress = io.Discard
	}

	r := &Reindexer{
		source:    source,
		vectors:   vectors,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(vectors, embedder, config.MaxRetries, config.RetryDelay),
		iterator:  NewChunkIterator(source, config.BatchSize),
		logger:    slog.Default().With("component", "reindex"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run reindexes every chunk after the saved checkpoint and returns the
// number of chunks processed by this run.
func (r *Reindexer) Run(ctx context.Context) (int, error) {
	if err := r.vectors.Initialize(ctx); err != nil {
		return 0, core.External("initialize vector store", err)
	}

	total, err := r.source.CountChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks found in database (0 chunks)\n")
		return 0, nil
	}

	after, done, err := r.resumePoint(ctx)
	if err != nil {
		return 0, err
	}

	fmt.Fprintf(r.progress, "Starting reindex of %d chunks (batch size: %d)\n", total, r.iterator.batchSize)
	if after != "" {
		fmt.Fprintf(r.progress, "Resuming after chunk %s (%d already done)\n", after, done)
	}

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start(done)

	processed := 0
	err = r.iterator.ForEach(ctx, after, func(chunks []*core.Chunk) error {
		if err := r.processor.Process(ctx, chunks); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		processed += len(chunks)
		tracker.Advance(done + processed)
		return r.saveCheckpoint(ctx, chunks[len(chunks)-1].ChunkID, done+processed)
	})
	if err != nil {
		fmt.Fprintln(r.progress)
		r.logger.Error("reindex stopped", "count", processed, "err", err)
		return processed, err
	}

	tracker.Finish()
	if r.checkpoints != nil {
		if err := r.checkpoints.DeleteCheckpoint(ctx, ProcessorType); err != nil {
			r.logger.Warn("error removing checkpoint", "err", err)
		}
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindex complete. Processed %d chunks in %v\n", processed, elapsed.Round(time.Millisecond))
	r.logger.Info("reindex complete", "count", processed)
	return processed, nil
}

func (r *Reindexer) resumePoint(ctx context.Context) (string, int, error) {
	if r.checkpoints == nil {
		return "", 0, nil
	}
	if r.config.Restart {
		if err := r.checkpoints.DeleteCheckpoint(ctx, ProcessorType); err != nil {
			return "", 0, fmt.Errorf("failed to reset checkpoint: %w", err)
		}
		return "", 0, nil
	}
	cp, err := r.checkpoints.LoadCheckpoint(ctx, ProcessorType)
	if err != nil {
		return "", 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp == nil {
		return "", 0, nil
	}
	return cp.LastKey, cp.Processed, nil
}

func (r *Reindexer) saveCheckpoint(ctx context.Context, lastKey string, processed int) error {
	if r.checkpoints == nil {
		return nil
	}
	err := r.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		ProcessorType: ProcessorType,
		LastKey:       lastKey,
		Processed:     processed,
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}
