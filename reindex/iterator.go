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

	"github.com/poiesic/ragbook/core"
)

// DefaultBatchSize is the default number of chunks fetched per page.
const DefaultBatchSize = 100

// ChunkSource pages through stored chunks.
type ChunkSource interface {
	// ScanChunks returns up to limit chunks ordered by chunk id, starting
	// after afterChunkID.
	ScanChunks(ctx context.Context, afterChunkID string, limit int) ([]*core.Chunk, error)

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int, error)
}

// ChunkIterator walks every chunk in chunk id order, one page at a time.
type ChunkIterator struct {
	source    ChunkSource
	batchSize int
}

// NewChunkIterator creates an iterator fetching batchSize chunks per page.
func NewChunkIterator(source ChunkSource, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ChunkIterator{source: source, batchSize: batchSize}
}

// ForEach calls fn with each page of chunks whose id sorts after after.
// An empty after starts at the beginning. Iteration stops at the first
// error from fn or the source.
func (it *ChunkIterator) ForEach(ctx context.Context, after string, fn func([]*core.Chunk) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := it.source.ScanChunks(ctx, after, it.batchSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < it.batchSize {
			return nil
		}
		after = page[len(page)-1].ChunkID
	}
}
