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

package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/ragbook/core"
)

// MaxBatchSize is the largest number of entries sent in one provider call.
const MaxBatchSize = 100

// Metadata keys written by ingestion and read by the chat pipeline.
const (
	MetaChunkID    = "chunk_id"
	MetaChunkText  = "chunk_text"
	MetaFilename   = "filename"
	MetaChunkIndex = "chunk_index"
	MetaDocumentID = "document_id"
)

var (
	// ErrDimensionMismatch indicates a vector whose size differs from the store's.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidTopK indicates a non-positive result limit.
	ErrInvalidTopK = errors.New("top_k must be positive")

	// ErrEmptyKey indicates an entry without a key.
	ErrEmptyKey = errors.New("entry key cannot be empty")
)

// Entry is one vector with its key and metadata.
type Entry struct {
	Key      string
	Vector   []float32
	Metadata map[string]any
}

// Filter restricts search candidates to entries whose metadata equals every
// key/value pair. A nil or empty filter matches everything.
type Filter map[string]any

// Matches reports whether metadata satisfies the filter. Values are compared by
// their printed form so that numbers decoded from JSON match Go integers.
func (f Filter) Matches(metadata map[string]any) bool {
	for key, want := range f {
		got, ok := metadata[key]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// Store is a vector index with cosine similarity ranking.
// Implementations must be thread-safe for concurrent use.
type Store interface {
	// Name identifies the backend, e.g. "badger", "qdrant" or "pgvector".
	Name() string

	// Initialize ensures the collection exists with the configured dimension
	// and a cosine metric. It is safe to call repeatedly.
	Initialize(ctx context.Context) error

	// Upsert inserts or overwrites entries by key.
	Upsert(ctx context.Context, entries []Entry) error

	// Search returns up to topK entries most similar to vector, highest score first.
	Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]core.SearchResult, error)

	// Delete removes entries by key. Missing keys are ignored.
	Delete(ctx context.Context, keys []string) error

	// Close releases resources held by the store.
	Close() error
}

// Batches splits entries into consecutive slices of at most size entries.
func Batches[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = MaxBatchSize
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

// ValidateEntries checks keys and vector sizes before anything is written.
// A dimension of zero skips the size check.
func ValidateEntries(entries []Entry, dimension int) error {
	for i, e := range entries {
		if e.Key == "" {
			return core.Invalid(fmt.Errorf("%w: entry %d", ErrEmptyKey, i))
		}
		if dimension > 0 && len(e.Vector) != dimension {
			return core.Invalid(fmt.Errorf("%w: entry %q has %d, want %d", ErrDimensionMismatch, e.Key, len(e.Vector), dimension))
		}
	}
	return nil
}

// ValidateQuery checks a search request.
func ValidateQuery(vector []float32, topK int, dimension int) error {
	if topK < 1 {
		return core.Invalid(ErrInvalidTopK)
	}
	if dimension > 0 && len(vector) != dimension {
		return core.Invalid(fmt.Errorf("%w: query has %d, want %d", ErrDimensionMismatch, len(vector), dimension))
	}
	return nil
}
