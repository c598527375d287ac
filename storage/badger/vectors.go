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

package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/vectorstore"
)

// vectorRecord is the stored form of a vectorstore.Entry.
type vectorRecord struct {
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata"`
}

// VectorStore implements vectorstore.Store with a brute-force cosine scan over
// every stored vector. It suits local deployments with modest corpora.
type VectorStore struct {
	backend   *Backend
	dimension int
	logger    *slog.Logger
}

var _ vectorstore.Store = (*VectorStore)(nil)

// NewVectorStore creates a vector store on backend. A dimension of zero
// accepts vectors of any size.
func NewVectorStore(backend *Backend, dimension int) (*VectorStore, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	return &VectorStore{
		backend:   backend,
		dimension: dimension,
		logger:    slog.Default().With("component", "badger-vectors"),
	}, nil
}

// Name returns "badger".
func (s *VectorStore) Name() string {
	return "badger"
}

// Initialize records the dimension on first use and rejects a store created
// with a different one.
func (s *VectorStore) Initialize(ctx context.Context) error {
	if s.dimension == 0 {
		return nil
	}
	return s.backend.Update(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(vectorDimensionKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(s.dimension))
			return tx.Set([]byte(vectorDimensionKey), buf)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt dimension record")
			}
			if stored := int(binary.BigEndian.Uint64(val)); stored != s.dimension {
				return core.Invalid(fmt.Errorf("%w: collection has %d, configured %d", vectorstore.ErrDimensionMismatch, stored, s.dimension))
			}
			return nil
		})
	})
}

// Upsert writes entries in transactions of vectorstore.MaxBatchSize entries.
func (s *VectorStore) Upsert(ctx context.Context, entries []vectorstore.Entry) error {
	if err := vectorstore.ValidateEntries(entries, s.dimension); err != nil {
		return err
	}
	if err := s.Initialize(ctx); err != nil {
		return err
	}

	for _, batch := range vectorstore.Batches(entries, vectorstore.MaxBatchSize) {
		err := s.backend.Update(func(tx *badger.Txn) error {
			for _, entry := range batch {
				value, err := json.Marshal(vectorRecord{Vector: vectorstore.Normalize(entry.Vector), Metadata: entry.Metadata})
				if err != nil {
					return err
				}
				if err := tx.Set(makeVectorKey(entry.Key), value); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			s.logger.Error("failed to upsert vectors", "count", len(batch), "err", err)
			return core.External("badger upsert", err)
		}
	}
	s.logger.Debug("upserted vectors", "count", len(entries))
	return nil
}

// Search scores every stored vector against the query and returns the best topK.
func (s *VectorStore) Search(ctx context.Context, vector []float32, topK int, filter vectorstore.Filter) ([]core.SearchResult, error) {
	if err := vectorstore.ValidateQuery(vector, topK, s.dimension); err != nil {
		return nil, err
	}

	// Stored vectors are unit length, so the dot product is the cosine.
	query := vectorstore.Normalize(vector)
	var results []core.SearchResult
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()

			var record vectorRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return err
			}
			if !filter.Matches(record.Metadata) {
				continue
			}

			results = append(results, core.SearchResult{
				Key:      vectorKeyName(item.KeyCopy(nil)),
				Score:    vectorstore.DotProduct(query, record.Vector),
				Metadata: record.Metadata,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, core.External("badger search", err)
	}

	// Sort by similarity descending, key ascending for stable ties
	slices.SortFunc(results, func(a, b core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		if a.Key < b.Key {
			return -1
		}
		if a.Key > b.Key {
			return 1
		}
		return 0
	})

	if len(results) > topK {
		results = results[:topK]
	}
	if results == nil {
		results = []core.SearchResult{}
	}
	return results, nil
}

// Delete removes entries by key. Missing keys are ignored.
func (s *VectorStore) Delete(ctx context.Context, keys []string) error {
	for _, batch := range vectorstore.Batches(keys, vectorstore.MaxBatchSize) {
		err := s.backend.Update(func(tx *badger.Txn) error {
			for _, key := range batch {
				if err := tx.Delete(makeVectorKey(key)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return core.External("badger delete", err)
		}
	}
	return nil
}

// Count returns the number of stored vectors.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Close is a no-op. The backend is closed by its owner.
func (s *VectorStore) Close() error {
	return nil
}
