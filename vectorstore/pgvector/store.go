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

// Package pgvector implements vectorstore.Store on PostgreSQL with the
// pgvector extension. Similarity is 1 - cosine distance (the <=> operator).
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/vectorstore"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "rag_vectors"

var (
	// ErrInvalidTable indicates a table name that is not a plain SQL identifier.
	ErrInvalidTable = errors.New("invalid table name")

	// ErrDimensionRequired indicates a non-positive vector dimension.
	ErrDimensionRequired = errors.New("vector dimension must be positive")

	// ErrDBRequired indicates a nil database handle.
	ErrDBRequired = errors.New("database handle required")
)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Config describes the PostgreSQL connection and table.
type Config struct {
	DSN       string
	Table     string
	Dimension int
}

// Store is a pgvector-backed vector store.
type Store struct {
	db        *sqlx.DB
	owned     bool
	table     string
	dimension int
	logger    *slog.Logger

	mu          sync.Mutex
	initialized bool
}

var _ vectorstore.Store = (*Store)(nil)

// New opens a connection pool to cfg.DSN.
func New(ctx context.Context, cfg Config) (vectorstore.Store, error) {
	if cfg.DSN == "" {
		return nil, core.Invalidf("pgvector dsn is required")
	}
	db, err := sqlx.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, core.External("pgvector open", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, core.External("pgvector ping", err)
	}
	s, err := newStore(db, cfg.Table, cfg.Dimension)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewWithDB uses an existing pool, for example the one of the metadata store.
// Close leaves the pool open.
func NewWithDB(db *sqlx.DB, table string, dimension int) (vectorstore.Store, error) {
	return newStore(db, table, dimension)
}

func newStore(db *sqlx.DB, table string, dimension int) (*Store, error) {
	if db == nil {
		return nil, ErrDBRequired
	}
	if table == "" {
		table = DefaultTable
	}
	if !identifier.MatchString(table) {
		return nil, core.Invalid(fmt.Errorf("%w: %q", ErrInvalidTable, table))
	}
	if dimension <= 0 {
		return nil, core.Invalid(ErrDimensionRequired)
	}
	return &Store{
		db:        db,
		table:     table,
		dimension: dimension,
		logger:    slog.Default().With("component", "pgvector", "table", table),
	}, nil
}

// Name identifies the backend.
func (s *Store) Name() string {
	return "pgvector"
}

// Initialize creates the extension, table and index if needed and verifies
// the dimension of an existing table.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}

	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return core.External("pgvector initialize", err)
		}
	}

	// atttypmod of a vector column is its dimension.
	var dim int
	err := s.db.GetContext(ctx, &dim,
		`SELECT a.atttypmod FROM pg_attribute a
			JOIN pg_class c ON c.oid = a.attrelid
			WHERE c.relname = $1 AND a.attname = 'embedding' AND pg_table_is_visible(c.oid)`, s.table)
	if err != nil {
		return core.External("pgvector dimension", err)
	}
	if dim > 0 && dim != s.dimension {
		return core.Invalid(fmt.Errorf("%w: table %q has %d, want %d",
			vectorstore.ErrDimensionMismatch, s.table, dim, s.dimension))
	}
	s.initialized = true
	return nil
}

func (s *Store) schema() []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb
		)`, s.table, s.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`,
			s.table, s.table),
	}
}

// Upsert writes entries, one transaction per batch.
func (s *Store) Upsert(ctx context.Context, entries []vectorstore.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := vectorstore.ValidateEntries(entries, s.dimension); err != nil {
		return err
	}
	if err := s.Initialize(ctx); err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (key, embedding, metadata) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata`, s.table)
	for _, batch := range vectorstore.Batches(entries, vectorstore.MaxBatchSize) {
		if err := s.upsertBatch(ctx, query, batch); err != nil {
			return err
		}
	}
	s.logger.Debug("upserted vectors", "count", len(entries))
	return nil
}

func (s *Store) upsertBatch(ctx context.Context, query string, batch []vectorstore.Entry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.External("pgvector begin", err)
	}
	defer tx.Rollback()

	for _, e := range batch {
		metadata, err := encodeMetadata(e.Metadata)
		if err != nil {
			return core.Invalid(fmt.Errorf("entry %q metadata: %w", e.Key, err))
		}
		if _, err := tx.ExecContext(ctx, query, e.Key, pgvector.NewVector(e.Vector), metadata); err != nil {
			return core.External("pgvector upsert", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return core.External("pgvector commit", err)
	}
	return nil
}

type searchRow struct {
	Key      string  `db:"key"`
	Metadata []byte  `db:"metadata"`
	Score    float64 `db:"score"`
}

// Search returns the topK nearest entries. Ties are broken by key.
func (s *Store) Search(ctx context.Context, vector []float32, topK int, filter vectorstore.Filter) ([]core.SearchResult, error) {
	if err := vectorstore.ValidateQuery(vector, topK, s.dimension); err != nil {
		return nil, err
	}
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	containment, err := encodeMetadata(filter)
	if err != nil {
		return nil, core.Invalid(fmt.Errorf("filter: %w", err))
	}

	var rows []searchRow
	err = s.db.SelectContext(ctx, &rows, fmt.Sprintf(`SELECT key, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE metadata @> $2::jsonb
		ORDER BY embedding <=> $1, key
		LIMIT $3`, s.table), pgvector.NewVector(vector), containment, topK)
	if err != nil {
		return nil, core.External("pgvector search", err)
	}

	results := make([]core.SearchResult, 0, len(rows))
	for _, row := range rows {
		var metadata map[string]any
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			return nil, core.External("pgvector decode metadata", err)
		}
		results = append(results, core.SearchResult{
			Key:      row.Key,
			Score:    float32(row.Score),
			Metadata: metadata,
		})
	}
	return results, nil
}

// Delete removes entries by key in batches.
func (s *Store) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.Initialize(ctx); err != nil {
		return err
	}
	for _, batch := range vectorstore.Batches(keys, vectorstore.MaxBatchSize) {
		query, args, err := sqlx.In(fmt.Sprintf(`DELETE FROM %s WHERE key IN (?)`, s.table), batch)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
			return core.External("pgvector delete", err)
		}
	}
	return nil
}

// Close closes the pool when the store opened it.
func (s *Store) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

// encodeMetadata renders metadata as a JSON object. Nil becomes "{}", which
// as a containment filter matches every row.
func encodeMetadata[M ~map[string]any](metadata M) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
