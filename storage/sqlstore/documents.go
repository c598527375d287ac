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

package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/storage"
)

type documentRow struct {
	ID             string         `db:"id"`
	Filename       string         `db:"filename"`
	FilePath       string         `db:"file_path"`
	FileSize       int64          `db:"file_size"`
	FileType       string         `db:"file_type"`
	Checksum       string         `db:"checksum"`
	TotalChunks    int            `db:"total_chunks"`
	Strategy       string         `db:"strategy"`
	ChunkingConfig sql.NullString `db:"chunking_config"`
	VectorStore    string         `db:"vector_store"`
	EmbeddingModel string         `db:"embedding_model"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r *documentRow) toDocument() (*core.Document, error) {
	config, err := storage.UnmarshalMetadata([]byte(r.ChunkingConfig.String))
	if err != nil {
		return nil, err
	}
	return &core.Document{
		ID:             r.ID,
		Filename:       r.Filename,
		FilePath:       r.FilePath,
		FileSize:       r.FileSize,
		FileType:       r.FileType,
		Checksum:       r.Checksum,
		TotalChunks:    r.TotalChunks,
		Strategy:       r.Strategy,
		ChunkingConfig: config,
		VectorStore:    r.VectorStore,
		EmbeddingModel: r.EmbeddingModel,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}, nil
}

const documentColumns = `id, filename, file_path, file_size, file_type, checksum, total_chunks,
	strategy, chunking_config, vector_store, embedding_model, created_at, updated_at`

type chunkRow struct {
	ID         string         `db:"id"`
	ChunkID    string         `db:"chunk_id"`
	DocumentID string         `db:"document_id"`
	Index      int            `db:"chunk_index"`
	Text       string         `db:"chunk_text"`
	VectorID   string         `db:"vector_id"`
	Metadata   sql.NullString `db:"metadata"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (r *chunkRow) toChunk() (*core.Chunk, error) {
	metadata, err := storage.UnmarshalMetadata([]byte(r.Metadata.String))
	if err != nil {
		return nil, err
	}
	return &core.Chunk{
		ID:         r.ID,
		ChunkID:    r.ChunkID,
		DocumentID: r.DocumentID,
		Index:      r.Index,
		Text:       r.Text,
		VectorID:   r.VectorID,
		Metadata:   metadata,
		CreatedAt:  r.CreatedAt.UTC(),
	}, nil
}

const chunkColumns = `id, chunk_id, document_id, chunk_index, chunk_text, vector_id, metadata, created_at`

func nullJSON(data []byte) sql.NullString {
	if len(data) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

// CreateDocument inserts a document. ID and timestamps are set if empty.
func (s *Store) CreateDocument(ctx context.Context, doc *core.Document) error {
	if doc == nil {
		return core.Invalidf("document is nil")
	}
	if doc.Filename == "" {
		return core.Invalidf("document filename is required")
	}
	if doc.ID == "" {
		doc.ID = core.NewID()
	}
	now := s.timestamp()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	config, err := storage.MarshalMetadata(doc.ChunkingConfig)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.FilePath, doc.FileSize, doc.FileType, doc.Checksum, doc.TotalChunks,
		doc.Strategy, nullJSON(config), doc.VectorStore, doc.EmbeddingModel,
		doc.CreatedAt.UTC(), doc.UpdatedAt.UTC())
	return translate("create document", err)
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var row documentRow
	if err := s.get(ctx, &row, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id); err != nil {
		return nil, translate("get document", err)
	}
	return row.toDocument()
}

// ListDocuments returns every document, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	var rows []documentRow
	if err := s.selectAll(ctx, &rows, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id`); err != nil {
		return nil, translate("list documents", err)
	}
	docs := make([]*core.Document, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].toDocument()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// DeleteDocument removes a document and, by cascade, its chunks.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return translate("delete document", s.execOne(ctx, `DELETE FROM documents WHERE id = ?`, id))
}

// CreateChunks inserts chunk rows in one transaction. IDs and timestamps are set if empty.
func (s *Store) CreateChunks(ctx context.Context, chunks ...*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	now := s.timestamp()
	return s.WithTransaction(ctx, func(ctx context.Context) error {
		for _, chunk := range chunks {
			if chunk == nil {
				return core.Invalidf("chunk is nil")
			}
			if chunk.ID == "" {
				chunk.ID = core.NewID()
			}
			if chunk.ChunkID == "" {
				chunk.ChunkID = core.ChunkID(chunk.DocumentID, chunk.Index)
			}
			if chunk.VectorID == "" {
				chunk.VectorID = core.VectorID(chunk.ChunkID)
			}
			if chunk.CreatedAt.IsZero() {
				chunk.CreatedAt = now
			}
			metadata, err := storage.MarshalMetadata(chunk.Metadata)
			if err != nil {
				return err
			}
			_, err = s.exec(ctx, `INSERT INTO document_chunks (`+chunkColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				chunk.ID, chunk.ChunkID, chunk.DocumentID, chunk.Index, chunk.Text, chunk.VectorID,
				nullJSON(metadata), chunk.CreatedAt.UTC())
			if err != nil {
				return translate("create chunk", err)
			}
		}
		return nil
	})
}

// ListChunks returns the chunks of a document ordered by index.
func (s *Store) ListChunks(ctx context.Context, documentID string) ([]*core.Chunk, error) {
	var rows []chunkRow
	err := s.selectAll(ctx, &rows, `SELECT `+chunkColumns+` FROM document_chunks
		WHERE document_id = ? ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, translate("list chunks", err)
	}
	return toChunks(rows)
}

// GetChunkByVectorID retrieves the chunk stored under a vector key.
func (s *Store) GetChunkByVectorID(ctx context.Context, vectorID string) (*core.Chunk, error) {
	var row chunkRow
	if err := s.get(ctx, &row, `SELECT `+chunkColumns+` FROM document_chunks WHERE vector_id = ?`, vectorID); err != nil {
		return nil, translate("get chunk", err)
	}
	return row.toChunk()
}

// ScanChunks returns up to limit chunks ordered by chunk id, starting after afterChunkID.
func (s *Store) ScanChunks(ctx context.Context, afterChunkID string, limit int) ([]*core.Chunk, error) {
	if limit <= 0 {
		return nil, core.Invalidf("scan limit must be positive, got %d", limit)
	}
	var rows []chunkRow
	err := s.selectAll(ctx, &rows, `SELECT `+chunkColumns+` FROM document_chunks
		WHERE chunk_id > ? ORDER BY chunk_id LIMIT ?`, afterChunkID, limit)
	if err != nil {
		return nil, translate("scan chunks", err)
	}
	return toChunks(rows)
}

// CountChunks returns the number of chunk rows.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	var count int
	if err := s.get(ctx, &count, `SELECT COUNT(*) FROM document_chunks`); err != nil {
		return 0, translate("count chunks", err)
	}
	return count, nil
}

func toChunks(rows []chunkRow) ([]*core.Chunk, error) {
	chunks := make([]*core.Chunk, 0, len(rows))
	for i := range rows {
		chunk, err := rows[i].toChunk()
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}
