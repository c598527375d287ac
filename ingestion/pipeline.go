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

package ingestion

import (
	"bytes"
	"context"
	"log/slog"
	"mime"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/ragbook/ai"
	"github.com/poiesic/ragbook/blob"
	"github.com/poiesic/ragbook/chunking"
	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/extract"
	"github.com/poiesic/ragbook/storage"
	"github.com/poiesic/ragbook/vectorstore"
)

// MetadataStore is the part of the metadata repository ingestion writes to.
type MetadataStore interface {
	storage.TransactionManager
	storage.DocumentRepository
}

// Pipeline orchestrates document ingestion and deletion.
type Pipeline struct {
	metadata       MetadataStore
	vectors        vectorstore.Store
	embedder       ai.Embedder
	blobs          blob.Store
	policy         extract.Policy
	embeddingModel string
	pool           *ants.Pool
	logger         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size used by IngestBatch.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithBlobStore archives raw uploads in store.
func WithBlobStore(store blob.Store) Option {
	return func(p *Pipeline) error {
		p.blobs = store
		return nil
	}
}

// WithPolicy sets the upload allow-list and size ceiling.
func WithPolicy(policy extract.Policy) Option {
	return func(p *Pipeline) error {
		p.policy = policy
		return nil
	}
}

// WithEmbeddingModel sets the model name recorded on documents.
func WithEmbeddingModel(name string) Option {
	return func(p *Pipeline) error {
		p.embeddingModel = name
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(metadata MetadataStore, vectors vectorstore.Store, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if metadata == nil {
		return nil, ErrMetadataStoreRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		metadata: metadata,
		vectors:  vectors,
		embedder: embedder,
		policy:   extract.DefaultPolicy(),
		pool:     pool,
		logger:   slog.Default().With("component", "ingestion"),
	}
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	return p, nil
}

// Request is one uploaded file.
type Request struct {
	Filename string
	Data     []byte
	Chunking chunking.Config
}

// Document is extracted text ready for chunking.
type Document struct {
	Filename string
	FileType string // extension without the dot
	Text     string
	Raw      []byte // archived when a blob store is configured; may be nil
}

// Result describes an ingested document.
type Result struct {
	DocumentID  string
	Filename    string
	TotalChunks int
	Strategy    string
	VectorStore string
	CreatedAt   time.Time
	Message     string
}

// IngestFile validates an upload, extracts its text and ingests it.
func (p *Pipeline) IngestFile(ctx context.Context, req Request) (*Result, error) {
	ext, err := p.policy.Check(req.Filename, int64(len(req.Data)))
	if err != nil {
		return nil, err
	}
	p.logger.Info("processing file", "filename", req.Filename, "bytes", len(req.Data))
	text, err := p.policy.Extract(req.Filename, req.Data)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("extracted text", "filename", req.Filename, "chars", len(text))

	return p.Ingest(ctx, Document{
		Filename: req.Filename,
		FileType: strings.TrimPrefix(ext, "."),
		Text:     text,
		Raw:      req.Data,
	}, req.Chunking)
}

// Ingest chunks, embeds and stores a document. Validation failures are
// reported before anything is written. A failed vector upsert leaves the
// metadata rows in place for reindexing.
func (p *Pipeline) Ingest(ctx context.Context, doc Document, cfg chunking.Config) (*Result, error) {
	if strings.TrimSpace(doc.Filename) == "" {
		return nil, core.Invalid(ErrFilenameRequired)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, core.Invalid(ErrEmptyText)
	}
	chunker, err := chunking.New(cfg)
	if err != nil {
		return nil, err
	}
	texts := chunker.Chunk(doc.Text)
	if len(texts) == 0 {
		return nil, core.Invalid(ErrNoChunks)
	}
	p.logger.Info("created chunks", "filename", doc.Filename, "count", len(texts))

	embeddings, err := EmbedDocuments(ctx, p.embedder, texts)
	if err != nil {
		return nil, err
	}

	source := doc.Raw
	if source == nil {
		source = []byte(doc.Text)
	}
	document := &core.Document{
		ID:             core.NewID(),
		Filename:       doc.Filename,
		FileSize:       int64(len(source)),
		FileType:       doc.FileType,
		Checksum:       core.Checksum(source),
		TotalChunks:    len(texts),
		Strategy:       string(cfg.Strategy),
		ChunkingConfig: cfg.Params(),
		VectorStore:    p.vectors.Name(),
		EmbeddingModel: p.embeddingModel,
	}

	if p.blobs != nil && doc.Raw != nil {
		location, err := p.blobs.Put(ctx, blob.Key(document.ID, doc.Filename), bytes.NewReader(doc.Raw),
			int64(len(doc.Raw)), contentType(doc.FileType))
		if err != nil {
			return nil, core.External("archive upload", err)
		}
		document.FilePath = location
	}

	chunks := make([]*core.Chunk, len(texts))
	entries := make([]vectorstore.Entry, len(texts))
	for i, text := range texts {
		chunkID := core.ChunkID(document.ID, i)
		chunks[i] = &core.Chunk{
			ChunkID:    chunkID,
			DocumentID: document.ID,
			Index:      i,
			Text:       text,
			VectorID:   core.VectorID(chunkID),
			Metadata:   ChunkMetadata(doc.Filename, document.ID),
		}
		entries[i] = VectorEntry(chunks[i], doc.Filename, embeddings[i])
	}

	err = p.metadata.WithTransaction(ctx, func(ctx context.Context) error {
		if err := p.metadata.CreateDocument(ctx, document); err != nil {
			return err
		}
		return p.metadata.CreateChunks(ctx, chunks...)
	})
	if err != nil {
		p.discardUpload(ctx, document)
		return nil, core.External("record document", err)
	}

	if err := p.vectors.Upsert(ctx, entries); err != nil {
		p.logger.Error("vector upsert failed; metadata kept for reindex",
			"document", document.ID, "count", len(entries), "err", err)
		return nil, core.External("upsert vectors", err)
	}

	p.logger.Info("ingested document", "document", document.ID, "filename", doc.Filename, "count", len(chunks))
	return &Result{
		DocumentID:  document.ID,
		Filename:    document.Filename,
		TotalChunks: document.TotalChunks,
		Strategy:    document.Strategy,
		VectorStore: document.VectorStore,
		CreatedAt:   document.CreatedAt,
		Message:     "Document ingested successfully",
	}, nil
}

func (p *Pipeline) discardUpload(ctx context.Context, document *core.Document) {
	if p.blobs == nil || document.FilePath == "" {
		return
	}
	if err := p.blobs.DeletePrefix(ctx, blob.DocumentPrefix(document.ID)); err != nil {
		p.logger.Warn("error removing archived upload", "document", document.ID, "err", err)
	}
}

func contentType(fileType string) string {
	if t := mime.TypeByExtension("." + fileType); t != "" {
		return t
	}
	return "application/octet-stream"
}

// BatchResult is the outcome of one file of an IngestBatch call.
type BatchResult struct {
	Filename string
	Result   *Result
	Err      error
}

// IngestBatch ingests independent files concurrently on the worker pool.
// Results are returned in request order; one failing file does not affect
// the others.
func (p *Pipeline) IngestBatch(ctx context.Context, reqs []Request) []BatchResult {
	results := make([]BatchResult, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		results[i].Filename = req.Filename
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			results[i].Result, results[i].Err = p.IngestFile(ctx, req)
		})
		if err != nil {
			wg.Done()
			results[i].Err = err
		}
	}
	wg.Wait()
	return results
}

// DeleteDocument removes a document's vectors, its metadata rows and its
// archived upload. Vectors go first so that a partial failure never leaves
// searchable entries without metadata.
func (p *Pipeline) DeleteDocument(ctx context.Context, documentID string) error {
	document, err := p.metadata.GetDocument(ctx, documentID)
	if err != nil {
		return core.External("load document", err)
	}
	chunks, err := p.metadata.ListChunks(ctx, documentID)
	if err != nil {
		return core.External("load chunks", err)
	}

	keys := make([]string, len(chunks))
	for i, c := range chunks {
		keys[i] = c.VectorID
	}
	if err := p.vectors.Delete(ctx, keys); err != nil {
		return core.External("delete vectors", err)
	}
	if err := p.metadata.DeleteDocument(ctx, documentID); err != nil {
		return core.External("delete document", err)
	}
	p.discardUpload(ctx, document)

	p.logger.Info("deleted document", "document", documentID, "count", len(keys))
	return nil
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
