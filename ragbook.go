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

// Package ragbook wires the document question answering service together.
//
// A Service owns every long-lived resource: the vector index, the
// conversation memory, the metadata store, the upload archive and the AI
// provider. Backends are chosen by name from dispatch tables, constructed
// explicitly by New and torn down by Close.
package ragbook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/poiesic/ragbook/ai"
	"github.com/poiesic/ragbook/ai/langchain"
	"github.com/poiesic/ragbook/blob"
	"github.com/poiesic/ragbook/blob/local"
	"github.com/poiesic/ragbook/blob/minio"
	"github.com/poiesic/ragbook/chat"
	"github.com/poiesic/ragbook/config"
	"github.com/poiesic/ragbook/ingestion"
	"github.com/poiesic/ragbook/memory"
	"github.com/poiesic/ragbook/memory/redis"
	"github.com/poiesic/ragbook/reindex"
	"github.com/poiesic/ragbook/storage"
	"github.com/poiesic/ragbook/storage/badger"
	"github.com/poiesic/ragbook/storage/sqlstore"
	"github.com/poiesic/ragbook/vectorstore"
	"github.com/poiesic/ragbook/vectorstore/pgvector"
	"github.com/poiesic/ragbook/vectorstore/qdrant"
)

var (
	// ErrConfigRequired is returned when no configuration is provided.
	ErrConfigRequired = errors.New("config required")

	// ErrUnknownBackend is returned for a backend name with no factory.
	ErrUnknownBackend = errors.New("unknown backend")
)

type vectorFactory func(ctx context.Context, cfg *config.Config, backend *badger.Backend) (vectorstore.Store, error)

type memoryFactory func(ctx context.Context, cfg *config.Config, backend *badger.Backend) (memory.Store, error)

type blobFactory func(ctx context.Context, cfg *config.Config) (blob.Store, error)

var vectorStores = map[string]vectorFactory{
	config.BackendBadger: func(_ context.Context, cfg *config.Config, backend *badger.Backend) (vectorstore.Store, error) {
		return badger.NewVectorStore(backend, cfg.AI.Dimensions)
	},
	config.BackendQdrant: func(_ context.Context, cfg *config.Config, _ *badger.Backend) (vectorstore.Store, error) {
		return qdrant.New(qdrant.Config{
			Address:    cfg.VectorStore.Qdrant.Address,
			APIKey:     cfg.VectorStore.Qdrant.APIKey,
			UseTLS:     cfg.VectorStore.Qdrant.UseTLS,
			Collection: cfg.VectorStore.Collection,
			Dimension:  cfg.AI.Dimensions,
		})
	},
	config.BackendPgvector: func(ctx context.Context, cfg *config.Config, _ *badger.Backend) (vectorstore.Store, error) {
		return pgvector.New(ctx, pgvector.Config{
			DSN:       cfg.VectorStore.Pgvector.DSN,
			Table:     cfg.VectorStore.Pgvector.Table,
			Dimension: cfg.AI.Dimensions,
		})
	},
}

var memoryStores = map[string]memoryFactory{
	config.BackendBadger: func(_ context.Context, cfg *config.Config, backend *badger.Backend) (memory.Store, error) {
		return badger.NewSessionStore(backend, cfg.Memory.Options())
	},
	config.BackendRedis: func(ctx context.Context, cfg *config.Config, _ *badger.Backend) (memory.Store, error) {
		return redis.Open(ctx, cfg.Memory.RedisURL, cfg.Memory.Options())
	},
}

var blobStores = map[string]blobFactory{
	config.BackendLocal: func(_ context.Context, cfg *config.Config) (blob.Store, error) {
		return local.New(cfg.Blob.Root)
	},
	config.BackendMinio: func(ctx context.Context, cfg *config.Config) (blob.Store, error) {
		return minio.New(ctx, cfg.Blob.Minio)
	},
	config.BackendNone: func(context.Context, *config.Config) (blob.Store, error) {
		return nil, nil
	},
}

// Backends returns the registered backend names per component.
func Backends() map[string][]string {
	return map[string][]string{
		"vector_store": sortedKeys(vectorStores),
		"memory":       sortedKeys(memoryStores),
		"blob":         sortedKeys(blobStores),
		"ai":           langchain.Providers(),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Service owns the resources of one running instance.
type Service struct {
	cfg       *config.Config
	backend   *badger.Backend
	vectors   vectorstore.Store
	memory    memory.Store
	metadata  storage.Repository
	blobs     blob.Store
	provider  ai.AIProvider
	ingestion *ingestion.Pipeline
	chat      *chat.Pipeline
	closers   []func() error
	logger    *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	provider ai.AIProvider
}

// WithAIProvider uses provider instead of building one from the AI section.
// The Service takes ownership and closes it.
func WithAIProvider(provider ai.AIProvider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// New builds every resource named by cfg. On failure everything opened so
// far is closed again.
func New(ctx context.Context, cfg *config.Config, opts ...ServiceOption) (svc *Service, err error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	options := &serviceOptions{}
	for _, opt := range opts {
		opt(options)
	}

	s := &Service{
		cfg:    cfg,
		logger: slog.Default().With("component", "service"),
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if cfg.UsesBadger() {
		s.backend, err = badger.OpenBackend(cfg.Badger.Path, cfg.Badger.InMemory)
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		s.onClose(s.backend.Close)
	}

	s.provider = options.provider
	if s.provider == nil {
		s.provider, err = langchain.NewProvider(cfg.AI.Config())
		if err != nil {
			return nil, err
		}
	}
	s.onClose(s.provider.Close)

	s.metadata, err = sqlstore.Open(ctx, cfg.Metadata.Driver, cfg.Metadata.DSN)
	if err != nil {
		return nil, err
	}
	s.onClose(s.metadata.Close)

	newVectors, ok := vectorStores[cfg.VectorStore.Backend]
	if !ok {
		return nil, fmt.Errorf("%w: vector store %q", ErrUnknownBackend, cfg.VectorStore.Backend)
	}
	s.vectors, err = newVectors(ctx, cfg, s.backend)
	if err != nil {
		return nil, err
	}
	s.onClose(s.vectors.Close)
	if err = s.vectors.Initialize(ctx); err != nil {
		return nil, err
	}

	newMemory, ok := memoryStores[cfg.Memory.Backend]
	if !ok {
		return nil, fmt.Errorf("%w: memory %q", ErrUnknownBackend, cfg.Memory.Backend)
	}
	s.memory, err = newMemory(ctx, cfg, s.backend)
	if err != nil {
		return nil, err
	}
	s.onClose(s.memory.Close)

	newBlobs, ok := blobStores[cfg.Blob.Backend]
	if !ok {
		return nil, fmt.Errorf("%w: blob %q", ErrUnknownBackend, cfg.Blob.Backend)
	}
	s.blobs, err = newBlobs(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ingestOpts := []ingestion.Option{
		ingestion.WithPoolSize(cfg.Ingestion.Workers),
		ingestion.WithPolicy(cfg.Upload.Policy()),
		ingestion.WithEmbeddingModel(cfg.AI.EmbeddingModel),
	}
	if s.blobs != nil {
		ingestOpts = append(ingestOpts, ingestion.WithBlobStore(s.blobs))
	}
	s.ingestion, err = ingestion.NewPipeline(s.metadata, s.vectors, s.provider.Embedder(), ingestOpts...)
	if err != nil {
		return nil, err
	}
	s.onClose(func() error {
		s.ingestion.Release()
		return nil
	})

	chatOpts := []chat.Option{
		chat.WithThreshold(cfg.Chat.SimilarityThreshold),
		chat.WithHistoryFetch(cfg.Chat.HistoryFetch),
		chat.WithDefaultTopK(cfg.Chat.TopK),
	}
	if cfg.Chat.Archive {
		chatOpts = append(chatOpts, chat.WithArchive(s.metadata))
	}
	s.chat, err = chat.NewPipeline(s.memory, s.vectors, s.provider, s.metadata, chatOpts...)
	if err != nil {
		return nil, err
	}

	s.logger.Info("service ready",
		"vector_store", s.vectors.Name(),
		"memory", s.memory.Name(),
		"metadata", cfg.Metadata.Driver,
		"blob", cfg.Blob.Backend,
		"ai", cfg.AI.Provider)
	return s, nil
}

func (s *Service) onClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Close releases every resource in reverse order of construction.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Error("error closing resource", "err", err)
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Config returns the configuration the service was built from.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Ingestion returns the ingestion pipeline.
func (s *Service) Ingestion() *ingestion.Pipeline {
	return s.ingestion
}

// Chat returns the chat pipeline.
func (s *Service) Chat() *chat.Pipeline {
	return s.chat
}

// Metadata returns the metadata repository.
func (s *Service) Metadata() storage.Repository {
	return s.metadata
}

// Vectors returns the vector store.
func (s *Service) Vectors() vectorstore.Store {
	return s.vectors
}

// NewReindexer creates a reindexer over the service's stores. Progress is
// written to progress.
func (s *Service) NewReindexer(cfg *reindex.Config, progress io.Writer) (*reindex.Reindexer, error) {
	return reindex.NewReindexer(s.metadata, s.vectors, s.provider.Embedder(), cfg, progress,
		reindex.WithCheckpoints(s.metadata))
}

// Health statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Health reports the reachability of each backing service.
type Health struct {
	Status         string            `json:"status"`
	Components     map[string]string `json:"components"`
	VectorStore    string            `json:"vector_store"`
	Memory         string            `json:"memory"`
	Metadata       string            `json:"metadata"`
	AIProvider     string            `json:"ai_provider"`
	EmbeddingModel string            `json:"embedding_model"`
	ChatModel      string            `json:"chat_model"`
}

// Health checks every backing service. A failing component is reported by
// its error text and marks the whole report degraded.
func (s *Service) Health(ctx context.Context) *Health {
	h := &Health{
		Status:         StatusOK,
		Components:     make(map[string]string, 3),
		VectorStore:    s.vectors.Name(),
		Memory:         s.memory.Name(),
		Metadata:       sqlstore.NormalizeDriver(s.cfg.Metadata.Driver),
		AIProvider:     s.cfg.AI.Provider,
		EmbeddingModel: s.cfg.AI.EmbeddingModel,
		ChatModel:      s.cfg.AI.ChatModel,
	}
	check := func(name string, err error) {
		if err != nil {
			h.Components[name] = err.Error()
			h.Status = StatusDegraded
			return
		}
		h.Components[name] = StatusOK
	}
	check("vector_store", checkVectors(ctx, s.vectors, s.cfg.AI.Dimensions))
	check("memory", s.memory.Ping(ctx))
	check("metadata", s.metadata.Ping(ctx))
	return h
}

// checkVectors runs a one result search with a unit vector.
func checkVectors(ctx context.Context, store vectorstore.Store, dimension int) error {
	query := make([]float32, max(dimension, 1))
	query[0] = 1
	_, err := store.Search(ctx, query, 1, nil)
	return err
}
