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

// Package config loads the process configuration.
//
// Configuration is a YAML document. ${VAR} references are expanded against
// the environment before parsing, after loading any .env files. Fields left
// out of the document keep the values of Default.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/ragbook/ai"
	"github.com/poiesic/ragbook/blob/minio"
	"github.com/poiesic/ragbook/chunking"
	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/extract"
	"github.com/poiesic/ragbook/memory"
	"github.com/poiesic/ragbook/storage/sqlstore"
)

// Backend names.
const (
	BackendBadger   = "badger"
	BackendQdrant   = "qdrant"
	BackendPgvector = "pgvector"
	BackendRedis    = "redis"
	BackendLocal    = "local"
	BackendMinio    = "minio"
	BackendNone     = "none"
)

// Config is the root process configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Upload      UploadConfig      `yaml:"upload"`
	Chunking    chunking.Config   `yaml:"chunking"`
	AI          AIConfig          `yaml:"ai"`
	Badger      BadgerConfig      `yaml:"badger"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Memory      MemoryConfig      `yaml:"memory"`
	Metadata    MetadataConfig    `yaml:"metadata"`
	Blob        BlobConfig        `yaml:"blob"`
	Chat        ChatConfig        `yaml:"chat"`
	Ingestion   IngestionConfig   `yaml:"ingestion"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// UploadConfig bounds accepted uploads.
type UploadConfig struct {
	MaxSize           int64    `yaml:"max_size"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// Policy returns the extraction policy for the upload limits.
func (u UploadConfig) Policy() extract.Policy {
	return extract.Policy{AllowedExtensions: u.AllowedExtensions, MaxSize: u.MaxSize}
}

// AIConfig configures the embedding and chat providers.
type AIConfig struct {
	Provider            string        `yaml:"provider"`
	EmbeddingHost       string        `yaml:"embedding_host"`
	EmbeddingModel      string        `yaml:"embedding_model"`
	EmbeddingToken      string        `yaml:"embedding_token"`
	Dimensions          int           `yaml:"dimensions"`
	ChatHost            string        `yaml:"chat_host"`
	ChatModel           string        `yaml:"chat_model"`
	ChatToken           string        `yaml:"chat_token"`
	Temperature         float64       `yaml:"temperature"`
	MaxTokens           int           `yaml:"max_tokens"`
	ExtractionMaxTokens int           `yaml:"extraction_max_tokens"`
	HistoryTurns        int           `yaml:"history_turns"`
	AnswerTimeout       time.Duration `yaml:"answer_timeout"`
	ExtractionTimeout   time.Duration `yaml:"extraction_timeout"`
}

// Config converts the section into an ai.Config.
func (a AIConfig) Config() *ai.Config {
	return &ai.Config{
		Provider:            a.Provider,
		EmbeddingHost:       a.EmbeddingHost,
		EmbeddingModel:      a.EmbeddingModel,
		EmbeddingToken:      a.EmbeddingToken,
		Dimensions:          a.Dimensions,
		ChatHost:            a.ChatHost,
		ChatModel:           a.ChatModel,
		ChatToken:           a.ChatToken,
		Temperature:         a.Temperature,
		MaxTokens:           a.MaxTokens,
		ExtractionMaxTokens: a.ExtractionMaxTokens,
		HistoryTurns:        a.HistoryTurns,
		AnswerTimeout:       a.AnswerTimeout,
		ExtractionTimeout:   a.ExtractionTimeout,
	}
}

// BadgerConfig locates the embedded database shared by the badger vector
// store and the badger session memory.
type BadgerConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// VectorStoreConfig selects the vector index.
type VectorStoreConfig struct {
	Backend    string         `yaml:"backend"`
	Collection string         `yaml:"collection"`
	Qdrant     QdrantConfig   `yaml:"qdrant"`
	Pgvector   PgvectorConfig `yaml:"pgvector"`
}

// QdrantConfig locates a qdrant gRPC endpoint.
type QdrantConfig struct {
	Address string `yaml:"address"`
	APIKey  string `yaml:"api_key"`
	UseTLS  bool   `yaml:"use_tls"`
}

// PgvectorConfig locates a postgres database with the vector extension.
type PgvectorConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// MemoryConfig selects the conversation memory.
type MemoryConfig struct {
	Backend     string        `yaml:"backend"`
	TTL         time.Duration `yaml:"ttl"`
	MaxMessages int           `yaml:"max_messages"`
	RedisURL    string        `yaml:"redis_url"`
}

// Options returns the session bounds.
func (m MemoryConfig) Options() memory.Options {
	return memory.Options{TTL: m.TTL, MaxMessages: m.MaxMessages}
}

// MetadataConfig locates the relational metadata store.
type MetadataConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// BlobConfig selects where raw uploads are archived.
type BlobConfig struct {
	Backend string       `yaml:"backend"`
	Root    string       `yaml:"root"`
	Minio   minio.Config `yaml:"minio"`
}

// ChatConfig tunes retrieval.
type ChatConfig struct {
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float32 `yaml:"similarity_threshold"`
	HistoryFetch        int     `yaml:"history_fetch"`
	Archive             bool    `yaml:"archive"`
}

// IngestionConfig tunes batch ingestion.
type IngestionConfig struct {
	Workers int `yaml:"workers"`
}

// Default returns a configuration that runs on one machine: badger for
// vectors and memory, sqlite for metadata and local files for uploads.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Upload: UploadConfig{
			MaxSize:           extract.DefaultMaxUploadSize,
			AllowedExtensions: extract.DefaultAllowedExtensions(),
		},
		Chunking: chunking.DefaultConfig(),
		AI: AIConfig{
			Provider:            aiDefaults.Provider,
			EmbeddingHost:       aiDefaults.EmbeddingHost,
			EmbeddingModel:      aiDefaults.EmbeddingModel,
			Dimensions:          aiDefaults.Dimensions,
			ChatHost:            aiDefaults.ChatHost,
			ChatModel:           aiDefaults.ChatModel,
			Temperature:         aiDefaults.Temperature,
			MaxTokens:           aiDefaults.MaxTokens,
			ExtractionMaxTokens: aiDefaults.ExtractionMaxTokens,
			HistoryTurns:        aiDefaults.HistoryTurns,
			AnswerTimeout:       aiDefaults.AnswerTimeout,
			ExtractionTimeout:   aiDefaults.ExtractionTimeout,
		},
		Badger: BadgerConfig{Path: "data/badger"},
		VectorStore: VectorStoreConfig{
			Backend:    BackendBadger,
			Collection: "rag-documents",
			Qdrant:     QdrantConfig{Address: "localhost:6334"},
			Pgvector:   PgvectorConfig{Table: "rag_vectors"},
		},
		Memory: MemoryConfig{
			Backend:     BackendBadger,
			TTL:         memory.DefaultTTL,
			MaxMessages: memory.DefaultMaxMessages,
			RedisURL:    "redis://localhost:6379/0",
		},
		Metadata: MetadataConfig{
			Driver: sqlstore.DriverSQLite,
			DSN:    "data/metadata.db",
		},
		Blob: BlobConfig{
			Backend: BackendLocal,
			Root:    "data/uploads",
		},
		Chat: ChatConfig{
			TopK:                5,
			SimilarityThreshold: 0.5,
			HistoryFetch:        10,
			Archive:             true,
		},
		Ingestion: IngestionConfig{Workers: 4},
	}
}

// LoadEnv loads .env style files into the environment. Missing files are
// ignored and variables already set are kept.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the YAML file at path over Default, applies overrides in order
// and validates the result. An empty path starts from the defaults alone.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}
	for _, override := range overrides {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse expands ${VAR} references in data and decodes it into cfg.
func Parse(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return core.Invalid(fmt.Errorf("config: %w", err))
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.Invalidf("config: server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Upload.MaxSize <= 0 {
		return core.Invalidf("config: upload.max_size must be positive")
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		return core.Invalidf("config: upload.allowed_extensions cannot be empty")
	}
	for _, ext := range c.Upload.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return core.Invalidf("config: upload.allowed_extensions entry %q must start with a dot", ext)
		}
	}
	if err := c.Chunking.Validate(); err != nil {
		return fmt.Errorf("config: chunking: %w", err)
	}
	if err := c.AI.Config().Validate(); err != nil {
		return fmt.Errorf("%w: config: %w", core.ErrValidation, err)
	}
	if err := oneOf("vector_store.backend", c.VectorStore.Backend, BackendBadger, BackendQdrant, BackendPgvector); err != nil {
		return err
	}
	if c.VectorStore.Backend != BackendBadger && c.AI.Dimensions <= 0 {
		return core.Invalidf("config: ai.dimensions is required for %s", c.VectorStore.Backend)
	}
	if c.VectorStore.Backend == BackendQdrant && c.VectorStore.Collection == "" {
		return core.Invalidf("config: vector_store.collection is required for qdrant")
	}
	if c.VectorStore.Backend == BackendPgvector && c.VectorStore.Pgvector.DSN == "" {
		return core.Invalidf("config: vector_store.pgvector.dsn is required for pgvector")
	}
	if err := oneOf("memory.backend", c.Memory.Backend, BackendBadger, BackendRedis); err != nil {
		return err
	}
	if err := c.Memory.Options().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.UsesBadger() && !c.Badger.InMemory && c.Badger.Path == "" {
		return core.Invalidf("config: badger.path is required")
	}
	if err := oneOf("metadata.driver", sqlstore.NormalizeDriver(c.Metadata.Driver), sqlstore.DriverSQLite, sqlstore.DriverPostgres); err != nil {
		return err
	}
	if strings.TrimSpace(c.Metadata.DSN) == "" {
		return core.Invalidf("config: metadata.dsn is required")
	}
	if err := oneOf("blob.backend", c.Blob.Backend, BackendLocal, BackendMinio, BackendNone); err != nil {
		return err
	}
	if c.Blob.Backend == BackendLocal && c.Blob.Root == "" {
		return core.Invalidf("config: blob.root is required for local")
	}
	if c.Chat.TopK < 1 || c.Chat.TopK > 20 {
		return core.Invalidf("config: chat.top_k must be between 1 and 20, got %d", c.Chat.TopK)
	}
	if c.Chat.SimilarityThreshold < -1 || c.Chat.SimilarityThreshold > 1 {
		return core.Invalidf("config: chat.similarity_threshold must be between -1 and 1")
	}
	if c.Chat.HistoryFetch < 0 {
		return core.Invalidf("config: chat.history_fetch cannot be negative")
	}
	if c.Ingestion.Workers < 1 {
		return core.Invalidf("config: ingestion.workers must be positive")
	}
	return nil
}

// UsesBadger reports whether any component needs the embedded database.
func (c *Config) UsesBadger() bool {
	return c.VectorStore.Backend == BackendBadger || c.Memory.Backend == BackendBadger
}

func oneOf(field, value string, allowed ...string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return core.Invalidf("config: %s must be one of %s, got %q", field, strings.Join(allowed, ", "), value)
}
