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

package ai

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/ragbook/core"
)

// Provider names understood by the provider dispatch table.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// ErrMissingCredentials is returned by Validate when a remote host has no API token.
var ErrMissingCredentials = errors.New("missing provider credentials")

// Config holds configuration for AI service providers.
type Config struct {
	// Provider selects the client implementation: "openai" for any
	// OpenAI-compatible API (OpenAI, Groq, vLLM, Ollama's /v1) or "ollama"
	// for Ollama's native API.
	Provider string

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "mxbai-embed-large", "text-embedding-3-small"
	EmbeddingModel string

	// EmbeddingToken is the API key for the embedding service.
	EmbeddingToken string

	// Dimensions is the size of every vector the embedder returns.
	// Zero disables the check.
	Dimensions int

	// ChatHost is the base URL for answer generation and extraction.
	// Example: "https://api.groq.com/openai/v1"
	ChatHost string

	// ChatModel is the model identifier used for answers and extraction.
	ChatModel string

	// ChatToken is the API key for the chat service.
	ChatToken string

	// Temperature and MaxTokens parameterize answer generation.
	// Default: 0.7 and 1000
	Temperature float64
	MaxTokens   int

	// ExtractionMaxTokens caps booking extraction output. Extraction always
	// runs at temperature 0.
	// Default: 500
	ExtractionMaxTokens int

	// HistoryTurns is the number of most recent conversation turns passed to
	// answer generation.
	// Default: 5
	HistoryTurns int

	// AnswerTimeout and ExtractionTimeout bound each model call.
	AnswerTimeout     time.Duration
	ExtractionTimeout time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider selects the provider implementation.
func WithProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithChatHost sets the chat service host URL.
func WithChatHost(host string) ConfigOption {
	return func(c *Config) {
		c.ChatHost = host
	}
}

// WithHost sets both embedding and chat hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ChatHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithChatModel sets the chat model identifier.
func WithChatModel(model string) ConfigOption {
	return func(c *Config) {
		c.ChatModel = model
	}
}

// WithEmbeddingToken sets the embedding service API key.
func WithEmbeddingToken(token string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingToken = token
	}
}

// WithChatToken sets the chat service API key.
func WithChatToken(token string) ConfigOption {
	return func(c *Config) {
		c.ChatToken = token
	}
}

// WithDimensions sets the expected embedding dimensionality.
func WithDimensions(dims int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = dims
	}
}

// WithTemperature sets the sampling temperature for answers.
func WithTemperature(temperature float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = temperature
	}
}

// WithMaxTokens sets the answer length limit.
func WithMaxTokens(maxTokens int) ConfigOption {
	return func(c *Config) {
		c.MaxTokens = maxTokens
	}
}

// WithHistoryTurns sets how many conversation turns reach the model.
func WithHistoryTurns(turns int) ConfigOption {
	return func(c *Config) {
		c.HistoryTurns = turns
	}
}

// DefaultConfig returns a Config that embeds with a local Ollama server and
// answers with Groq.
func DefaultConfig() *Config {
	return &Config{
		Provider:            ProviderOpenAI,
		EmbeddingHost:       "http://localhost:11434/v1",
		EmbeddingModel:      "mxbai-embed-large",
		Dimensions:          1024,
		ChatHost:            "https://api.groq.com/openai/v1",
		ChatModel:           "llama-3.3-70b-versatile",
		Temperature:         0.7,
		MaxTokens:           1000,
		ExtractionMaxTokens: 500,
		HistoryTurns:        5,
		AnswerTimeout:       60 * time.Second,
		ExtractionTimeout:   30 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithChatHost("http://localhost:11434/v1"),
//	    WithChatModel("qwen2.5:7b"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// OpenAI-compatible hosts get a /v1 suffix if missing.
func (c *Config) Normalize() {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.Provider != ProviderOpenAI {
		return
	}
	c.EmbeddingHost = ensureV1(c.EmbeddingHost)
	c.ChatHost = ensureV1(c.ChatHost)
}

func ensureV1(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.ChatHost == "" {
		return errors.New("ai config: ChatHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.ChatModel == "" {
		return errors.New("ai config: ChatModel is required")
	}
	if c.Dimensions < 0 {
		return errors.New("ai config: Dimensions cannot be negative")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("ai config: Temperature must be between 0 and 2")
	}
	if c.MaxTokens < 1 || c.ExtractionMaxTokens < 1 {
		return errors.New("ai config: MaxTokens and ExtractionMaxTokens must be positive")
	}
	if c.HistoryTurns < 0 {
		return errors.New("ai config: HistoryTurns cannot be negative")
	}
	if c.Provider == ProviderOpenAI {
		if c.EmbeddingToken == "" && !isLocal(c.EmbeddingHost) {
			return fmt.Errorf("%w: %w: ai config: EmbeddingToken is required for %s", core.ErrValidation, ErrMissingCredentials, c.EmbeddingHost)
		}
		if c.ChatToken == "" && !isLocal(c.ChatHost) {
			return fmt.Errorf("%w: %w: ai config: ChatToken is required for %s", core.ErrValidation, ErrMissingCredentials, c.ChatHost)
		}
	}
	return nil
}

// isLocal reports whether host points at this machine, where OpenAI-compatible
// servers usually run without authentication.
func isLocal(host string) bool {
	u, err := url.Parse(host)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1", "host.docker.internal":
		return true
	}
	return false
}
