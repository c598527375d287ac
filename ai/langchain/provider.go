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

package langchain

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/ragbook/ai"
	"github.com/poiesic/ragbook/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrUnknownProvider is returned when ai.Config.Provider has no registered factory.
var ErrUnknownProvider = errors.New("unknown ai provider")

// clientFactory builds the chat model and embedding client for one provider.
type clientFactory func(config *ai.Config) (llms.Model, embeddings.EmbedderClient, error)

var factories = map[string]clientFactory{
	ai.ProviderOpenAI: newOpenAIClients,
	ai.ProviderOllama: newOllamaClients,
}

// Providers returns the names of the registered providers in sorted order.
func Providers() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Provider implements ai.AIProvider on top of langchaingo clients.
// It manages the embedder, answer generator and booking extractor instances.
type Provider struct {
	config    *ai.Config
	embedder  *Embedder
	generator *AnswerGenerator
	extractor *BookingExtractor
	logger    *slog.Logger
}

var _ ai.AIProvider = (*Provider)(nil)

// NewProvider creates a new AI provider for config.Provider.
// The config is validated and normalized before use.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction
// and prevent coupling to langchaingo implementation details.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	factory, ok := factories[config.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", core.ErrValidation, ErrUnknownProvider, config.Provider)
	}

	chat, embedClient, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s clients: %w", config.Provider, err)
	}

	return newProvider(config, chat, embedClient)
}

// newProvider wires services around already constructed clients.
func newProvider(config *ai.Config, chat llms.Model, embedClient embeddings.EmbedderClient) (*Provider, error) {
	embedder, err := newEmbedder(embedClient, config.Dimensions)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:    config,
		embedder:  embedder,
		generator: newAnswerGenerator(chat, config),
		extractor: newBookingExtractor(chat, config),
		logger:    slog.Default().With("component", "langchain-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// AnswerGenerator returns the grounded answer service.
func (p *Provider) AnswerGenerator() ai.AnswerGenerator {
	return p.generator
}

// BookingExtractor returns the booking extraction service.
func (p *Provider) BookingExtractor() ai.BookingExtractor {
	return p.extractor
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing langchain provider", "provider", p.config.Provider)
	return nil
}

// tokenOrNone returns a placeholder for local OpenAI-compatible services that
// don't require authentication. The client refuses an empty token.
func tokenOrNone(token string) string {
	if token == "" {
		return "none"
	}
	return token
}

func newOpenAIClients(config *ai.Config) (llms.Model, embeddings.EmbedderClient, error) {
	embedClient, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(tokenOrNone(config.EmbeddingToken)),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, nil, err
	}

	chat, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(tokenOrNone(config.ChatToken)),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, nil, err
	}
	return chat, embedClient, nil
}

func newOllamaClients(config *ai.Config) (llms.Model, embeddings.EmbedderClient, error) {
	embedClient, err := ollama.New(
		ollama.WithServerURL(config.EmbeddingHost),
		ollama.WithModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, nil, err
	}

	chat, err := ollama.New(
		ollama.WithServerURL(config.ChatHost),
		ollama.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, nil, err
	}
	return chat, embedClient, nil
}
