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
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/ragbook/ai"
	"github.com/poiesic/ragbook/core"
	"github.com/tmc/langchaingo/embeddings"
)

var (
	// ErrEmbeddingCount indicates the provider returned a different number of
	// vectors than texts sent.
	ErrEmbeddingCount = errors.New("embedding count mismatch")

	// ErrDimensionMismatch indicates a vector whose size differs from the
	// configured dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedder implements ai.Embedder using a langchaingo embedding client.
type Embedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(client embeddings.EmbedderClient, dimensions int) (*Embedder, error) {
	checked := checkedClient{client: client, dimensions: dimensions}

	// Wrap in langchaingo embedder
	embedder, err := embeddings.NewEmbedder(checked, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		logger:   slog.Default().With("component", "langchain-embedder"),
	}, nil
}

// EmbedText generates a vector embedding for a single text string.
// Queries go through the query path of the embedder, documents through the
// document path.
func (e *Embedder) EmbedText(ctx context.Context, text string, purpose ai.Purpose) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text), "purpose", purpose)

	if purpose == ai.PurposeQuery {
		vector, err := e.embedder.EmbedQuery(ctx, text)
		if err != nil {
			e.logger.Error("failed to generate query embedding", "err", err)
			return nil, core.External("embed query", err)
		}
		return vector, nil
	}

	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, core.External("embed document", err)
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
// An empty input returns an empty result without a provider call.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string, purpose ai.Purpose) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	e.logger.Debug("generating embeddings for texts", "count", len(texts), "purpose", purpose)

	// The embedder rewrites newlines in place
	input := make([]string, len(texts))
	copy(input, texts)

	vectors, err := e.embedder.EmbedDocuments(ctx, input)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, core.External("embed documents", err)
	}
	if len(vectors) != len(texts) {
		return nil, core.External("embed documents", fmt.Errorf("%w: sent %d, got %d", ErrEmbeddingCount, len(texts), len(vectors)))
	}
	return vectors, nil
}

// checkedClient guards every provider response: one vector per text, each of
// the configured size.
type checkedClient struct {
	client     embeddings.EmbedderClient
	dimensions int
}

func (c checkedClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := c.client.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: sent %d, got %d", ErrEmbeddingCount, len(texts), len(vectors))
	}
	if c.dimensions > 0 {
		for i, v := range vectors {
			if len(v) != c.dimensions {
				return nil, fmt.Errorf("%w: vector %d has %d, want %d", ErrDimensionMismatch, i, len(v), c.dimensions)
			}
		}
	}
	return vectors, nil
}
