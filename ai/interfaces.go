package ai

import (
	"context"

	"github.com/poiesic/ragbook/core"
)

// Purpose tells an embedder whether text is being indexed or searched for.
// Providers may embed documents and queries differently.
type Purpose int

const (
	// PurposeDocument embeds text that will be stored and searched over.
	PurposeDocument Purpose = iota + 1
	// PurposeQuery embeds a search query.
	PurposeQuery
)

// String returns the provider-neutral name of the purpose.
func (p Purpose) String() string {
	switch p {
	case PurposeDocument:
		return "search_document"
	case PurposeQuery:
		return "search_query"
	default:
		return "unknown"
	}
}

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string, purpose Purpose) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// An empty input returns an empty result without contacting the provider.
	EmbedTexts(ctx context.Context, texts []string, purpose Purpose) ([][]float32, error)
}

// AnswerGenerator produces grounded natural-language answers.
// Implementations must be thread-safe for concurrent use.
type AnswerGenerator interface {
	// GenerateAnswer answers query using the retrieved context and the
	// conversation history (oldest first). Implementations only use the most
	// recent turns of history.
	GenerateAnswer(ctx context.Context, query, context string, history []core.Turn) (string, error)
}

// BookingExtractor pulls interview booking details out of free-form text.
// Implementations must be thread-safe for concurrent use.
type BookingExtractor interface {
	// ExtractBooking asks the model for booking details in text.
	// Unusable model output is reported through the Extraction value, never
	// as an error. Errors are reserved for failures to reach the model.
	ExtractBooking(ctx context.Context, text string) (Extraction, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// AnswerGenerator returns the grounded answer service.
	AnswerGenerator() AnswerGenerator

	// BookingExtractor returns the structured extraction service.
	BookingExtractor() BookingExtractor

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
