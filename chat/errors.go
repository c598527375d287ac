package chat

import (
	"errors"
	"fmt"

	"github.com/poiesic/ragbook/core"
)

var (
	// ErrMemoryRequired is returned when a conversation memory is not provided.
	ErrMemoryRequired = errors.New("conversation memory required")

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrBookingRepositoryRequired is returned when a booking repository is not provided.
	ErrBookingRepositoryRequired = errors.New("booking repository required")

	// ErrQueryRequired is returned for a blank query.
	ErrQueryRequired = errors.New("query cannot be empty")

	// ErrInvalidTopK is returned for a top_k outside 1 to MaxTopK.
	ErrInvalidTopK = errors.New("top_k out of range")

	// ErrEmptyAnswer is returned when the answer generator produces blank text.
	ErrEmptyAnswer = errors.New("answer generator returned no text")

	// ErrSessionNotFound is returned when a session has no retained log.
	ErrSessionNotFound = fmt.Errorf("session %w", core.ErrNotFound)
)
