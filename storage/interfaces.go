package storage

import (
	"context"

	"github.com/poiesic/ragbook/core"
)

// TransactionManager runs a function inside one transaction.
type TransactionManager interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// Repository calls made with the context passed to fn join the transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// DocumentRepository provides operations for documents and their chunks.
type DocumentRepository interface {
	// CreateDocument inserts a document. ID and timestamps are set if empty.
	CreateDocument(ctx context.Context, doc *core.Document) error

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// ListDocuments returns every document, newest first.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// DeleteDocument removes a document and, by cascade, its chunks.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id string) error

	// CreateChunks inserts chunk rows. IDs and timestamps are set if empty.
	CreateChunks(ctx context.Context, chunks ...*core.Chunk) error

	// ListChunks returns the chunks of a document ordered by index.
	ListChunks(ctx context.Context, documentID string) ([]*core.Chunk, error)

	// GetChunkByVectorID retrieves the chunk stored under a vector key.
	// Returns ErrNotFound if no chunk has that key.
	GetChunkByVectorID(ctx context.Context, vectorID string) (*core.Chunk, error)

	// ScanChunks returns up to limit chunks whose chunk id sorts after
	// afterChunkID, in chunk id order. Pass "" to start from the beginning.
	ScanChunks(ctx context.Context, afterChunkID string, limit int) ([]*core.Chunk, error)

	// CountChunks returns the number of chunk rows.
	CountChunks(ctx context.Context) (int, error)
}

// SessionRepository provides operations for archived chat sessions.
type SessionRepository interface {
	// GetOrCreateSession returns the session, creating it on first use.
	GetOrCreateSession(ctx context.Context, sessionID string) (*core.Session, error)

	// GetSession retrieves a session.
	// Returns ErrNotFound if the session doesn't exist.
	GetSession(ctx context.Context, sessionID string) (*core.Session, error)

	// AppendMessages archives messages in order and bumps the session's
	// message count and last activity. The session must exist.
	AppendMessages(ctx context.Context, sessionID string, messages ...*core.Message) error

	// ListMessages returns the archived messages of a session, oldest first.
	ListMessages(ctx context.Context, sessionID string) ([]*core.Message, error)

	// DeleteSession removes a session and its messages. Bookings keep
	// existing with their session link cleared.
	// Returns ErrNotFound if the session doesn't exist.
	DeleteSession(ctx context.Context, sessionID string) error
}

// BookingRepository provides operations for interview bookings.
type BookingRepository interface {
	// CreateBooking inserts a booking. ID and timestamps are set if empty.
	CreateBooking(ctx context.Context, booking *core.Booking) error

	// GetBooking retrieves a booking by ID.
	// Returns ErrNotFound if the booking doesn't exist.
	GetBooking(ctx context.Context, id string) (*core.Booking, error)

	// ListBookings returns every booking, newest first.
	ListBookings(ctx context.Context) ([]*core.Booking, error)

	// UpdateBookingStatus moves a booking through its lifecycle.
	// Returns ErrNotFound if the booking doesn't exist and a validation error
	// if the transition is not allowed.
	UpdateBookingStatus(ctx context.Context, id string, status core.BookingStatus) (*core.Booking, error)
}

// CheckpointRepository persists processor progress.
type CheckpointRepository interface {
	// SaveCheckpoint inserts or replaces the checkpoint of a processor.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint returns the checkpoint of a processor, or nil if none exists.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint of a processor.
	DeleteCheckpoint(ctx context.Context, processorType string) error
}

// Repository combines every metadata repository with lifecycle management.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	TransactionManager
	DocumentRepository
	SessionRepository
	BookingRepository
	CheckpointRepository

	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error

	// Close closes the storage backend and releases resources.
	Close() error
}
