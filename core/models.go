package core

import (
	"strings"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser is a turn written by the person chatting.
	RoleUser Role = "user"
	// RoleSystem is a turn injected by the application.
	RoleSystem Role = "system"
	// RoleAssistant is a turn produced by the language model.
	RoleAssistant Role = "assistant"
)

// Document is the logical unit of ingested content.
// It is immutable after creation except for TotalChunks and the timestamps.
type Document struct {
	ID             string
	Filename       string
	FilePath       string // Location of the archived raw upload, empty if not archived
	FileSize       int64
	FileType       string
	Checksum       string
	TotalChunks    int
	Strategy       string
	ChunkingConfig map[string]any
	VectorStore    string
	EmbeddingModel string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Chunk is a contiguous text unit derived from exactly one Document.
// ChunkID and VectorID are derived from the document id and index, so a chunk
// maps 1:1 onto a vector store entry.
type Chunk struct {
	ID         string
	ChunkID    string
	DocumentID string
	Index      int
	Text       string
	VectorID   string
	Metadata   map[string]any
	CreatedAt  time.Time
}

// Turn is one entry in a session's conversation log.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session groups conversation turns and bookings.
type Session struct {
	ID            string
	SessionID     string
	TotalMessages int
	CreatedAt     time.Time
	LastActivity  time.Time
}

// Message is an archived conversation turn.
type Message struct {
	ID                string
	SessionID         string
	Role              Role
	Content           string
	RetrievedContexts []RetrievedContext
	CreatedAt         time.Time
}

// SearchResult is a single vector store hit.
type SearchResult struct {
	Key      string
	Score    float32
	Metadata map[string]any
}

// RetrievedContext is a search hit that survived the similarity threshold,
// expanded into the chunk it came from.
type RetrievedContext struct {
	ChunkID   string         `json:"chunk_id"`
	ChunkText string         `json:"chunk_text"`
	Filename  string         `json:"filename"`
	Score     float32        `json:"similarity_score"`
	Metadata  map[string]any `json:"metadata"`
}

// BookingInfo is the transient result of running booking extraction on text.
// Any field may be empty.
type BookingInfo struct {
	Name  string
	Email string
	Date  string // YYYY-MM-DD
	Time  string // HH:MM, 24 hour
	Notes string
}

// Complete reports whether every field needed to create a Booking is present.
func (b BookingInfo) Complete() bool {
	return strings.TrimSpace(b.Name) != "" &&
		strings.TrimSpace(b.Email) != "" &&
		strings.TrimSpace(b.Date) != "" &&
		strings.TrimSpace(b.Time) != ""
}

// IsEmpty reports whether no field carries a value.
func (b BookingInfo) IsEmpty() bool {
	return strings.TrimSpace(b.Name) == "" &&
		strings.TrimSpace(b.Email) == "" &&
		strings.TrimSpace(b.Date) == "" &&
		strings.TrimSpace(b.Time) == "" &&
		strings.TrimSpace(b.Notes) == ""
}

// BookingStatus is the lifecycle state of a Booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is a persisted interview booking.
type Booking struct {
	ID        string
	Name      string
	Email     string
	Date      string
	Time      string
	Notes     string
	SessionID string // Empty when the originating session is gone
	Status    BookingStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBooking creates a pending booking from a complete extraction.
func NewBooking(info BookingInfo, sessionID string) *Booking {
	return &Booking{
		ID:        NewID(),
		Name:      strings.TrimSpace(info.Name),
		Email:     strings.TrimSpace(info.Email),
		Date:      strings.TrimSpace(info.Date),
		Time:      strings.TrimSpace(info.Time),
		Notes:     strings.TrimSpace(info.Notes),
		SessionID: sessionID,
		Status:    BookingPending,
	}
}

// Checkpoint records how far a long-running processor got, so that a
// restarted run can resume after LastKey.
type Checkpoint struct {
	ProcessorType string
	LastKey       string
	Processed     int
	UpdatedAt     time.Time
}
