package api

import (
	"time"

	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/ingestion"
)

type documentResponse struct {
	ID             string         `json:"id"`
	Filename       string         `json:"filename"`
	FilePath       string         `json:"file_path,omitempty"`
	FileSize       int64          `json:"file_size"`
	FileType       string         `json:"file_type"`
	Checksum       string         `json:"checksum"`
	TotalChunks    int            `json:"total_chunks"`
	Strategy       string         `json:"chunking_strategy"`
	ChunkingConfig map[string]any `json:"chunking_config"`
	VectorStore    string         `json:"vector_store"`
	EmbeddingModel string         `json:"embedding_model"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func newDocumentResponse(d *core.Document) documentResponse {
	return documentResponse{
		ID:             d.ID,
		Filename:       d.Filename,
		FilePath:       d.FilePath,
		FileSize:       d.FileSize,
		FileType:       d.FileType,
		Checksum:       d.Checksum,
		TotalChunks:    d.TotalChunks,
		Strategy:       d.Strategy,
		ChunkingConfig: d.ChunkingConfig,
		VectorStore:    d.VectorStore,
		EmbeddingModel: d.EmbeddingModel,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type ingestResponse struct {
	DocumentID  string    `json:"document_id"`
	Filename    string    `json:"filename"`
	TotalChunks int       `json:"total_chunks"`
	Strategy    string    `json:"chunking_strategy"`
	VectorStore string    `json:"vector_store"`
	CreatedAt   time.Time `json:"created_at"`
	Message     string    `json:"message"`
}

func newIngestResponse(r *ingestion.Result) ingestResponse {
	return ingestResponse{
		DocumentID:  r.DocumentID,
		Filename:    r.Filename,
		TotalChunks: r.TotalChunks,
		Strategy:    r.Strategy,
		VectorStore: r.VectorStore,
		CreatedAt:   r.CreatedAt,
		Message:     r.Message,
	}
}

type chunkResponse struct {
	ID         string         `json:"id"`
	ChunkID    string         `json:"chunk_id"`
	DocumentID string         `json:"document_id"`
	Index      int            `json:"chunk_index"`
	Text       string         `json:"chunk_text"`
	VectorID   string         `json:"vector_id"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  time.Time      `json:"created_at"`
}

func newChunkResponse(c *core.Chunk) chunkResponse {
	return chunkResponse{
		ID:         c.ID,
		ChunkID:    c.ChunkID,
		DocumentID: c.DocumentID,
		Index:      c.Index,
		Text:       c.Text,
		VectorID:   c.VectorID,
		Metadata:   c.Metadata,
		CreatedAt:  c.CreatedAt,
	}
}

// chatRequest.TopK is nil when the client leaves top_k out.
type chatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
	TopK      *int   `json:"top_k"`
}

type chatResponse struct {
	SessionID       string                  `json:"session_id"`
	Query           string                  `json:"query"`
	Answer          string                  `json:"answer"`
	Contexts        []core.RetrievedContext `json:"retrieved_contexts"`
	BookingDetected bool                    `json:"booking_detected"`
	BookingID       string                  `json:"booking_id,omitempty"`
}

type sessionResponse struct {
	SessionID string      `json:"session_id"`
	Messages  []core.Turn `json:"messages"`
}

type bookingResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Email     string             `json:"email"`
	Date      string             `json:"date"`
	Time      string             `json:"time"`
	Notes     string             `json:"notes,omitempty"`
	SessionID string             `json:"session_id,omitempty"`
	Status    core.BookingStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func newBookingResponse(b *core.Booking) bookingResponse {
	return bookingResponse{
		ID:        b.ID,
		Name:      b.Name,
		Email:     b.Email,
		Date:      b.Date,
		Time:      b.Time,
		Notes:     b.Notes,
		SessionID: b.SessionID,
		Status:    b.Status,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

type statusRequest struct {
	Status string `json:"status"`
}
