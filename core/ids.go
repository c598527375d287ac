package core

import (
	"encoding/hex"
	"fmt"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// NewID returns a random identifier for documents, chunks, sessions and bookings.
func NewID() string {
	return uuid.NewString()
}

// ChunkID returns the document scoped identifier of the chunk at index.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_%d", documentID, index)
}

// VectorID returns the vector store key for a chunk.
func VectorID(chunkID string) string {
	return "vec_" + chunkID
}

// Checksum returns the hex encoded BLAKE2b-256 digest of data.
func Checksum(data []byte) string {
	h, _ := blake2b.New(32, nil) // 32 bytes = 256 bits
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// KeyUUID maps an arbitrary string key onto a stable UUID using BLAKE2b.
// Stores that only accept UUID point ids use it to keep string keys idempotent.
func KeyUUID(key string) uuid.UUID {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	h.Write([]byte(key))
	var id uuid.UUID
	copy(id[:], h.Sum(nil))
	// Mark as a version 8 (custom) RFC 9562 UUID
	id[6] = (id[6] & 0x0f) | 0x80
	id[8] = (id[8] & 0x3f) | 0x80
	return id
}
