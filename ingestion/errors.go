package ingestion

import "errors"

var (
	// ErrMetadataStoreRequired is returned when a metadata store is not provided.
	ErrMetadataStoreRequired = errors.New("metadata store required")

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmptyText is returned when a document has no text to chunk.
	ErrEmptyText = errors.New("document text is empty")

	// ErrNoChunks is returned when chunking produced nothing.
	ErrNoChunks = errors.New("no chunks were created from the text")

	// ErrFilenameRequired is returned when a document has no filename.
	ErrFilenameRequired = errors.New("filename required")

	// ErrEmbeddingCount is returned when the embedder returns a different number
	// of vectors than chunks.
	ErrEmbeddingCount = errors.New("embedding result mismatch")
)
