// Package ingestion turns uploaded documents into searchable chunks.
//
// The Pipeline type manages the ingestion workflow:
//   - Validating the upload and extracting its text
//   - Chunking the text with the requested strategy
//   - Embedding every chunk in one batched call
//   - Archiving the raw upload (when a blob store is configured)
//   - Recording the document and its chunks in the metadata store
//   - Upserting one vector entry per chunk
//
// Metadata rows are written before the vector upsert. If the upsert fails the
// rows remain and the reindex package can rebuild the vector side from them.
//
// IngestBatch processes independent files concurrently on a worker pool.
package ingestion
