// Package vectorstore defines the vector index abstraction used for retrieval.
//
// A Store persists (key, vector, metadata) entries and answers nearest-neighbor
// queries ranked by cosine similarity. Implementations live in sibling
// packages:
//
//   - storage/badger: embedded store with a brute-force cosine scan
//   - vectorstore/qdrant: Qdrant collections over gRPC
//   - vectorstore/pgvector: PostgreSQL with the pgvector extension
//
// # Contract
//
//   - Initialize is idempotent and every other operation calls it lazily
//   - Upsert overwrites by key and fragments large inputs into batches of
//     MaxBatchSize entries
//   - Search returns results in descending score order and always includes
//     metadata
//   - Delete ignores keys that do not exist
//
// Provider errors are returned wrapped in core.ErrExternal. Stores never retry.
package vectorstore
