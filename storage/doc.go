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

// Package storage provides the relational metadata layer for ragbook.
//
// This package defines repository interfaces that decouple storage implementation
// from business logic. The relational side is the source of truth for which
// documents and chunks should exist; the vector store is rebuilt from it when
// needed.
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces to enforce abstraction:
//
//	repo, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, "/var/lib/ragbook/metadata.db")
//
// Internal package constructors may return concrete types since they're only
// used within the implementation package.
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - DocumentRepository: Documents and their chunk rows
//   - SessionRepository: Archived chat sessions and messages
//   - BookingRepository: Interview bookings and their status lifecycle
//   - CheckpointRepository: Resume points for long-running processors
//   - TransactionManager: Transaction support
//   - Repository: All of the above plus health and lifecycle
//
// Badger-backed vector and session stores live in storage/badger.
//
// # Referential Integrity
//
//   - Deleting a document deletes its chunks
//   - Deleting a session deletes its messages
//   - Deleting a session clears the session link of its bookings
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. A transaction started by WithTransaction travels in the
// context passed to its callback.
package storage
