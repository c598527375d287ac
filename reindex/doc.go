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

// Package reindex rebuilds the vector side of the index from chunk rows.
//
// Chunk rows in the metadata store are the source of truth for what should
// be searchable. A Reindexer pages through them in chunk id order, embeds each
// page with retry and upserts the entries ingestion would have written. After
// every committed page it saves a checkpoint so an interrupted run resumes
// where it stopped.
package reindex
