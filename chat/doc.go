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

// Package chat answers questions over ingested documents.
//
// The Pipeline type runs one conversational turn:
//   - Reading recent history before the new turn is recorded
//   - Retrieving the nearest chunks and dropping those under the similarity threshold
//   - Generating an answer grounded in the surviving chunks
//   - Extracting interview booking details from the query and persisting a
//     booking when all required fields are present
//
// Conversation memory holds the bounded working log used for generation.
// When an archive is configured every turn is also recorded in the metadata
// store; archiving failures are logged and never fail the turn.
package chat
