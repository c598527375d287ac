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

// Package api exposes the ingestion, chat, session and booking operations
// over HTTP with gin.
//
// Errors are rendered as {"error": "<message>"}. Validation failures map to
// 400, missing entities to 404, failing upstream services to 502 and
// everything else to 500 with a generic message.
package api
