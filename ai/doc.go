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

// Package ai provides abstractions for the language model services used by ragbook.
//
// The package defines interfaces for the three model operations the pipelines
// need, so that orchestration code depends on abstractions rather than on a
// particular provider SDK:
//
//   - Embedder: Generates vector embeddings for documents or queries
//   - AnswerGenerator: Produces grounded answers from retrieved context
//   - BookingExtractor: Extracts interview booking details as structured data
//   - AIProvider: Aggregates the services for convenient initialization
//
// # Booking Extraction
//
// Model output is untrusted. ParseBookingResponse is a pure function that turns
// raw output into one of three outcomes:
//
//	switch e := extraction.(type) {
//	case ai.Parsed:    // e.Info holds at least one field
//	case ai.NoData:    // nothing found
//	case ai.Malformed: // e.Raw could not be parsed, e.Err says why
//	}
//
// Only transport failures are returned as errors.
//
// # Implementation Packages
//
//   - ai/langchain: Production implementation built on langchaingo, supporting
//     OpenAI-compatible APIs and Ollama
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithChatToken(os.Getenv("GROQ_API_KEY")))
//	provider, err := langchain.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "When can I interview?", ai.PurposeQuery)
package ai
