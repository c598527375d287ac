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

// Package langchain provides AI service implementations built on langchaingo.
//
// This package implements the ai.AIProvider interface for any OpenAI-compatible
// service (OpenAI, Groq, vLLM, LocalAI, Ollama's /v1 endpoint) and for Ollama's
// native API. The provider is chosen by ai.Config.Provider through a dispatch
// table, so adding a backend means registering one more client factory.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithEmbeddingHost("http://localhost:11434"), // /v1 added automatically
//	    ai.WithChatToken(os.Getenv("GROQ_API_KEY")),
//	)
//
//	provider, err := langchain.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	answer, err := provider.AnswerGenerator().GenerateAnswer(ctx, query, contextText, history)
//
// # Timeouts
//
// Every model call runs under the per-call timeout from the configuration
// (AnswerTimeout or ExtractionTimeout). A timeout is reported as an
// external service error for that call only.
package langchain
