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

package langchain

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/ragbook/ai"
	"github.com/poiesic/ragbook/core"
	"github.com/tmc/langchaingo/llms"
)

// ErrEmptyResponse indicates the model returned no choices or a blank answer.
var ErrEmptyResponse = errors.New("model returned an empty response")

// AnswerGenerator implements ai.AnswerGenerator using a langchaingo chat model.
type AnswerGenerator struct {
	client       llms.Model
	temperature  float64
	maxTokens    int
	historyTurns int
	timeout      time.Duration
	logger       *slog.Logger
}

var _ ai.AnswerGenerator = (*AnswerGenerator)(nil)

func newAnswerGenerator(client llms.Model, config *ai.Config) *AnswerGenerator {
	return &AnswerGenerator{
		client:       client,
		temperature:  config.Temperature,
		maxTokens:    config.MaxTokens,
		historyTurns: config.HistoryTurns,
		timeout:      config.AnswerTimeout,
		logger:       slog.Default().With("component", "langchain-generator"),
	}
}

// GenerateAnswer sends the system prompt with the context, the most recent
// history turns and the query as one chat completion.
func (g *AnswerGenerator) GenerateAnswer(ctx context.Context, query, contextText string, history []core.Turn) (string, error) {
	turns := recentTurns(history, g.historyTurns)

	content := make([]llms.MessageContent, 0, len(turns)+2)
	content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, buildAnswerSystemPrompt(contextText)))
	for _, turn := range turns {
		content = append(content, llms.TextParts(messageType(turn.Role), turn.Content))
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, query))

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	g.logger.Debug("generating answer", "history", len(turns), "context_length", len(contextText))
	response, err := g.client.GenerateContent(ctx, content,
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens))
	if err != nil {
		g.logger.Error("failed to generate answer", "err", err)
		return "", core.External("generate answer", err)
	}

	if len(response.Choices) < 1 {
		return "", core.External("generate answer", ErrEmptyResponse)
	}
	answer := strings.TrimSpace(response.Choices[0].Content)
	if answer == "" {
		g.logger.Warn("model returned a blank answer")
		return "", core.External("generate answer", ErrEmptyResponse)
	}
	return answer, nil
}
