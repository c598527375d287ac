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
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/ragbook/ai"
	"github.com/poiesic/ragbook/core"
	"github.com/tmc/langchaingo/llms"
)

// BookingExtractor implements ai.BookingExtractor using a langchaingo chat model.
type BookingExtractor struct {
	client    llms.Model
	maxTokens int
	timeout   time.Duration
	logger    *slog.Logger
}

var _ ai.BookingExtractor = (*BookingExtractor)(nil)

func newBookingExtractor(client llms.Model, config *ai.Config) *BookingExtractor {
	return &BookingExtractor{
		client:    client,
		maxTokens: config.ExtractionMaxTokens,
		timeout:   config.ExtractionTimeout,
		logger:    slog.Default().With("component", "langchain-extractor"),
	}
}

// ExtractBooking asks the model for booking fields at temperature 0 and parses
// the reply with ai.ParseBookingResponse. Blank text is not sent.
func (e *BookingExtractor) ExtractBooking(ctx context.Context, text string) (ai.Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return ai.NoData{}, nil
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, extractionSystemMessage),
		llms.TextParts(llms.ChatMessageTypeHuman, buildExtractionPrompt(text)),
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	response, err := e.client.GenerateContent(ctx, content,
		llms.WithTemperature(0.0),
		llms.WithMaxTokens(e.maxTokens))
	if err != nil {
		e.logger.Error("failed to extract booking", "err", err)
		return nil, core.External("extract booking", err)
	}

	if len(response.Choices) < 1 {
		e.logger.Debug("no choices returned from model")
		return ai.NoData{}, nil
	}

	extraction := ai.ParseBookingResponse(response.Choices[0].Content)
	switch result := extraction.(type) {
	case ai.Malformed:
		e.logger.Warn("error parsing extraction response", "response", result.Raw, "err", result.Err)
	case ai.NoData:
		e.logger.Debug("no booking information found")
	case ai.Parsed:
		e.logger.Debug("extracted booking fields", "complete", result.Info.Complete())
	}
	return extraction, nil
}
