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

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/ragbook/ai"
	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/memory"
	"github.com/poiesic/ragbook/storage"
	"github.com/poiesic/ragbook/vectorstore"
)

// Retrieval and history defaults.
const (
	DefaultTopK         = 5
	MaxTopK             = 20
	DefaultThreshold    = 0.5
	DefaultHistoryFetch = 10
)

// Pipeline runs chat turns. It is safe for concurrent use.
type Pipeline struct {
	memory       memory.Store
	vectors      vectorstore.Store
	embedder     ai.Embedder
	generator    ai.AnswerGenerator
	extractor    ai.BookingExtractor
	bookings     storage.BookingRepository
	archive      storage.SessionRepository
	threshold    float32
	historyFetch int
	defaultTopK  int
	logger       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithThreshold sets the minimum similarity a retrieved chunk needs to reach
// the answer generator.
func WithThreshold(threshold float32) Option {
	return func(p *Pipeline) error {
		if threshold < -1 || threshold > 1 {
			return core.Invalidf("chat: similarity threshold must be between -1 and 1, got %v", threshold)
		}
		p.threshold = threshold
		return nil
	}
}

// WithHistoryFetch sets how many turns are read from memory before a turn.
func WithHistoryFetch(count int) Option {
	return func(p *Pipeline) error {
		if count < 0 {
			return core.Invalidf("chat: history fetch cannot be negative")
		}
		p.historyFetch = count
		return nil
	}
}

// WithDefaultTopK sets the result count used when a request leaves top_k unset.
func WithDefaultTopK(topK int) Option {
	return func(p *Pipeline) error {
		if topK < 1 || topK > MaxTopK {
			return fmt.Errorf("%w: %w: %d", core.ErrValidation, ErrInvalidTopK, topK)
		}
		p.defaultTopK = topK
		return nil
	}
}

// WithArchive records every turn in the metadata store.
func WithArchive(archive storage.SessionRepository) Option {
	return func(p *Pipeline) error {
		p.archive = archive
		return nil
	}
}

// NewPipeline creates a new chat pipeline.
func NewPipeline(
	mem memory.Store,
	vectors vectorstore.Store,
	provider ai.AIProvider,
	bookings storage.BookingRepository,
	opts ...Option,
) (*Pipeline, error) {
	if mem == nil {
		return nil, ErrMemoryRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if bookings == nil {
		return nil, ErrBookingRepositoryRequired
	}

	p := &Pipeline{
		memory:       mem,
		vectors:      vectors,
		embedder:     provider.Embedder(),
		generator:    provider.AnswerGenerator(),
		extractor:    provider.BookingExtractor(),
		bookings:     bookings,
		threshold:    DefaultThreshold,
		historyFetch: DefaultHistoryFetch,
		defaultTopK:  DefaultTopK,
		logger:       slog.Default().With("component", "chat"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Request is one user turn.
type Request struct {
	Query     string
	SessionID string // generated when empty
	TopK      int    // DefaultTopK when zero
}

// Response is the outcome of a chat turn.
type Response struct {
	SessionID       string
	Query           string
	Answer          string
	Contexts        []core.RetrievedContext
	BookingDetected bool
	BookingID       string
}

// Ask runs one chat turn.
func (p *Pipeline) Ask(ctx context.Context, req Request) (*Response, error) {
	return p.AskWithMonitor(ctx, req, nil)
}

// AskWithMonitor runs one chat turn with monitoring.
// The monitor receives callbacks at each stage of the turn.
func (p *Pipeline) AskWithMonitor(ctx context.Context, req Request, monitor Monitor) (*Response, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, core.Invalid(ErrQueryRequired)
	}
	topK := req.TopK
	if topK == 0 {
		topK = p.defaultTopK
	}
	if topK < 1 || topK > MaxTopK {
		return nil, fmt.Errorf("%w: %w: %d", core.ErrValidation, ErrInvalidTopK, topK)
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = core.NewID()
	}
	logger := p.logger.With("session", sessionID)
	monitor.Start(sessionID, query)

	// History is read before the new turn so that it never sees itself
	history, err := p.memory.Recent(ctx, sessionID, p.historyFetch)
	if err != nil {
		return nil, core.External("read history", err)
	}
	monitor.AfterHistory(history)

	if err := p.memory.Append(ctx, sessionID, core.RoleUser, query); err != nil {
		return nil, core.External("append user turn", err)
	}

	embedding, err := p.embedder.EmbedText(ctx, query, ai.PurposeQuery)
	if err != nil {
		logger.Error("error generating embedding for query", "err", err)
		return nil, core.External("embed query", err)
	}
	results, err := p.vectors.Search(ctx, embedding, topK, nil)
	if err != nil {
		logger.Error("error searching vector store", "err", err)
		return nil, core.External("search vectors", err)
	}
	monitor.AfterSearch(results)

	contexts := FilterResults(results, p.threshold)
	monitor.AfterThreshold(contexts)
	logger.Info("retrieved context", "count", len(contexts), "candidates", len(results), "threshold", p.threshold)

	answer, err := p.generator.GenerateAnswer(ctx, query, BuildContext(contexts), history)
	if err != nil {
		logger.Error("error generating answer", "err", err)
		return nil, core.External("generate answer", err)
	}
	if strings.TrimSpace(answer) == "" {
		logger.Error("answer generator returned no text")
		return nil, core.External("generate answer", ErrEmptyAnswer)
	}
	monitor.AfterAnswer(answer)

	if err := p.memory.Append(ctx, sessionID, core.RoleAssistant, answer); err != nil {
		return nil, core.External("append assistant turn", err)
	}

	resp := &Response{
		SessionID: sessionID,
		Query:     query,
		Answer:    answer,
		Contexts:  contexts,
	}

	booking, err := p.detectBooking(ctx, logger, sessionID, query, monitor)
	if err != nil {
		return nil, err
	}
	if booking != nil {
		resp.BookingDetected = true
		resp.BookingID = booking.ID
		resp.Answer += Confirmation(booking)
	}

	p.archiveTurn(ctx, logger, sessionID, query, resp)
	monitor.Finish(resp)
	return resp, nil
}

// detectBooking runs extraction on the query and persists a booking when
// every required field is present. Partial extractions are inert.
func (p *Pipeline) detectBooking(ctx context.Context, logger *slog.Logger, sessionID, query string, monitor Monitor) (*core.Booking, error) {
	extraction, err := p.extractor.ExtractBooking(ctx, query)
	if err != nil {
		logger.Error("error extracting booking", "err", err)
		return nil, core.External("extract booking", err)
	}
	monitor.AfterExtraction(extraction)

	switch e := extraction.(type) {
	case ai.Malformed:
		logger.Warn("malformed booking extraction", "raw", e.Raw, "err", e.Err)
		return nil, nil
	case ai.NoData:
		logger.Debug("no booking information found")
		return nil, nil
	}

	info, _ := ai.BookingFrom(extraction)
	if !info.Complete() {
		logger.Debug("partial booking information ignored")
		return nil, nil
	}

	booking := core.NewBooking(info, sessionID)
	if err := p.bookings.CreateBooking(ctx, booking); err != nil {
		logger.Error("error creating booking", "err", err)
		return nil, core.External("create booking", err)
	}
	logger.Info("created booking", "booking", booking.ID)
	monitor.BookingCreated(booking)
	return booking, nil
}

func (p *Pipeline) archiveTurn(ctx context.Context, logger *slog.Logger, sessionID, query string, resp *Response) {
	if p.archive == nil {
		return
	}
	if _, err := p.archive.GetOrCreateSession(ctx, sessionID); err != nil {
		logger.Warn("error archiving turn", "err", err)
		return
	}
	err := p.archive.AppendMessages(ctx, sessionID,
		&core.Message{Role: core.RoleUser, Content: query},
		&core.Message{Role: core.RoleAssistant, Content: resp.Answer, RetrievedContexts: resp.Contexts},
	)
	if err != nil {
		logger.Warn("error archiving turn", "err", err)
	}
}
