package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/ragbook/ai"
	"github.com/poiesic/ragbook/ai/mock"
	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/memory"
	"github.com/poiesic/ragbook/storage"
	"github.com/poiesic/ragbook/storage/badger"
	"github.com/poiesic/ragbook/storage/sqlstore"
	"github.com/poiesic/ragbook/vectorstore"
)

const testDimension = 4

type testEnv struct {
	vectors   *badger.VectorStore
	sessions  *badger.SessionStore
	metadata  storage.Repository
	embedder  *mock.MockEmbedder
	generator *mock.MockAnswerGenerator
	extractor *mock.MockBookingExtractor
	provider  *mock.MockProvider
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	vectors, sessions, backend, err := badger.NewMemoryStores(testDimension, memory.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	metadata, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { metadata.Close() })

	embedder := mock.NewMockEmbedder()
	embedder.Dimensions = testDimension
	// Every query points along the first axis so scores are the first
	// component of the stored unit vectors.
	embedder.EmbedTextFunc = func(context.Context, string, ai.Purpose) ([]float32, error) {
		return []float32{1, 0, 0, 0}, nil
	}
	generator := mock.NewMockAnswerGenerator()
	extractor := mock.NewMockBookingExtractor()

	return &testEnv{
		vectors:   vectors,
		sessions:  sessions,
		metadata:  metadata,
		embedder:  embedder,
		generator: generator,
		extractor: extractor,
		provider:  mock.NewMockProviderWithServices(embedder, generator, extractor),
	}
}

func (e *testEnv) pipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(e.sessions, e.vectors, e.provider, e.metadata, opts...)
	require.NoError(t, err)
	return p
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	entry := func(id string, vector []float32, text string) vectorstore.Entry {
		return vectorstore.Entry{
			Key:    core.VectorID(id),
			Vector: vector,
			Metadata: map[string]any{
				vectorstore.MetaChunkID:    id,
				vectorstore.MetaChunkText:  text,
				vectorstore.MetaFilename:   "handbook.txt",
				vectorstore.MetaChunkIndex: 0,
				vectorstore.MetaDocumentID: "doc",
			},
		}
	}
	require.NoError(t, e.vectors.Upsert(context.Background(), []vectorstore.Entry{
		entry("doc_0", []float32{1, 0, 0, 0}, "Interviews last one hour."),
		entry("doc_1", []float32{0.8, 0.6, 0, 0}, "Interviews are held on weekdays."),
		entry("doc_2", []float32{0, 1, 0, 0}, "The cafeteria serves lunch."),
	}))
}

func TestNewPipeline(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name    string
		build   func() (*Pipeline, error)
		wantErr error
	}{
		{"nil memory", func() (*Pipeline, error) { return NewPipeline(nil, env.vectors, env.provider, env.metadata) }, ErrMemoryRequired},
		{"nil vector store", func() (*Pipeline, error) { return NewPipeline(env.sessions, nil, env.provider, env.metadata) }, ErrVectorStoreRequired},
		{"nil provider", func() (*Pipeline, error) { return NewPipeline(env.sessions, env.vectors, nil, env.metadata) }, ErrAIProviderRequired},
		{"nil bookings", func() (*Pipeline, error) { return NewPipeline(env.sessions, env.vectors, env.provider, nil) }, ErrBookingRepositoryRequired},
		{"bad threshold", func() (*Pipeline, error) {
			return NewPipeline(env.sessions, env.vectors, env.provider, env.metadata, WithThreshold(1.5))
		}, core.ErrValidation},
		{"bad default top_k", func() (*Pipeline, error) {
			return NewPipeline(env.sessions, env.vectors, env.provider, env.metadata, WithDefaultTopK(21))
		}, ErrInvalidTopK},
		{"bad history", func() (*Pipeline, error) {
			return NewPipeline(env.sessions, env.vectors, env.provider, env.metadata, WithHistoryFetch(-1))
		}, core.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	p, err := NewPipeline(env.sessions, env.vectors, env.provider, env.metadata, WithLogger(nil), WithArchive(env.metadata))
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestAskValidation(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	p := env.pipeline(t)

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{"blank query", Request{Query: "  "}, ErrQueryRequired},
		{"top_k too large", Request{Query: "hi", TopK: 21}, ErrInvalidTopK},
		{"negative top_k", Request{Query: "hi", TopK: -1}, ErrInvalidTopK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Ask(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
	assert.Equal(t, 0, env.embedder.CallCount())
}

func TestAskRetrievesAboveThreshold(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	env.seed(t)
	p := env.pipeline(t)

	resp, err := p.Ask(ctx, Request{Query: "How long are interviews?", SessionID: "s1"})
	require.NoError(t, err)

	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, "How long are interviews?", resp.Query)
	assert.False(t, resp.BookingDetected)
	assert.Empty(t, resp.BookingID)

	require.Len(t, resp.Contexts, 2)
	assert.Equal(t, "doc_0", resp.Contexts[0].ChunkID)
	assert.Equal(t, "Interviews last one hour.", resp.Contexts[0].ChunkText)
	assert.Equal(t, "handbook.txt", resp.Contexts[0].Filename)
	assert.InDelta(t, 1.0, resp.Contexts[0].Score, 1e-5)
	assert.Equal(t, "doc_1", resp.Contexts[1].ChunkID)
	assert.InDelta(t, 0.8, resp.Contexts[1].Score, 1e-5)
	for _, c := range resp.Contexts {
		assert.GreaterOrEqual(t, c.Score, float32(DefaultThreshold))
	}

	call, ok := env.generator.LastCall()
	require.True(t, ok)
	assert.Equal(t, "Interviews last one hour.\n\nInterviews are held on weekdays.", call.Context)
	assert.Empty(t, call.History)
	assert.Equal(t, []ai.Purpose{ai.PurposeQuery}, env.embedder.Purposes())

	turns, err := env.sessions.All(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, core.RoleUser, turns[0].Role)
	assert.Equal(t, core.RoleAssistant, turns[1].Role)
	assert.Equal(t, resp.Answer, turns[1].Content)
}

func TestAskNoContext(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	env.seed(t)
	p := env.pipeline(t, WithThreshold(0.99))

	resp, err := p.Ask(ctx, Request{Query: "weekdays?", TopK: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionID, "session id is generated")
	require.Len(t, resp.Contexts, 1)

	p = env.pipeline(t, WithThreshold(1))
	env.embedder.EmbedTextFunc = func(context.Context, string, ai.Purpose) ([]float32, error) {
		return []float32{0, 0, 1, 0}, nil
	}
	resp, err = p.Ask(ctx, Request{Query: "anything about parking?"})
	require.NoError(t, err)
	assert.Empty(t, resp.Contexts)
	call, _ := env.generator.LastCall()
	assert.Equal(t, NoContext, call.Context)
}

func TestAskPassesHistoryBeforeTurn(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	p := env.pipeline(t, WithHistoryFetch(3))

	for _, q := range []string{"first", "second", "third"} {
		_, err := p.Ask(ctx, Request{Query: q, SessionID: "s1"})
		require.NoError(t, err)
	}

	call, ok := env.generator.LastCall()
	require.True(t, ok)
	assert.Equal(t, "third", call.Query)
	require.Len(t, call.History, 3)
	// The current turn is never part of its own history
	assert.Equal(t, core.RoleAssistant, call.History[0].Role)
	assert.Equal(t, "second", call.History[1].Content)
	assert.Equal(t, core.RoleAssistant, call.History[2].Role)
}

func TestAskCreatesBooking(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	p := env.pipeline(t)

	query := "call me John, reach john@x.com on 2025-12-15 at 14:00"
	resp, err := p.Ask(ctx, Request{Query: query, SessionID: "s1"})
	require.NoError(t, err)

	assert.True(t, resp.BookingDetected)
	require.NotEmpty(t, resp.BookingID)
	assert.Equal(t, []string{query}, env.extractor.Texts(), "extraction runs on the query")

	booking, err := env.metadata.GetBooking(ctx, resp.BookingID)
	require.NoError(t, err)
	assert.Equal(t, "John", booking.Name)
	assert.Equal(t, "john@x.com", booking.Email)
	assert.Equal(t, "2025-12-15", booking.Date)
	assert.Equal(t, "14:00", booking.Time)
	assert.Equal(t, "s1", booking.SessionID)
	assert.Equal(t, core.BookingPending, booking.Status)

	assert.True(t, strings.HasSuffix(resp.Answer, Confirmation(booking)))
	assert.Contains(t, resp.Answer, "✅ Interview booking created successfully!")
	assert.Contains(t, resp.Answer, "- Booking ID: "+booking.ID)

	// Memory keeps the answer without the confirmation block
	turns, err := env.sessions.All(ctx, "s1")
	require.NoError(t, err)
	assert.NotContains(t, turns[1].Content, "Booking ID")
}

func TestAskIgnoresIncompleteExtraction(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		extract func(context.Context, string) (ai.Extraction, error)
	}{
		{"no data", func(context.Context, string) (ai.Extraction, error) { return ai.NoData{}, nil }},
		{"malformed", func(context.Context, string) (ai.Extraction, error) {
			return ai.Malformed{Raw: "{name: ", Err: errors.New("unexpected end")}, nil
		}},
		{"partial", func(context.Context, string) (ai.Extraction, error) {
			return ai.Parsed{Info: core.BookingInfo{Name: "John", Email: "john@x.com"}}, nil
		}},
		{"invalid email", func(context.Context, string) (ai.Extraction, error) {
			return ai.ParseBookingResponse(`{"name": "John", "email": "not provided", "date": "2025-12-15", "time": "14:00"}`), nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			env.extractor.ExtractBookingFunc = tt.extract
			p := env.pipeline(t)

			resp, err := p.Ask(ctx, Request{Query: "hello"})
			require.NoError(t, err)
			assert.False(t, resp.BookingDetected)
			assert.Empty(t, resp.BookingID)
			assert.NotContains(t, resp.Answer, "Booking ID")

			bookings, err := env.metadata.ListBookings(ctx)
			require.NoError(t, err)
			assert.Empty(t, bookings)
		})
	}
}

func TestAskExternalFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")

	tests := []struct {
		name string
		fail func(*testEnv)
	}{
		{"embedding", func(e *testEnv) {
			e.embedder.EmbedTextFunc = func(context.Context, string, ai.Purpose) ([]float32, error) { return nil, boom }
		}},
		{"generation", func(e *testEnv) {
			e.generator.GenerateAnswerFunc = func(context.Context, string, string, []core.Turn) (string, error) { return "", boom }
		}},
		{"extraction", func(e *testEnv) {
			e.extractor.ExtractBookingFunc = func(context.Context, string) (ai.Extraction, error) { return nil, boom }
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			tt.fail(env)
			p := env.pipeline(t)

			_, err := p.Ask(ctx, Request{Query: "hello"})
			assert.ErrorIs(t, err, core.ErrExternal)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestAskExtractionFailureKeepsTurns(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	env.extractor.ExtractBookingFunc = func(context.Context, string) (ai.Extraction, error) {
		return nil, errors.New("connection reset")
	}
	p := env.pipeline(t, WithArchive(env.metadata))

	_, err := p.Ask(ctx, Request{Query: "call me John, john@x.com, 2025-12-15 at 14:00", SessionID: "s1"})
	assert.ErrorIs(t, err, core.ErrExternal)

	turns, err := env.sessions.All(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, core.RoleUser, turns[0].Role)
	assert.Equal(t, core.RoleAssistant, turns[1].Role)

	bookings, err := env.metadata.ListBookings(ctx)
	require.NoError(t, err)
	assert.Empty(t, bookings)

	_, err = env.metadata.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, core.ErrNotFound, "nothing is archived")
}

func TestAskBlankAnswer(t *testing.T) {
	ctx := context.Background()

	for _, answer := range []string{"", "   \n"} {
		t.Run(strconv.Quote(answer), func(t *testing.T) {
			env := setupTestEnv(t)
			env.generator.GenerateAnswerFunc = func(context.Context, string, string, []core.Turn) (string, error) {
				return answer, nil
			}
			p := env.pipeline(t)

			resp, err := p.Ask(ctx, Request{Query: "hello", SessionID: "s1"})
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, ErrEmptyAnswer)
			assert.ErrorIs(t, err, core.ErrExternal)
			assert.NotErrorIs(t, err, core.ErrValidation)

			// Only the user turn was written; no blank assistant turn follows it
			turns, err := env.sessions.All(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, turns, 1)
			assert.Equal(t, core.RoleUser, turns[0].Role)
			assert.Empty(t, env.extractor.Texts(), "extraction does not run")
		})
	}
}

type failingArchive struct {
	storage.SessionRepository
}

func (failingArchive) GetOrCreateSession(context.Context, string) (*core.Session, error) {
	return nil, errors.New("database is locked")
}

func TestAskArchivesTurns(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	env.seed(t)
	p := env.pipeline(t, WithArchive(env.metadata))

	resp, err := p.Ask(ctx, Request{Query: "How long are interviews?", SessionID: "s1"})
	require.NoError(t, err)

	messages, err := env.metadata.ListMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, core.RoleUser, messages[0].Role)
	assert.Equal(t, "How long are interviews?", messages[0].Content)
	assert.Equal(t, core.RoleAssistant, messages[1].Role)
	assert.Equal(t, resp.Answer, messages[1].Content)
	require.Len(t, messages[1].RetrievedContexts, 2)
	assert.Equal(t, "doc_0", messages[1].RetrievedContexts[0].ChunkID)

	session, err := env.metadata.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, session.TotalMessages)

	t.Run("archive failure does not fail the turn", func(t *testing.T) {
		p := env.pipeline(t, WithArchive(failingArchive{}))
		_, err := p.Ask(ctx, Request{Query: "again", SessionID: "s2"})
		assert.NoError(t, err)
	})
}

func TestSessionOperations(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	p := env.pipeline(t, WithArchive(env.metadata))

	_, err := p.Messages(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, p.ExtendSession(ctx, "missing"), core.ErrNotFound)
	assert.ErrorIs(t, p.ExtendSession(ctx, ""), core.ErrValidation)
	assert.NoError(t, p.ClearSession(ctx, "missing"))

	_, err = p.Ask(ctx, Request{Query: "hello", SessionID: "s1"})
	require.NoError(t, err)

	turns, err := p.Messages(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
	assert.NoError(t, p.ExtendSession(ctx, "s1"))

	require.NoError(t, p.ClearSession(ctx, "s1"))
	_, err = p.Messages(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = env.metadata.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

type recordingMonitor struct {
	mu     sync.Mutex
	stages []string
}

func (m *recordingMonitor) add(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, stage)
}

func (m *recordingMonitor) Start(_, _ string)                        { m.add("start") }
func (m *recordingMonitor) AfterHistory(_ []core.Turn)               { m.add("history") }
func (m *recordingMonitor) AfterSearch(_ []core.SearchResult)        { m.add("search") }
func (m *recordingMonitor) AfterThreshold(_ []core.RetrievedContext) { m.add("threshold") }
func (m *recordingMonitor) AfterAnswer(_ string)                     { m.add("answer") }
func (m *recordingMonitor) AfterExtraction(_ ai.Extraction)          { m.add("extraction") }
func (m *recordingMonitor) BookingCreated(_ *core.Booking)           { m.add("booking") }
func (m *recordingMonitor) Finish(_ *Response)                       { m.add("finish") }

func TestAskWithMonitor(t *testing.T) {
	env := setupTestEnv(t)
	p := env.pipeline(t)
	monitor := &recordingMonitor{}

	_, err := p.AskWithMonitor(context.Background(),
		Request{Query: "call me Ada, ada@x.com, 2025-01-02 at 09:30"}, monitor)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"start", "history", "search", "threshold", "answer", "extraction", "booking", "finish"},
		monitor.stages)
}

func TestFilterResults(t *testing.T) {
	results := []core.SearchResult{
		{Key: "a", Score: 0.9, Metadata: map[string]any{"chunk_id": "a", "chunk_text": "alpha", "filename": "f.txt"}},
		{Key: "b", Score: 0.5, Metadata: map[string]any{"chunk_id": "b", "chunk_text": "beta"}},
		{Key: "c", Score: 0.49, Metadata: map[string]any{"chunk_id": "c", "chunk_text": "gamma"}},
	}

	contexts := FilterResults(results, 0.5)
	require.Len(t, contexts, 2)
	assert.Equal(t, "a", contexts[0].ChunkID)
	assert.Equal(t, "f.txt", contexts[0].Filename)
	assert.Equal(t, "b", contexts[1].ChunkID)
	assert.Empty(t, contexts[1].Filename)

	assert.Empty(t, FilterResults(nil, 0.5))
	assert.Empty(t, FilterResults(results, 0.95))
}

func TestBuildContext(t *testing.T) {
	assert.Equal(t, NoContext, BuildContext(nil))
	assert.Equal(t, NoContext, BuildContext([]core.RetrievedContext{{ChunkText: "  "}}))
	assert.Equal(t, "one\n\ntwo", BuildContext([]core.RetrievedContext{{ChunkText: "one"}, {ChunkText: ""}, {ChunkText: "two"}}))
}

func TestConfirmation(t *testing.T) {
	b := &core.Booking{ID: "b1", Name: "John", Email: "john@x.com", Date: "2025-12-15", Time: "14:00"}
	assert.Equal(t,
		"\n\n✅ Interview booking created successfully!\n- Name: John\n- Email: john@x.com\n- Date: 2025-12-15\n- Time: 14:00\n- Booking ID: b1",
		Confirmation(b))
}
