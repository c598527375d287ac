package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/ragbook"
	"github.com/poiesic/ragbook/ai/mock"
	"github.com/poiesic/ragbook/config"
	"github.com/poiesic/ragbook/core"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Badger.InMemory = true
	cfg.AI.Dimensions = mock.DefaultDimensions
	cfg.Metadata.DSN = filepath.Join(t.TempDir(), "metadata.db")
	cfg.Blob.Root = t.TempDir()
	cfg.Upload.MaxSize = 4096

	svc, err := ragbook.New(context.Background(), cfg, ragbook.WithAIProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return NewServer(svc)
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, s *Server, filename string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func sampleText() string {
	return strings.Repeat("Interviews are scheduled between nine and five on weekdays. ", 20)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	h := decode[ragbook.Health](t, rec)
	assert.Equal(t, ragbook.StatusOK, h.Status)
	assert.Equal(t, "badger", h.VectorStore)
	assert.Equal(t, ragbook.StatusOK, h.Components["metadata"])
}

func TestDocumentLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := upload(t, s, "schedule.txt", []byte(sampleText()), map[string]string{
		"strategy":       "semantic",
		"split_by":       "sentence",
		"max_chunk_size": "300",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[ingestResponse](t, rec)
	assert.NotEmpty(t, created.DocumentID)
	assert.Equal(t, "schedule.txt", created.Filename)
	assert.Equal(t, "semantic", created.Strategy)
	assert.Greater(t, created.TotalChunks, 1)
	assert.Equal(t, "Document ingested successfully", created.Message)

	rec = do(t, s, http.MethodGet, "/api/v1/documents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Documents []documentResponse `json:"documents"`
		Total     int                `json:"total"`
	}](t, rec)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, created.DocumentID, list.Documents[0].ID)

	rec = do(t, s, http.MethodGet, "/api/v1/documents/"+created.DocumentID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[documentResponse](t, rec)
	assert.Equal(t, "txt", doc.FileType)
	assert.Equal(t, created.TotalChunks, doc.TotalChunks)

	rec = do(t, s, http.MethodGet, "/api/v1/documents/"+created.DocumentID+"/chunks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	chunks := decode[struct {
		Chunks []chunkResponse `json:"chunks"`
		Total  int             `json:"total"`
	}](t, rec)
	assert.Equal(t, created.TotalChunks, chunks.Total)
	assert.Equal(t, core.ChunkID(created.DocumentID, 0), chunks.Chunks[0].ChunkID)

	rec = do(t, s, http.MethodDelete, "/api/v1/documents/"+created.DocumentID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/documents/"+created.DocumentID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, s, http.MethodGet, "/api/v1/documents/"+created.DocumentID+"/chunks", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, s, http.MethodDelete, "/api/v1/documents/"+created.DocumentID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadRejected(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		filename string
		data     []byte
		fields   map[string]string
	}{
		{"unsupported extension", "tool.exe", []byte("MZ"), nil},
		{"too large", "big.txt", bytes.Repeat([]byte("a"), 5000), nil},
		{"empty text", "blank.txt", []byte("   "), nil},
		{"unknown strategy", "notes.txt", []byte("hello"), map[string]string{"strategy": "magic"}},
		{"non numeric size", "notes.txt", []byte("hello"), map[string]string{"chunk_size": "big"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, s, tt.filename, tt.data, tt.fields)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			body := decode[map[string]string](t, rec)
			assert.NotEmpty(t, body["error"])
		})
	}

	t.Run("missing file", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/v1/documents", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestChat(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, upload(t, s, "schedule.txt", []byte(sampleText()), nil).Code)

	rec := do(t, s, http.MethodPost, "/api/v1/chat", chatRequest{Query: "When are interviews?", SessionID: "s1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[chatResponse](t, rec)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, "When are interviews?", resp.Query)
	assert.NotEmpty(t, resp.Answer)
	assert.NotNil(t, resp.Contexts)
	assert.False(t, resp.BookingDetected)
	assert.Empty(t, resp.BookingID)

	t.Run("explicit top k limits contexts", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/v1/chat", gin.H{"query": "When are interviews?", "top_k": 1})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.LessOrEqual(t, len(decode[chatResponse](t, rec).Contexts), 1)
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name string
			body any
		}{
			{"empty query", chatRequest{Query: "  "}},
			{"top k too large", gin.H{"query": "hi", "top_k": 21}},
			{"explicit zero top k", gin.H{"query": "hi", "top_k": 0}},
			{"negative top k", gin.H{"query": "hi", "top_k": -3}},
			{"malformed body", "not an object"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := do(t, s, http.MethodPost, "/api/v1/chat", tt.body)
				assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			})
		}
	})
}

func TestSessions(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/chat", chatRequest{Query: "Hello there", SessionID: "abc"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/sessions/abc/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	session := decode[sessionResponse](t, rec)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, core.RoleUser, session.Messages[0].Role)
	assert.Equal(t, "Hello there", session.Messages[0].Content)
	assert.Equal(t, core.RoleAssistant, session.Messages[1].Role)

	rec = do(t, s, http.MethodPost, "/api/v1/sessions/abc/extend", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/v1/sessions/abc", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/sessions/abc/messages", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, s, http.MethodPost, "/api/v1/sessions/abc/extend", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookings(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/chat", chatRequest{
		Query:     "Please book me, call me Ada, email ada@example.com, 2025-12-15 at 14:00",
		SessionID: "book",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[chatResponse](t, rec)
	require.True(t, resp.BookingDetected)
	require.NotEmpty(t, resp.BookingID)
	assert.Contains(t, resp.Answer, "Interview booking created successfully!")

	rec = do(t, s, http.MethodGet, "/api/v1/bookings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Bookings []bookingResponse `json:"bookings"`
		Total    int               `json:"total"`
	}](t, rec)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, resp.BookingID, list.Bookings[0].ID)

	path := "/api/v1/bookings/" + resp.BookingID
	rec = do(t, s, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	b := decode[bookingResponse](t, rec)
	assert.Equal(t, "Ada", b.Name)
	assert.Equal(t, "ada@example.com", b.Email)
	assert.Equal(t, "2025-12-15", b.Date)
	assert.Equal(t, "14:00", b.Time)
	assert.Equal(t, "book", b.SessionID)
	assert.Equal(t, core.BookingPending, b.Status)

	rec = do(t, s, http.MethodPatch, path, statusRequest{Status: "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, core.BookingConfirmed, decode[bookingResponse](t, rec).Status)

	tests := []struct {
		name   string
		path   string
		status string
		want   int
	}{
		{"confirmed cannot be cancelled", path, "cancelled", http.StatusBadRequest},
		{"unknown status", path, "rescheduled", http.StatusBadRequest},
		{"unknown booking", "/api/v1/bookings/missing", "confirmed", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPatch, tt.path, statusRequest{Status: tt.status})
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec = do(t, s, http.MethodGet, "/api/v1/bookings/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.Invalidf("bad"), http.StatusBadRequest},
		{fmt.Errorf("get: %w", core.ErrNotFound), http.StatusNotFound},
		{core.External("search", errors.New("timeout")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestAbortWithErrorHidesInternals(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	abortWithError(c, s.logger, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]string{"error": internalErrorMessage}, decode[map[string]string](t, rec))
}
