package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/ragbook/ai"
	"github.com/poiesic/ragbook/ai/mock"
	"github.com/poiesic/ragbook/blob"
	"github.com/poiesic/ragbook/blob/local"
	"github.com/poiesic/ragbook/chunking"
	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/extract"
	"github.com/poiesic/ragbook/memory"
	"github.com/poiesic/ragbook/storage"
	"github.com/poiesic/ragbook/storage/badger"
	"github.com/poiesic/ragbook/storage/sqlstore"
	"github.com/poiesic/ragbook/vectorstore"
)

const testDimension = 8

type testEnv struct {
	metadata storage.Repository
	vectors  *badger.VectorStore
	embedder *mock.MockEmbedder
	blobRoot string
	pipeline *Pipeline
}

func setupTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	ctx := context.Background()

	metadata, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { metadata.Close() })

	vectors, _, backend, err := badger.NewMemoryStores(testDimension, memory.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	embedder := mock.NewMockEmbedder()
	embedder.Dimensions = testDimension

	env := &testEnv{metadata: metadata, vectors: vectors, embedder: embedder}
	env.pipeline = newTestPipeline(t, env, vectors, opts...)
	return env
}

func newTestPipeline(t *testing.T, env *testEnv, vectors vectorstore.Store, opts ...Option) *Pipeline {
	t.Helper()
	env.blobRoot = t.TempDir()
	blobs, err := local.New(env.blobRoot)
	require.NoError(t, err)

	all := append([]Option{WithPoolSize(2), WithBlobStore(blobs), WithEmbeddingModel("mock-embed")}, opts...)
	p, err := NewPipeline(env.metadata, vectors, env.embedder, all...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

// sampleText returns text long enough for several fixed-size chunks.
func sampleText() string {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("The interview process has three stages and takes about two weeks. ")
	}
	return b.String()
}

type failingUpsert struct {
	vectorstore.Store
}

func (failingUpsert) Upsert(context.Context, []vectorstore.Entry) error {
	return errors.New("connection refused")
}

func TestNewPipeline(t *testing.T) {
	env := setupTestEnv(t)

	_, err := NewPipeline(nil, env.vectors, env.embedder)
	assert.ErrorIs(t, err, ErrMetadataStoreRequired)

	_, err = NewPipeline(env.metadata, nil, env.embedder)
	assert.ErrorIs(t, err, ErrVectorStoreRequired)

	_, err = NewPipeline(env.metadata, env.vectors, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	p, err := NewPipeline(env.metadata, env.vectors, env.embedder, WithLogger(nil), WithPoolSize(0))
	require.NoError(t, err)
	p.Release()
}

func TestIngestFile(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)

	res, err := env.pipeline.IngestFile(ctx, Request{
		Filename: "guide.txt",
		Data:     []byte(sampleText()),
		Chunking: chunking.DefaultConfig(),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.DocumentID)
	assert.Equal(t, "guide.txt", res.Filename)
	assert.Greater(t, res.TotalChunks, 1)
	assert.Equal(t, "fixed_len", res.Strategy)
	assert.Equal(t, "badger", res.VectorStore)
	assert.Equal(t, "Document ingested successfully", res.Message)
	assert.False(t, res.CreatedAt.IsZero())

	// One batched embedding call for the whole document
	assert.Equal(t, 1, env.embedder.CallCount())
	assert.Equal(t, []ai.Purpose{ai.PurposeDocument}, env.embedder.Purposes())

	doc, err := env.metadata.GetDocument(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "txt", doc.FileType)
	assert.Equal(t, "mock-embed", doc.EmbeddingModel)
	assert.Equal(t, res.TotalChunks, doc.TotalChunks)
	assert.Equal(t, core.Checksum([]byte(sampleText())), doc.Checksum)
	assert.EqualValues(t, 500, doc.ChunkingConfig["chunk_size"])

	archived, err := os.ReadFile(doc.FilePath)
	require.NoError(t, err)
	assert.Equal(t, sampleText(), string(archived))

	chunks, err := env.metadata.ListChunks(ctx, res.DocumentID)
	require.NoError(t, err)
	require.Len(t, chunks, res.TotalChunks)

	count, err := env.vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.TotalChunks, count)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, core.ChunkID(res.DocumentID, i), c.ChunkID)
		assert.Equal(t, "vec_"+c.ChunkID, c.VectorID)
		assert.Equal(t, "guide.txt", ChunkFilename(c))
	}

	// The first chunk is its own nearest neighbour
	hits, err := env.vectors.Search(ctx, mock.Vector(chunks[0].Text, testDimension), 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, chunks[0].VectorID, hits[0].Key)
	assert.Equal(t, chunks[0].ChunkID, hits[0].Metadata[vectorstore.MetaChunkID])
	assert.Equal(t, chunks[0].Text, hits[0].Metadata[vectorstore.MetaChunkText])
	assert.Equal(t, "guide.txt", hits[0].Metadata[vectorstore.MetaFilename])
	assert.Equal(t, res.DocumentID, hits[0].Metadata[vectorstore.MetaDocumentID])
}

func TestIngestFileValidation(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t, WithPolicy(extract.Policy{AllowedExtensions: []string{".txt"}, MaxSize: 64}))

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{
			name:    "unsupported extension",
			req:     Request{Filename: "notes.docx", Data: []byte("hello"), Chunking: chunking.DefaultConfig()},
			wantErr: extract.ErrUnsupportedType,
		},
		{
			name:    "too large",
			req:     Request{Filename: "notes.txt", Data: make([]byte, 65), Chunking: chunking.DefaultConfig()},
			wantErr: extract.ErrTooLarge,
		},
		{
			name:    "no text",
			req:     Request{Filename: "notes.txt", Data: []byte("   \n"), Chunking: chunking.DefaultConfig()},
			wantErr: extract.ErrNoText,
		},
		{
			name:    "bad chunking config",
			req:     Request{Filename: "notes.txt", Data: []byte("hello"), Chunking: chunking.Config{Strategy: "magic"}},
			wantErr: chunking.ErrUnknownStrategy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.pipeline.IngestFile(ctx, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}

	// Nothing was started
	assert.Equal(t, 0, env.embedder.CallCount())
	docs, err := env.metadata.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)

	t.Run("semantic strategy", func(t *testing.T) {
		cfg := chunking.Config{Strategy: chunking.StrategySemantic, SplitBy: chunking.SplitParagraph, MaxChunkSize: 200}
		text := "First paragraph about scheduling.\n\nSecond paragraph about interviews."
		res, err := env.pipeline.Ingest(ctx, Document{Filename: "faq.md", FileType: "md", Text: text}, cfg)
		require.NoError(t, err)
		assert.Equal(t, "semantic", res.Strategy)

		doc, err := env.metadata.GetDocument(ctx, res.DocumentID)
		require.NoError(t, err)
		assert.Equal(t, "paragraph", doc.ChunkingConfig["split_by"])
		assert.Empty(t, doc.FilePath, "text-only documents are not archived")
	})

	t.Run("empty text", func(t *testing.T) {
		_, err := env.pipeline.Ingest(ctx, Document{Filename: "x.txt", Text: "  "}, chunking.DefaultConfig())
		assert.ErrorIs(t, err, ErrEmptyText)
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("missing filename", func(t *testing.T) {
		_, err := env.pipeline.Ingest(ctx, Document{Text: "hello"}, chunking.DefaultConfig())
		assert.ErrorIs(t, err, ErrFilenameRequired)
	})
}

func TestIngestEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)

	env.embedder.EmbedTextsFunc = func(context.Context, []string, ai.Purpose) ([][]float32, error) {
		return nil, errors.New("rate limited")
	}
	_, err := env.pipeline.IngestFile(ctx, Request{Filename: "a.txt", Data: []byte(sampleText()), Chunking: chunking.DefaultConfig()})
	assert.ErrorIs(t, err, core.ErrExternal)

	env.embedder.EmbedTextsFunc = func(context.Context, []string, ai.Purpose) ([][]float32, error) {
		return [][]float32{mock.Vector("x", testDimension)}, nil
	}
	_, err = env.pipeline.IngestFile(ctx, Request{Filename: "a.txt", Data: []byte(sampleText()), Chunking: chunking.DefaultConfig()})
	assert.ErrorIs(t, err, ErrEmbeddingCount)
	assert.ErrorIs(t, err, core.ErrExternal)

	// Nothing was recorded or archived
	docs, err := env.metadata.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
	entries, err := os.ReadDir(env.blobRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIngestUpsertFailureKeepsMetadata(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	p := newTestPipeline(t, env, failingUpsert{env.vectors})

	_, err := p.IngestFile(ctx, Request{Filename: "a.txt", Data: []byte(sampleText()), Chunking: chunking.DefaultConfig()})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrExternal)

	docs, err := env.metadata.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	count, err := env.metadata.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, docs[0].TotalChunks, count)
}

func TestIngestBatch(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)

	reqs := []Request{
		{Filename: "one.txt", Data: []byte(sampleText()), Chunking: chunking.DefaultConfig()},
		{Filename: "two.exe", Data: []byte("binary"), Chunking: chunking.DefaultConfig()},
		{Filename: "three.txt", Data: []byte("A short note about the interview."), Chunking: chunking.DefaultConfig()},
	}
	results := env.pipeline.IngestBatch(ctx, reqs)
	require.Len(t, results, 3)

	assert.Equal(t, "one.txt", results[0].Filename)
	require.NoError(t, results[0].Err)
	assert.Greater(t, results[0].Result.TotalChunks, 1)

	assert.Equal(t, "two.exe", results[1].Filename)
	assert.ErrorIs(t, results[1].Err, extract.ErrUnsupportedType)
	assert.Nil(t, results[1].Result)

	require.NoError(t, results[2].Err)
	assert.Equal(t, 1, results[2].Result.TotalChunks)

	docs, err := env.metadata.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestDeleteDocument(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)

	keep, err := env.pipeline.IngestFile(ctx, Request{Filename: "keep.txt", Data: []byte("Keep this short note."), Chunking: chunking.DefaultConfig()})
	require.NoError(t, err)
	drop, err := env.pipeline.IngestFile(ctx, Request{Filename: "drop.txt", Data: []byte(sampleText()), Chunking: chunking.DefaultConfig()})
	require.NoError(t, err)

	require.NoError(t, env.pipeline.DeleteDocument(ctx, drop.DocumentID))

	_, err = env.metadata.GetDocument(ctx, drop.DocumentID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	count, err := env.vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, keep.TotalChunks, count)

	_, err = os.Stat(filepath.Join(env.blobRoot, blob.DocumentPrefix(drop.DocumentID)))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(env.blobRoot, blob.Key(keep.DocumentID, "keep.txt")))
	assert.NoError(t, err)

	err = env.pipeline.DeleteDocument(ctx, drop.DocumentID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestVectorEntry(t *testing.T) {
	chunk := &core.Chunk{
		ChunkID:    core.ChunkID("doc", 3),
		DocumentID: "doc",
		Index:      3,
		Text:       "hello",
		VectorID:   core.VectorID(core.ChunkID("doc", 3)),
	}
	entry := VectorEntry(chunk, "a.txt", []float32{1, 0})

	assert.Equal(t, "vec_doc_3", entry.Key)
	assert.Equal(t, []float32{1, 0}, entry.Vector)
	assert.Equal(t, map[string]any{
		"chunk_id":    "doc_3",
		"chunk_text":  "hello",
		"filename":    "a.txt",
		"chunk_index": 3,
		"document_id": "doc",
	}, entry.Metadata)
}
