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

package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/memory"
	"github.com/poiesic/ragbook/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVectorStore(t *testing.T, dimension int) *VectorStore {
	t.Helper()
	vectors, _, backend, err := NewMemoryStores(dimension, memory.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return vectors
}

func entry(key, doc string, v ...float32) vectorstore.Entry {
	return vectorstore.Entry{
		Key:    key,
		Vector: v,
		Metadata: map[string]any{
			vectorstore.MetaDocumentID: doc,
			vectorstore.MetaChunkText:  "text of " + key,
		},
	}
}

func TestNewVectorStore_RequiresBackend(t *testing.T) {
	_, err := NewVectorStore(nil, 3)
	assert.ErrorIs(t, err, ErrBackendRequired)
}

func TestVectorStore_Initialize(t *testing.T) {
	ctx := context.Background()
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	store, err := NewVectorStore(backend, 3)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(ctx))
	require.NoError(t, store.Initialize(ctx), "initialize must be idempotent")

	other, err := NewVectorStore(backend, 4)
	require.NoError(t, err)
	err = other.Initialize(ctx)
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestVectorStore_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	store := newTestVectorStore(t, 3)

	require.NoError(t, store.Upsert(ctx, []vectorstore.Entry{
		entry("a", "d1", 1, 0, 0),
		entry("b", "d1", 0.9, 0.1, 0),
		entry("c", "d2", 0, 1, 0),
		entry("d", "d2", -1, 0, 0),
	}))

	results, err := store.Search(ctx, []float32{1, 0, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Key)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "b", results[1].Key)
	assert.Equal(t, "c", results[2].Key)
	assert.Equal(t, "text of a", results[0].Metadata[vectorstore.MetaChunkText])

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestVectorStore_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newTestVectorStore(t, 2)

	require.NoError(t, store.Upsert(ctx, []vectorstore.Entry{entry("a", "d1", 1, 0)}))
	require.NoError(t, store.Upsert(ctx, []vectorstore.Entry{entry("a", "d9", 0, 1)}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := store.Search(ctx, []float32{0, 1}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "d9", results[0].Metadata[vectorstore.MetaDocumentID])
}

func TestVectorStore_LargeUpsertIsBatched(t *testing.T) {
	ctx := context.Background()
	store := newTestVectorStore(t, 2)

	entries := make([]vectorstore.Entry, 250)
	for i := range entries {
		entries[i] = entry(fmt.Sprintf("k%03d", i), "d", 1, float32(i))
	}
	require.NoError(t, store.Upsert(ctx, entries))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250, count)
}

func TestVectorStore_SearchFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestVectorStore(t, 2)
	require.NoError(t, store.Upsert(ctx, []vectorstore.Entry{
		entry("a", "d1", 1, 0),
		entry("b", "d2", 1, 0),
	}))

	results, err := store.Search(ctx, []float32{1, 0}, 5, vectorstore.Filter{vectorstore.MetaDocumentID: "d2"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Key)
}

func TestVectorStore_Validation(t *testing.T) {
	ctx := context.Background()
	store := newTestVectorStore(t, 2)

	err := store.Upsert(ctx, []vectorstore.Entry{entry("a", "d", 1, 0, 0)})
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	_, err = store.Search(ctx, []float32{1, 0}, 0, nil)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidTopK)

	results, err := store.Search(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
}

func TestVectorStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestVectorStore(t, 2)
	require.NoError(t, store.Upsert(ctx, []vectorstore.Entry{
		entry("a", "d", 1, 0),
		entry("b", "d", 0, 1),
	}))

	require.NoError(t, store.Delete(ctx, []string{"a", "missing"}))

	results, err := store.Search(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Key)
}
