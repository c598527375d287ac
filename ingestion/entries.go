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

package ingestion

import (
	"context"
	"fmt"

	"github.com/poiesic/ragbook/ai"
	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/vectorstore"
)

// ChunkMetadata returns the metadata recorded on a chunk row.
func ChunkMetadata(filename, documentID string) map[string]any {
	return map[string]any{
		vectorstore.MetaFilename:   filename,
		vectorstore.MetaDocumentID: documentID,
	}
}

// VectorEntry builds the vector store entry of a chunk. The metadata carries
// enough to rebuild the chunk without a metadata lookup.
func VectorEntry(chunk *core.Chunk, filename string, vector []float32) vectorstore.Entry {
	return vectorstore.Entry{
		Key:    chunk.VectorID,
		Vector: vector,
		Metadata: map[string]any{
			vectorstore.MetaChunkID:    chunk.ChunkID,
			vectorstore.MetaChunkText:  chunk.Text,
			vectorstore.MetaFilename:   filename,
			vectorstore.MetaChunkIndex: chunk.Index,
			vectorstore.MetaDocumentID: chunk.DocumentID,
		},
	}
}

// ChunkFilename returns the source filename recorded on a chunk row.
func ChunkFilename(chunk *core.Chunk) string {
	name, _ := chunk.Metadata[vectorstore.MetaFilename].(string)
	return name
}

// EmbedDocuments embeds texts for indexing and checks that one vector came
// back per text.
func EmbedDocuments(ctx context.Context, embedder ai.Embedder, texts []string) ([][]float32, error) {
	embeddings, err := embedder.EmbedTexts(ctx, texts, ai.PurposeDocument)
	if err != nil {
		return nil, core.External("embed chunks", err)
	}
	if len(embeddings) != len(texts) {
		return nil, core.External("embed chunks",
			fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingCount, len(texts), len(embeddings)))
	}
	return embeddings, nil
}
