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

package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/poiesic/ragbook/chunking"
	"github.com/poiesic/ragbook/ingestion"
)

// uploadDocument ingests the multipart "file" field. Chunking parameters
// default to the configured chunking section.
func (s *Server) uploadDocument(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}

	cfg, ok := s.chunkingFromForm(c)
	if !ok {
		return
	}

	file, err := header.Open()
	if err != nil {
		abortWithError(c, s.logger, err)
		return
	}
	defer file.Close()

	// Reading one byte past the ceiling lets the size check reject the upload.
	data, err := io.ReadAll(io.LimitReader(file, s.svc.Config().Upload.MaxSize+1))
	if err != nil {
		abortWithError(c, s.logger, err)
		return
	}

	res, err := s.svc.Ingestion().IngestFile(c.Request.Context(), ingestion.Request{
		Filename: header.Filename,
		Data:     data,
		Chunking: cfg,
	})
	if err != nil {
		abortWithError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusCreated, newIngestResponse(res))
}

func (s *Server) chunkingFromForm(c *gin.Context) (chunking.Config, bool) {
	cfg := s.svc.Config().Chunking
	if v := c.PostForm("strategy"); v != "" {
		cfg.Strategy = chunking.Strategy(v)
	}
	if v := c.PostForm("split_by"); v != "" {
		cfg.SplitBy = chunking.SplitBy(v)
	}
	ints := []struct {
		field string
		dst   *int
	}{
		{"chunk_size", &cfg.ChunkSize},
		{"chunk_overlap", &cfg.ChunkOverlap},
		{"max_chunk_size", &cfg.MaxChunkSize},
	}
	for _, f := range ints {
		v := c.PostForm(f.field)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, "%s must be an integer", f.field)
			return cfg, false
		}
		*f.dst = n
	}
	return cfg, true
}

func (s *Server) listDocuments(c *gin.Context) {
	docs, err := s.svc.Metadata().ListDocuments(c.Request.Context())
	if err != nil {
		abortWithError(c, s.logger, err)
		return
	}
	out := make([]documentResponse, len(docs))
	for i, d := range docs {
		out[i] = newDocumentResponse(d)
	}
	c.JSON(http.StatusOK, gin.H{"documents": out, "total": len(out)})
}

func (s *Server) getDocument(c *gin.Context) {
	doc, err := s.svc.Metadata().GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, newDocumentResponse(doc))
}

func (s *Server) listChunks(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := s.svc.Metadata().GetDocument(ctx, id); err != nil {
		abortWithError(c, s.logger, err)
		return
	}
	chunks, err := s.svc.Metadata().ListChunks(ctx, id)
	if err != nil {
		abortWithError(c, s.logger, err)
		return
	}
	out := make([]chunkResponse, len(chunks))
	for i, ch := range chunks {
		out[i] = newChunkResponse(ch)
	}
	c.JSON(http.StatusOK, gin.H{"document_id": id, "chunks": out, "total": len(out)})
}

func (s *Server) deleteDocument(c *gin.Context) {
	if err := s.svc.Ingestion().DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, s.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
