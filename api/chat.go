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
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/poiesic/ragbook/chat"
	"github.com/poiesic/ragbook/core"
)

func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: %v", err)
		return
	}

	// Zero selects the configured default, so an explicit value must be positive
	topK := 0
	if req.TopK != nil {
		if *req.TopK < 1 {
			abortWithError(c, s.logger, fmt.Errorf("%w: %w: %d", core.ErrValidation, chat.ErrInvalidTopK, *req.TopK))
			return
		}
		topK = *req.TopK
	}

	resp, err := s.svc.Chat().Ask(c.Request.Context(), chat.Request{
		Query:     req.Query,
		SessionID: req.SessionID,
		TopK:      topK,
	})
	if err != nil {
		abortWithError(c, s.logger, err)
		return
	}

	contexts := resp.Contexts
	if contexts == nil {
		contexts = []core.RetrievedContext{}
	}
	c.JSON(http.StatusOK, chatResponse{
		SessionID:       resp.SessionID,
		Query:           resp.Query,
		Answer:          resp.Answer,
		Contexts:        contexts,
		BookingDetected: resp.BookingDetected,
		BookingID:       resp.BookingID,
	})
}

func (s *Server) sessionMessages(c *gin.Context) {
	id := c.Param("id")
	turns, err := s.svc.Chat().Messages(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{SessionID: id, Messages: turns})
}

func (s *Server) extendSession(c *gin.Context) {
	id := c.Param("id")
	if err := s.svc.Chat().ExtendSession(c.Request.Context(), id); err != nil {
		abortWithError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "message": "Session extended"})
}

func (s *Server) clearSession(c *gin.Context) {
	if err := s.svc.Chat().ClearSession(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, s.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
