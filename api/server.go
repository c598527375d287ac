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
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/poiesic/ragbook"
	"github.com/poiesic/ragbook/config"
)

// multipartOverhead is added to the upload ceiling when bounding request
// bodies so the form framing around a maximum size file still fits.
const multipartOverhead = 1 << 20

// Server is the HTTP front end of a ragbook.Service.
type Server struct {
	svc    *ragbook.Service
	cfg    config.ServerConfig
	engine *gin.Engine
	logger *slog.Logger
}

// NewServer builds the router for svc.
func NewServer(svc *ragbook.Service) *Server {
	s := &Server{
		svc:    svc,
		cfg:    svc.Config().Server,
		engine: gin.New(),
		logger: slog.Default().With("component", "api"),
	}
	s.engine.MaxMultipartMemory = svc.Config().Upload.MaxSize + multipartOverhead
	s.engine.Use(gin.Recovery(), requestLogger(s.logger), corsMiddleware(s.cfg.CORSOrigins))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)

	v1 := s.engine.Group("/api/v1")
	{
		docs := v1.Group("/documents")
		docs.POST("", s.uploadDocument)
		docs.GET("", s.listDocuments)
		docs.GET("/:id", s.getDocument)
		docs.GET("/:id/chunks", s.listChunks)
		docs.DELETE("/:id", s.deleteDocument)

		v1.POST("/chat", s.chat)

		sessions := v1.Group("/sessions")
		sessions.GET("/:id/messages", s.sessionMessages)
		sessions.POST("/:id/extend", s.extendSession)
		sessions.DELETE("/:id", s.clearSession)

		bookings := v1.Group("/bookings")
		bookings.GET("", s.listBookings)
		bookings.GET("/:id", s.getBooking)
		bookings.PATCH("/:id", s.updateBooking)
	}
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully within the
// configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	h := s.svc.Health(c.Request.Context())
	status := http.StatusOK
	if h.Status != ragbook.StatusOK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, h)
}
