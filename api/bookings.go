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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/poiesic/ragbook/core"
)

func (s *Server) listBookings(c *gin.Context) {
	bookings, err := s.svc.Metadata().ListBookings(c.Request.Context())
	if err != nil {
		abortWithError(c, s.logger, err)
		return
	}
	out := make([]bookingResponse, len(bookings))
	for i, b := range bookings {
		out[i] = newBookingResponse(b)
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out, "total": len(out)})
}

func (s *Server) getBooking(c *gin.Context) {
	b, err := s.svc.Metadata().GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(b))
}

func (s *Server) updateBooking(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: %v", err)
		return
	}
	status, err := core.ParseBookingStatus(req.Status)
	if err != nil {
		abortWithError(c, s.logger, err)
		return
	}
	b, err := s.svc.Metadata().UpdateBookingStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		abortWithError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(b))
}
