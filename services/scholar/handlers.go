// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scholar

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/Scholar/services/scholar/course"
)

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	// Query is the user's question. Required.
	Query string `json:"query"`

	// SessionID continues an existing conversation. Empty starts one.
	SessionID string `json:"session_id"`
}

// QueryResponse is the body returned by POST /api/query.
type QueryResponse struct {
	Answer    string          `json:"answer"`
	Sources   []course.Source `json:"sources"`
	SessionID string          `json:"session_id"`
}

// Handlers carries the HTTP handler dependencies.
type Handlers struct {
	rag    *RAGSystem
	logger *slog.Logger
}

// NewHandlers creates the handler set. A nil logger selects
// slog.Default().
func NewHandlers(rag *RAGSystem, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{rag: rag, logger: logger}
}

// HandleQuery answers POST /api/query.
func (h *Handlers) HandleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "query is required"})
		return
	}

	requestID := uuid.NewString()
	log := h.logger.With(slog.String("request_id", requestID))

	answer, sources, sessionID, err := h.rag.Query(c.Request.Context(), req.Query, req.SessionID)
	if err != nil {
		log.Error("Query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	if sources == nil {
		sources = []course.Source{} // JSON [] rather than null
	}
	c.JSON(http.StatusOK, QueryResponse{
		Answer:    answer,
		Sources:   sources,
		SessionID: sessionID,
	})
}

// HandleCourseStats answers GET /api/courses.
func (h *Handlers) HandleCourseStats(c *gin.Context) {
	analytics := h.rag.GetCourseAnalytics()
	if analytics.CourseTitles == nil {
		analytics.CourseTitles = []string{}
	}
	c.JSON(http.StatusOK, analytics)
}

// HandleClearSession answers DELETE /api/sessions/:id/clear.
func (h *Handlers) HandleClearSession(c *gin.Context) {
	sessionID := c.Param("id")
	h.rag.ClearSession(sessionID)
	c.JSON(http.StatusOK, gin.H{
		"message":    "Session cleared successfully",
		"session_id": sessionID,
	})
}

// HandleHealth answers GET /api/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"courses": h.rag.GetCourseAnalytics().TotalCourses,
	})
}
