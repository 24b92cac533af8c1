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

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches the Scholar API under the given router group.
//
// Routes:
//
//	POST   /query              - answer a question
//	GET    /courses            - corpus analytics
//	DELETE /sessions/:id/clear - drop a session's history
//	GET    /health             - liveness
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.POST("/query", h.HandleQuery)
	rg.GET("/courses", h.HandleCourseStats)
	rg.DELETE("/sessions/:id/clear", h.HandleClearSession)
	rg.GET("/health", h.HandleHealth)
}
