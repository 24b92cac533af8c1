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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/Scholar/services/llm"
	"github.com/AleutianAI/Scholar/services/scholar/course"
	"github.com/AleutianAI/Scholar/services/scholar/generator"
	"github.com/AleutianAI/Scholar/services/scholar/index"
	"github.com/AleutianAI/Scholar/services/scholar/ingest"
	"github.com/AleutianAI/Scholar/services/scholar/session"
	"github.com/AleutianAI/Scholar/services/scholar/tools"
)

// RAGSystem is the query coordinator: it owns the index, the tool
// registry, the generator, session state, and the ingestion pipeline.
//
// Thread Safety: Safe for concurrent use; each query carries its own
// DispatchContext and all shared components synchronize internally.
type RAGSystem struct {
	cfg       Config
	idx       *index.SemanticIndex
	registry  *tools.Registry
	generator *generator.Generator
	sessions  *session.Manager
	processor *ingest.Processor
	logger    *slog.Logger
}

// Analytics summarizes the indexed corpus for the courses endpoint.
type Analytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// NewRAGSystem assembles the coordinator from its parts.
//
// Inputs:
//   - cfg: Effective configuration.
//   - client: Provider client for answer generation.
//   - idx: The semantic index, already warm-loaded.
//   - logger: Structured logger. Nil selects slog.Default().
func NewRAGSystem(cfg Config, client llm.ToolCaller, idx *index.SemanticIndex, logger *slog.Logger) *RAGSystem {
	if logger == nil {
		logger = slog.Default()
	}

	registry := tools.NewRegistry(logger)
	registry.Register(tools.NewSearchTool(idx))
	registry.Register(tools.NewOutlineTool(idx))

	return &RAGSystem{
		cfg:       cfg,
		idx:       idx,
		registry:  registry,
		generator: generator.NewGenerator(client, registry, logger),
		sessions:  session.NewManager(cfg.MaxHistory, logger),
		processor: ingest.NewProcessor(cfg.ChunkSize, cfg.ChunkOverlap, logger),
		logger:    logger,
	}
}

// Query answers one user question.
//
// Description:
//
//	An empty sessionID allocates a fresh session whose ID is returned
//	so the client can continue the conversation. Sources come from the
//	query's own DispatchContext, so concurrent queries never see each
//	other's citations. The exchange is recorded only on success — a
//	failed query must not poison the history.
//
// Outputs:
//   - string: The answer text.
//   - []course.Source: Citations behind the answer; may be empty.
//   - string: The session ID (newly created when the input was empty).
//   - error: Non-nil on provider failure.
func (r *RAGSystem) Query(ctx context.Context, question, sessionID string) (string, []course.Source, string, error) {
	start := time.Now()

	if sessionID == "" {
		sessionID = r.sessions.CreateSession()
	}
	history := r.sessions.GetConversationHistory(sessionID)
	dc := tools.NewDispatchContext()

	prompt := fmt.Sprintf("Answer this question about course materials: %s", question)
	answer, err := r.generator.GenerateResponse(ctx, prompt, history, dc)
	if err != nil {
		queriesTotal.WithLabelValues("error").Inc()
		return "", nil, sessionID, fmt.Errorf("answering query: %w", err)
	}

	r.sessions.AddExchange(sessionID, question, answer)

	elapsed := time.Since(start)
	queriesTotal.WithLabelValues("ok").Inc()
	queryDuration.Observe(elapsed.Seconds())
	r.logger.Info("Query answered",
		"session_id", sessionID,
		"sources", len(dc.Sources()),
		"duration_ms", elapsed.Milliseconds(),
	)
	return answer, dc.Sources(), sessionID, nil
}

// ClearSession drops a session's conversation history.
func (r *RAGSystem) ClearSession(sessionID string) {
	r.sessions.ClearSession(sessionID)
}

// GetCourseAnalytics reports the indexed corpus.
func (r *RAGSystem) GetCourseAnalytics() Analytics {
	titles := r.idx.GetExistingCourseTitles()
	return Analytics{
		TotalCourses: len(titles),
		CourseTitles: titles,
	}
}

// AddCourseDocument ingests one course document into the index.
//
// Description:
//
//	Re-ingesting a document whose title is already indexed — the docs
//	watcher does this on every write to a changed file — replaces the
//	course's chunks rather than appending a second copy, so the live
//	index always reflects the document's current content.
//
// Outputs:
//   - course.Course: The parsed course metadata.
//   - int: Number of chunks indexed.
//   - error: Non-nil when parsing or indexing failed; nothing partial
//     is left in memory on a parse failure, though an embedding failure
//     mid-batch can leave the catalog entry without content.
func (r *RAGSystem) AddCourseDocument(ctx context.Context, path string) (course.Course, int, error) {
	c, chunks, err := r.processor.ProcessFile(path)
	if err != nil {
		r.logger.Error("Course document rejected", "path", path, "error", err)
		return course.Course{}, 0, err
	}
	if err := r.idx.AddCourseMetadata(ctx, c); err != nil {
		return course.Course{}, 0, err
	}
	if err := r.idx.RemoveCourseContent(c.Title); err != nil {
		return course.Course{}, 0, err
	}
	if err := r.idx.AddCourseContent(ctx, chunks); err != nil {
		return course.Course{}, 0, err
	}
	coursesIndexed.Set(float64(r.idx.GetCourseCount()))
	return c, len(chunks), nil
}

// AddCourseFolder ingests every course document in a folder.
//
// Description:
//
//	Documents whose parsed title is already in the catalog are skipped,
//	so restarting the service does not re-embed the corpus. With
//	clearExisting, the index is wiped first and everything reloads.
//	Per-file failures are logged and skipped; one bad document must not
//	block the rest of the corpus.
//
// Outputs:
//   - int: Courses added.
//   - int: Chunks added.
//   - error: Non-nil when the folder itself cannot be read or cleared.
func (r *RAGSystem) AddCourseFolder(ctx context.Context, dir string, clearExisting bool) (int, int, error) {
	if clearExisting {
		r.logger.Info("Clearing existing course data")
		if err := r.idx.ClearAllData(); err != nil {
			return 0, 0, err
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("reading docs folder %s: %w", dir, err)
	}

	existing := make(map[string]bool)
	for _, title := range r.idx.GetExistingCourseTitles() {
		existing[title] = true
	}

	totalCourses, totalChunks := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !ingest.IsCourseDocument(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		c, chunks, err := r.processor.ProcessFile(path)
		if err != nil {
			r.logger.Error("Skipping course document", "path", path, "error", err)
			continue
		}
		if existing[c.Title] {
			r.logger.Debug("Course already indexed, skipping", "title", c.Title)
			continue
		}

		if err := r.idx.AddCourseMetadata(ctx, c); err != nil {
			r.logger.Error("Failed to index course metadata", "title", c.Title, "error", err)
			continue
		}
		if err := r.idx.AddCourseContent(ctx, chunks); err != nil {
			r.logger.Error("Failed to index course content", "title", c.Title, "error", err)
			continue
		}
		existing[c.Title] = true
		totalCourses++
		totalChunks += len(chunks)
	}

	coursesIndexed.Set(float64(r.idx.GetCourseCount()))
	r.logger.Info("Docs folder loaded", "dir", dir, "courses", totalCourses, "chunks", totalChunks)
	return totalCourses, totalChunks, nil
}
