// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools defines the retrieval tools Scholar exposes to the
// model, plus the registry that dispatches tool calls by name.
//
// Tools never return Go errors to the dispatcher: every failure becomes
// readable tool-result text, because the model is the consumer and can
// often recover (retry with a different course name, answer from
// general knowledge, tell the user what went wrong).
package tools

import (
	"context"
	"sync"

	"github.com/AleutianAI/Scholar/services/llm"
	"github.com/AleutianAI/Scholar/services/scholar/course"
	"github.com/AleutianAI/Scholar/services/scholar/index"
)

// CourseIndex is the slice of the semantic index the tools need.
//
// Thread Safety: Implementations must be safe for concurrent use.
type CourseIndex interface {
	// Search runs a filtered nearest-neighbor search over course content.
	Search(ctx context.Context, query string, opts index.SearchOptions) (*index.SearchResults, error)

	// ResolveCourseName maps a partial course name to an exact catalog
	// title, or "" when nothing matches.
	ResolveCourseName(ctx context.Context, name string) (string, error)

	// GetCourseMetadata returns the catalog record for an exact title.
	GetCourseMetadata(title string) (course.Course, bool)

	// GetCourseLink returns the course URL for an exact title, or "".
	GetCourseLink(title string) string

	// GetLessonLink returns the lesson URL, or "" when unknown.
	GetLessonLink(title string, lessonNumber int) string
}

// Tool is one callable capability offered to the model.
//
// Description:
//
//	Execute returns tool-result text only, never an error: domain
//	failures ("No course found matching ...") and infrastructure
//	failures ("Search error: ...") are both written into the result so
//	the model can react. Sources discovered during execution go into
//	the per-dispatch context, never into tool state — tools are shared
//	across concurrent queries.
type Tool interface {
	// Name is the tool name the model calls.
	Name() string

	// Definition is the declarative contract sent to the provider.
	Definition() llm.ToolDef

	// Execute runs the tool with the model-supplied arguments.
	Execute(ctx context.Context, dc *DispatchContext, args map[string]any) string
}

// DispatchContext accumulates citation sources across the tool calls of
// a single query.
//
// Description:
//
//	One DispatchContext lives for exactly one query. Tools append the
//	sources behind their results; the coordinator drains them into the
//	response. Keeping this per-query (instead of on the tool) is what
//	lets one registry serve concurrent queries without cross-talk.
//
// Thread Safety: Safe for concurrent use; the model may request several
// tool calls in one turn and they may be dispatched in parallel.
type DispatchContext struct {
	mu      sync.Mutex
	sources []course.Source
}

// NewDispatchContext creates an empty per-query dispatch context.
func NewDispatchContext() *DispatchContext {
	return &DispatchContext{}
}

// AddSource appends one citation source.
func (dc *DispatchContext) AddSource(src course.Source) {
	dc.mu.Lock()
	dc.sources = append(dc.sources, src)
	dc.mu.Unlock()
}

// Sources returns the accumulated sources in append order.
func (dc *DispatchContext) Sources() []course.Source {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	out := make([]course.Source, len(dc.sources))
	copy(out, dc.sources)
	return out
}
