// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/Scholar/services/llm"
	"github.com/AleutianAI/Scholar/services/scholar/course"
	"github.com/AleutianAI/Scholar/services/scholar/index"
)

// SearchToolName is the tool name the model uses for content retrieval.
const SearchToolName = "search_course_content"

// SearchTool retrieves course content chunks by semantic similarity,
// with optional course and lesson filters.
//
// Thread Safety: Safe for concurrent use; all per-query state lives in
// the DispatchContext.
type SearchTool struct {
	idx CourseIndex
}

// NewSearchTool creates the content search tool over the given index.
func NewSearchTool(idx CourseIndex) *SearchTool {
	return &SearchTool{idx: idx}
}

// Name returns the tool name.
func (t *SearchTool) Name() string { return SearchToolName }

// Definition returns the tool contract offered to the model.
func (t *SearchTool) Definition() llm.ToolDef {
	return llm.ToolDef{
		Name:        SearchToolName,
		Description: "Search course materials with smart course name matching and lesson filtering",
		InputSchema: llm.ToolInputSchema{
			Type: "object",
			Properties: map[string]llm.ToolParamDef{
				"query": {
					Type:        "string",
					Description: "What to search for in the course content",
				},
				"course_name": {
					Type:        "string",
					Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
				"lesson_number": {
					Type:        "integer",
					Description: "Specific lesson number to search within (e.g. 1, 2, 3)",
				},
			},
			Required: []string{"query"},
		},
	}
}

// Execute runs the search and formats the hits for the model.
//
// Description:
//
//	Every retrieved chunk is rendered with a [Course - Lesson N] header
//	and registered as a citation source in the dispatch context. An
//	unresolvable course filter or an empty result set is reported as
//	plain text; an unreachable index backend becomes "Search error:"
//	text so the model can still answer from general knowledge.
func (t *SearchTool) Execute(ctx context.Context, dc *DispatchContext, args map[string]any) string {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return "Search error: missing required 'query' argument"
	}

	opts := index.SearchOptions{}
	if cn, ok := args["course_name"].(string); ok {
		opts.CourseName = cn
	}
	// JSON numbers decode as float64.
	if ln, ok := args["lesson_number"].(float64); ok {
		n := int(ln)
		opts.LessonNumber = &n
	}

	results, err := t.idx.Search(ctx, query, opts)
	if err != nil {
		return fmt.Sprintf("Search error: %v", err)
	}
	if results.Error != "" {
		return results.Error
	}
	if results.IsEmpty() {
		var filterInfo strings.Builder
		if opts.CourseName != "" {
			fmt.Fprintf(&filterInfo, " in course '%s'", opts.CourseName)
		}
		if opts.LessonNumber != nil {
			fmt.Fprintf(&filterInfo, " in lesson %d", *opts.LessonNumber)
		}
		return fmt.Sprintf("No relevant content found%s.", filterInfo.String())
	}

	return t.formatResults(dc, results)
}

// formatResults renders hits as headered blocks and records one
// citation source per hit.
func (t *SearchTool) formatResults(dc *DispatchContext, results *index.SearchResults) string {
	var formatted []string
	for i, doc := range results.Documents {
		ref := results.Metadata[i]

		header := "[" + ref.CourseTitle
		if ref.LessonNumber > 0 {
			header += fmt.Sprintf(" - Lesson %d", ref.LessonNumber)
		}
		header += "]"
		formatted = append(formatted, header+"\n"+doc)

		link := ""
		if ref.LessonNumber > 0 {
			link = t.idx.GetLessonLink(ref.CourseTitle, ref.LessonNumber)
		}
		if link == "" {
			link = t.idx.GetCourseLink(ref.CourseTitle)
		}
		dc.AddSource(course.Source{
			Text: course.SourceLabel(ref.CourseTitle, ref.LessonNumber),
			Link: link,
		})
	}
	return strings.Join(formatted, "\n\n")
}
