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
)

// OutlineToolName is the tool name the model uses for course outlines.
const OutlineToolName = "get_course_outline"

// OutlineTool returns a course's full outline: exact title, link, and
// the numbered lesson list.
//
// Thread Safety: Safe for concurrent use.
type OutlineTool struct {
	idx CourseIndex
}

// NewOutlineTool creates the outline tool over the given index.
func NewOutlineTool(idx CourseIndex) *OutlineTool {
	return &OutlineTool{idx: idx}
}

// Name returns the tool name.
func (t *OutlineTool) Name() string { return OutlineToolName }

// Definition returns the tool contract offered to the model.
func (t *OutlineTool) Definition() llm.ToolDef {
	return llm.ToolDef{
		Name:        OutlineToolName,
		Description: "Get the complete outline of a course including its title, link, and full lesson list",
		InputSchema: llm.ToolInputSchema{
			Type: "object",
			Properties: map[string]llm.ToolParamDef{
				"course_title": {
					Type:        "string",
					Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
			},
			Required: []string{"course_title"},
		},
	}
}

// Execute resolves the course and renders its outline.
//
// Description:
//
//	The requested title is resolved fuzzily, so "Python" finds "Python
//	Fundamentals". A resolved course with no recorded lessons reports
//	"No outline data found" rather than an empty list. The course
//	itself is registered as the citation source.
func (t *OutlineTool) Execute(ctx context.Context, dc *DispatchContext, args map[string]any) string {
	title, ok := args["course_title"].(string)
	if !ok || title == "" {
		return "Search error: missing required 'course_title' argument"
	}

	resolved, err := t.idx.ResolveCourseName(ctx, title)
	if err != nil {
		return fmt.Sprintf("Search error: %v", err)
	}
	if resolved == "" {
		return fmt.Sprintf("No course found matching '%s'", title)
	}

	meta, ok := t.idx.GetCourseMetadata(resolved)
	if !ok || len(meta.Lessons) == 0 {
		return fmt.Sprintf("No outline data found for course '%s'", resolved)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", meta.Title)
	if meta.Link != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", meta.Link)
	}
	fmt.Fprintf(&b, "Lessons (%d total):\n", len(meta.Lessons))
	for _, l := range meta.Lessons {
		fmt.Fprintf(&b, "%d: %s\n", l.Number, l.Title)
	}

	dc.AddSource(course.Source{Text: meta.Title, Link: meta.Link})
	return strings.TrimRight(b.String(), "\n")
}
