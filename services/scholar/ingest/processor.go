// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ingest parses course documents into catalog records and
// retrieval chunks.
//
// A course document is plain text with a header block followed by
// lesson sections:
//
//	Course Title: Python Basics
//	Course Link: https://example.com/python
//	Course Instructor: Dr. Ada
//
//	Lesson 1: Getting Started
//	Lesson Link: https://example.com/python/1
//	<lesson text...>
//
//	Lesson 2: Variables
//	<lesson text...>
//
// Header fields other than the title are optional. Text before the
// first lesson marker is chunked under lesson number 0.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/AleutianAI/Scholar/services/scholar/course"
)

var (
	lessonMarkerRe = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

	courseExtensions = map[string]bool{
		".txt":  true,
		".md":   true,
		".pdf":  true,
		".docx": true,
	}
)

// IsCourseDocument reports whether a file name looks like a course
// document worth ingesting.
func IsCourseDocument(name string) bool {
	return courseExtensions[strings.ToLower(filepath.Ext(name))]
}

// Processor turns course documents into a Course plus its chunks.
//
// Thread Safety: Safe for concurrent use; the splitter is stateless.
type Processor struct {
	splitter textsplitter.RecursiveCharacter
	logger   *slog.Logger
}

// NewProcessor creates a processor with the given chunking geometry.
// Values < 1 select the defaults (size 800, overlap 100). A nil logger
// selects slog.Default().
func NewProcessor(chunkSize, chunkOverlap int, logger *slog.Logger) *Processor {
	if chunkSize < 1 {
		chunkSize = 800
	}
	if chunkOverlap < 0 {
		chunkOverlap = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		logger: logger,
	}
}

// ProcessFile parses one course document from disk.
func (p *Processor) ProcessFile(path string) (course.Course, []course.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return course.Course{}, nil, fmt.Errorf("opening course document: %w", err)
	}
	defer func() { _ = f.Close() }()
	return p.Process(f, filepath.Base(path))
}

// lessonSection is one parsed lesson before chunking. Number 0 holds
// preamble text that precedes any lesson marker.
type lessonSection struct {
	number int
	title  string
	link   string
	lines  []string
}

// Process parses a course document from a reader.
//
// Description:
//
//	The document name supplies a fallback title when the header lacks
//	one. Each lesson's text is chunked independently so no chunk spans
//	a lesson boundary; the first chunk of each lesson carries a context
//	prefix naming the course and lesson so retrieval hits stay
//	interpretable without their neighbors.
//
// Outputs:
//   - course.Course: Catalog metadata with the ordered lesson list.
//   - []course.Chunk: All chunks, Index sequential across the course.
//   - error: Non-nil when the document cannot be read or chunked.
func (p *Processor) Process(r io.Reader, name string) (course.Course, []course.Chunk, error) {
	c := course.Course{}
	var sections []lessonSection
	current := &lessonSection{number: 0} // preamble

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	inHeader := true

	for scanner.Scan() {
		line := scanner.Text()

		if m := lessonMarkerRe.FindStringSubmatch(line); m != nil {
			sections = append(sections, *current)
			n, _ := strconv.Atoi(m[1])
			current = &lessonSection{number: n, title: strings.TrimSpace(m[2])}
			c.Lessons = append(c.Lessons, course.Lesson{Number: n, Title: current.title})
			inHeader = false
			continue
		}

		if inHeader {
			switch {
			case strings.HasPrefix(line, "Course Title:"):
				c.Title = strings.TrimSpace(strings.TrimPrefix(line, "Course Title:"))
				continue
			case strings.HasPrefix(line, "Course Link:"):
				c.Link = strings.TrimSpace(strings.TrimPrefix(line, "Course Link:"))
				continue
			case strings.HasPrefix(line, "Course Instructor:"):
				c.Instructor = strings.TrimSpace(strings.TrimPrefix(line, "Course Instructor:"))
				continue
			}
		}

		if current.number > 0 && len(current.lines) == 0 && strings.HasPrefix(line, "Lesson Link:") {
			current.link = strings.TrimSpace(strings.TrimPrefix(line, "Lesson Link:"))
			c.Lessons[len(c.Lessons)-1].Link = current.link
			continue
		}

		current.lines = append(current.lines, line)
	}
	if err := scanner.Err(); err != nil {
		return course.Course{}, nil, fmt.Errorf("reading course document: %w", err)
	}
	sections = append(sections, *current)

	if c.Title == "" {
		// Fall back to the file name, extension stripped.
		c.Title = strings.TrimSuffix(name, filepath.Ext(name))
	}

	chunks, err := p.chunkSections(c.Title, sections)
	if err != nil {
		return course.Course{}, nil, err
	}

	p.logger.Info("Course document processed",
		"title", c.Title,
		"lessons", len(c.Lessons),
		"chunks", len(chunks),
	)
	return c, chunks, nil
}

// chunkSections splits each lesson's text and assigns course-wide
// sequential chunk indexes.
func (p *Processor) chunkSections(courseTitle string, sections []lessonSection) ([]course.Chunk, error) {
	var chunks []course.Chunk
	nextIndex := 0

	for _, sec := range sections {
		text := strings.TrimSpace(strings.Join(sec.lines, "\n"))
		if text == "" {
			continue
		}
		pieces, err := p.splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("chunking lesson %d of %q: %w", sec.number, courseTitle, err)
		}
		for i, piece := range pieces {
			content := piece
			if i == 0 {
				if sec.number > 0 {
					content = fmt.Sprintf("Course %s Lesson %d content: %s", courseTitle, sec.number, piece)
				} else {
					content = fmt.Sprintf("Course %s content: %s", courseTitle, piece)
				}
			}
			chunks = append(chunks, course.Chunk{
				Content:      content,
				CourseTitle:  courseTitle,
				LessonNumber: sec.number,
				Index:        nextIndex,
			})
			nextIndex++
		}
	}
	return chunks, nil
}
