// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package course defines the durable domain records for Aleutian Scholar:
// courses, lessons, and the content chunks produced by ingestion.
//
// Records are created once during ingestion and never mutated afterwards.
// The catalog is keyed by Course.Title, which uniquely identifies a course.
package course

import "fmt"

// Lesson is a single lesson within a course outline.
//
// Thread Safety: Lesson is immutable after ingestion and safe for
// concurrent read access.
type Lesson struct {
	// Number is the lesson's position within the course. Positive and
	// unique within a course.
	Number int `json:"lesson_number"`

	// Title is the lesson title as written in the source document.
	Title string `json:"lesson_title"`

	// Link is the lesson URL. Empty when the document carries none.
	Link string `json:"lesson_link,omitempty"`
}

// Course is one catalog entry: metadata plus the ordered lesson list.
//
// Description:
//
//	Title doubles as the catalog key. Two documents with the same title
//	resolve to the same catalog record (later ingestion upserts).
//
// Thread Safety: Course is immutable after ingestion and safe for
// concurrent read access.
type Course struct {
	// Title uniquely identifies the course in the catalog.
	Title string `json:"title"`

	// Instructor is optional; empty when the document carries none.
	Instructor string `json:"instructor,omitempty"`

	// Link is the course URL. Empty when the document carries none.
	Link string `json:"course_link,omitempty"`

	// Lessons is the ordered lesson list, ascending by Number.
	Lessons []Lesson `json:"lessons"`
}

// Chunk is the unit of retrieval: a fixed-size, overlapping slice of a
// lesson's text.
//
// Description:
//
//	CourseTitle references Course.Title. LessonNumber may reference a
//	lesson that is absent from Course.Lessons — ingestion does not
//	enforce that consistency. Index is unique within a course.
//
// Thread Safety: Chunk is immutable after ingestion and safe for
// concurrent read access.
type Chunk struct {
	// Content is the chunk text, including any context prefix added
	// during ingestion.
	Content string `json:"content"`

	// CourseTitle is the owning course's catalog key.
	CourseTitle string `json:"course_title"`

	// LessonNumber is the lesson this chunk was cut from. Zero when the
	// chunk precedes any lesson marker.
	LessonNumber int `json:"lesson_number"`

	// Index is the chunk's ordinal within the course, unique per course.
	Index int `json:"chunk_index"`
}

// Source is a single citation surfaced to the end user: the course/lesson
// a retrieved chunk came from, with an optional deep link.
//
// Sources are ephemeral — rebuilt on every query, never persisted.
type Source struct {
	// Text is the human-readable label, e.g. "Python Basics - Lesson 2".
	Text string `json:"text"`

	// Link is the lesson URL when known, the course URL as a fallback,
	// or empty when neither is recorded.
	Link string `json:"link,omitempty"`
}

// SourceLabel renders the standard citation label for a course/lesson pair.
//
// Lesson 0 means "no lesson": the label is the bare course title.
func SourceLabel(courseTitle string, lessonNumber int) string {
	if lessonNumber > 0 {
		return fmt.Sprintf("%s - Lesson %d", courseTitle, lessonNumber)
	}
	return courseTitle
}
