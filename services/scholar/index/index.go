// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index implements Scholar's semantic index: an in-memory
// vector search over the course catalog and content chunks, embedded
// via Ollama and persisted in BadgerDB so restarts skip re-embedding.
//
// The corpus is small (tens of courses, thousands of chunks), so exact
// brute-force nearest-neighbor over normalized vectors beats carrying a
// vector-database dependency. Cosine similarity on unit vectors is a
// dot product; distance is 1 - similarity.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/AleutianAI/Scholar/services/scholar/course"
)

// ChunkRef identifies where a retrieved document came from.
type ChunkRef struct {
	// CourseTitle is the owning course's catalog key.
	CourseTitle string

	// LessonNumber is the lesson the chunk was cut from; 0 means the
	// chunk precedes any lesson marker.
	LessonNumber int
}

// SearchResults is the outcome of one content search.
//
// Description:
//
//	Documents, Metadata, and Distances are parallel slices ordered by
//	ascending distance (most relevant first). Error is set for
//	domain-level failures (an unresolvable course filter) so the tool
//	layer can hand the message straight to the model; infrastructure
//	failures are returned as Go errors instead.
type SearchResults struct {
	// Documents holds the retrieved chunk texts, most relevant first.
	Documents []string

	// Metadata holds the origin of each document, parallel to Documents.
	Metadata []ChunkRef

	// Distances holds 1 - cosine similarity per document, parallel to
	// Documents. Lower is more relevant.
	Distances []float64

	// Error is a domain-level failure message, empty on success.
	Error string
}

// IsEmpty reports whether the search matched nothing.
func (r *SearchResults) IsEmpty() bool {
	return len(r.Documents) == 0
}

// errorResults builds a SearchResults carrying only a domain error.
func errorResults(msg string) *SearchResults {
	return &SearchResults{Error: msg}
}

// SearchOptions narrows a content search.
type SearchOptions struct {
	// CourseName filters to one course, resolved fuzzily against the
	// catalog. Empty means all courses.
	CourseName string

	// LessonNumber filters to one lesson. Nil means all lessons.
	LessonNumber *int

	// Limit caps the result count. Nil uses the index default.
	Limit *int
}

// SemanticIndex is the in-memory semantic search surface over courses
// and chunks.
//
// Description:
//
//	Two collections share one index: the catalog (one record per
//	course, vectorized by title, used for fuzzy name resolution and
//	outline lookups) and the content (one record per chunk, vectorized
//	by chunk text, used for retrieval). Writes embed and then persist;
//	reads never touch the store or the embedder except to vectorize
//	the query.
//
// Thread Safety: Safe for concurrent use. A single RWMutex guards both
// collections; searches take the read lock.
type SemanticIndex struct {
	mu sync.RWMutex

	// catalog maps course title to its record.
	catalog map[string]*CatalogRecord

	// titles preserves catalog insertion order for stable listings.
	titles []string

	// content holds every chunk record, in ingestion order.
	content []ContentRecord

	embedder   Embedder
	store      *Store
	maxResults int
	logger     *slog.Logger
}

// NewSemanticIndex builds an index and warm-loads any persisted records.
//
// Inputs:
//   - embedder: Vectorizes titles, chunks, and queries. Must not be nil.
//   - store: Durable record store. May be nil for a memory-only index.
//   - maxResults: Default search result cap; values < 1 become 5.
//   - logger: Structured logger. Nil selects slog.Default().
//
// Outputs:
//   - *SemanticIndex: The ready index.
//   - error: Non-nil when the persisted records cannot be loaded.
func NewSemanticIndex(embedder Embedder, store *Store, maxResults int, logger *slog.Logger) (*SemanticIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxResults < 1 {
		maxResults = 5
	}

	idx := &SemanticIndex{
		catalog:    make(map[string]*CatalogRecord),
		embedder:   embedder,
		store:      store,
		maxResults: maxResults,
		logger:     logger,
	}

	catalogRecs, err := store.LoadCatalog()
	if err != nil {
		return nil, err
	}
	for i := range catalogRecs {
		rec := catalogRecs[i]
		idx.catalog[rec.Course.Title] = &rec
		idx.titles = append(idx.titles, rec.Course.Title)
	}

	contentRecs, err := store.LoadContent()
	if err != nil {
		return nil, err
	}
	idx.content = contentRecs

	if len(catalogRecs) > 0 || len(contentRecs) > 0 {
		logger.Info("Semantic index loaded from store",
			"courses", len(catalogRecs),
			"chunks", len(contentRecs),
		)
	}
	return idx, nil
}

// AddCourseMetadata embeds a course title and upserts the catalog entry.
//
// Re-adding an existing title replaces its record; the content
// collection is untouched.
func (si *SemanticIndex) AddCourseMetadata(ctx context.Context, c course.Course) error {
	vec, err := si.embedder.Embed(ctx, c.Title)
	if err != nil {
		return fmt.Errorf("embedding course title %q: %w", c.Title, err)
	}
	rec := CatalogRecord{Course: c, Vector: vec}
	if err := si.store.SaveCourse(rec); err != nil {
		return err
	}

	si.mu.Lock()
	if _, exists := si.catalog[c.Title]; !exists {
		si.titles = append(si.titles, c.Title)
	}
	si.catalog[c.Title] = &rec
	si.mu.Unlock()

	si.logger.Debug("Course metadata indexed", "title", c.Title, "lessons", len(c.Lessons))
	return nil
}

// AddCourseContent embeds and appends a batch of chunks. An empty batch
// is a no-op.
func (si *SemanticIndex) AddCourseContent(ctx context.Context, chunks []course.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := si.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	recs := make([]ContentRecord, len(chunks))
	for i, ch := range chunks {
		recs[i] = ContentRecord{Chunk: ch, Vector: vectors[i]}
	}
	if err := si.store.SaveChunks(recs); err != nil {
		return err
	}

	si.mu.Lock()
	si.content = append(si.content, recs...)
	si.mu.Unlock()

	si.logger.Debug("Course content indexed", "chunks", len(chunks))
	return nil
}

// RemoveCourseContent drops every content chunk belonging to a course,
// in memory and in the store. The catalog entry is untouched.
//
// Re-ingesting a changed document must call this before
// AddCourseContent, otherwise the old chunks stay behind — appending
// alone duplicates unchanged chunks and strands stale ones when the
// document shrank.
func (si *SemanticIndex) RemoveCourseContent(title string) error {
	if err := si.store.DeleteCourseChunks(title); err != nil {
		return err
	}

	si.mu.Lock()
	kept := make([]ContentRecord, 0, len(si.content))
	for i := range si.content {
		if si.content[i].Chunk.CourseTitle != title {
			kept = append(kept, si.content[i])
		}
	}
	removed := len(si.content) - len(kept)
	si.content = kept
	si.mu.Unlock()

	if removed > 0 {
		si.logger.Debug("Course content removed", "title", title, "chunks", removed)
	}
	return nil
}

// Search runs a filtered nearest-neighbor search over the content
// collection.
//
// Description:
//
//	When opts.CourseName is set, it is resolved against the catalog
//	first; an unresolvable name yields a SearchResults carrying the
//	"No course found matching" message (a domain outcome the model can
//	read), not a Go error. Infrastructure failures — the embedder being
//	unreachable — are Go errors and fatal for the query.
//
// Outputs:
//   - *SearchResults: Ranked matches, or a domain error. Never nil when
//     error is nil.
//   - error: Non-nil on embedding failure.
func (si *SemanticIndex) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResults, error) {
	courseFilter := ""
	if opts.CourseName != "" {
		resolved, err := si.ResolveCourseName(ctx, opts.CourseName)
		if err != nil {
			return nil, err
		}
		if resolved == "" {
			return errorResults(fmt.Sprintf("No course found matching '%s'", opts.CourseName)), nil
		}
		courseFilter = resolved
	}

	queryVec, err := si.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	limit := si.maxResults
	if opts.Limit != nil && *opts.Limit > 0 {
		limit = *opts.Limit
	}

	si.mu.RLock()
	defer si.mu.RUnlock()

	type scored struct {
		rec  *ContentRecord
		dist float64
	}
	var candidates []scored
	for i := range si.content {
		rec := &si.content[i]
		if courseFilter != "" && rec.Chunk.CourseTitle != courseFilter {
			continue
		}
		if opts.LessonNumber != nil && rec.Chunk.LessonNumber != *opts.LessonNumber {
			continue
		}
		dist := 1 - float64(dotProduct(queryVec, rec.Vector))
		candidates = append(candidates, scored{rec: rec, dist: dist})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := &SearchResults{}
	for _, c := range candidates {
		results.Documents = append(results.Documents, c.rec.Chunk.Content)
		results.Metadata = append(results.Metadata, ChunkRef{
			CourseTitle:  c.rec.Chunk.CourseTitle,
			LessonNumber: c.rec.Chunk.LessonNumber,
		})
		results.Distances = append(results.Distances, c.dist)
	}
	return results, nil
}

// ResolveCourseName maps a possibly-partial course name to an exact
// catalog title.
//
// Description:
//
//	An exact title hit wins without an embedding call. Otherwise the
//	name is embedded and the nearest catalog title is returned — there
//	is no similarity threshold, matching the principle that the model's
//	best guess at a course name should land on the closest real course.
//	Returns "" only when the catalog is empty.
func (si *SemanticIndex) ResolveCourseName(ctx context.Context, name string) (string, error) {
	si.mu.RLock()
	if _, ok := si.catalog[name]; ok {
		si.mu.RUnlock()
		return name, nil
	}
	empty := len(si.catalog) == 0
	si.mu.RUnlock()

	if empty {
		return "", nil
	}

	nameVec, err := si.embedder.Embed(ctx, name)
	if err != nil {
		return "", fmt.Errorf("embedding course name %q: %w", name, err)
	}

	si.mu.RLock()
	defer si.mu.RUnlock()

	best := ""
	bestSim := float32(-2) // below any possible cosine similarity
	for _, title := range si.titles {
		rec := si.catalog[title]
		sim := dotProduct(nameVec, rec.Vector)
		if sim > bestSim {
			bestSim = sim
			best = title
		}
	}
	si.logger.Debug("Course name resolved", "input", name, "resolved", best)
	return best, nil
}

// GetCourseMetadata returns the catalog record for an exact title.
func (si *SemanticIndex) GetCourseMetadata(title string) (course.Course, bool) {
	si.mu.RLock()
	defer si.mu.RUnlock()
	rec, ok := si.catalog[title]
	if !ok {
		return course.Course{}, false
	}
	return rec.Course, true
}

// GetExistingCourseTitles lists every catalog title in insertion order.
func (si *SemanticIndex) GetExistingCourseTitles() []string {
	si.mu.RLock()
	defer si.mu.RUnlock()
	out := make([]string, len(si.titles))
	copy(out, si.titles)
	return out
}

// GetCourseCount returns the number of catalog entries.
func (si *SemanticIndex) GetCourseCount() int {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return len(si.catalog)
}

// GetAllCoursesMetadata returns every catalog course in insertion order.
func (si *SemanticIndex) GetAllCoursesMetadata() []course.Course {
	si.mu.RLock()
	defer si.mu.RUnlock()
	out := make([]course.Course, 0, len(si.titles))
	for _, title := range si.titles {
		out = append(out, si.catalog[title].Course)
	}
	return out
}

// GetCourseLink returns the course URL for an exact title, or "".
func (si *SemanticIndex) GetCourseLink(title string) string {
	si.mu.RLock()
	defer si.mu.RUnlock()
	if rec, ok := si.catalog[title]; ok {
		return rec.Course.Link
	}
	return ""
}

// GetLessonLink returns the lesson URL for an exact title and lesson
// number, or "" when either is unknown.
func (si *SemanticIndex) GetLessonLink(title string, lessonNumber int) string {
	si.mu.RLock()
	defer si.mu.RUnlock()
	rec, ok := si.catalog[title]
	if !ok {
		return ""
	}
	for _, l := range rec.Course.Lessons {
		if l.Number == lessonNumber {
			return l.Link
		}
	}
	return ""
}

// ClearAllData wipes both collections, in memory and in the store.
func (si *SemanticIndex) ClearAllData() error {
	if err := si.store.DropAll(); err != nil {
		return err
	}
	si.mu.Lock()
	si.catalog = make(map[string]*CatalogRecord)
	si.titles = nil
	si.content = nil
	si.mu.Unlock()
	si.logger.Info("Semantic index cleared")
	return nil
}
