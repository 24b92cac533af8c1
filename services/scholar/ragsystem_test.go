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
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/Scholar/services/llm"
	"github.com/AleutianAI/Scholar/services/scholar/index"
)

// =============================================================================
// Fakes
// =============================================================================

// bagEmbedder is a deterministic bag-of-words embedder for tests.
type bagEmbedder struct{}

func (bagEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	const dims = 64
	vec := make([]float32, dims)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%dims]++
	}
	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func (b bagEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := b.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// scriptedClient returns canned model results in order.
type scriptedClient struct {
	results []*llm.ChatWithToolsResult
	errs    []error
	calls   [][]llm.ChatMessage
}

func (c *scriptedClient) ChatWithTools(_ context.Context, messages []llm.ChatMessage,
	_ llm.GenerationParams, _ []llm.ToolDef) (*llm.ChatWithToolsResult, error) {

	i := len(c.calls)
	c.calls = append(c.calls, messages)
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i >= len(c.results) {
		return nil, fmt.Errorf("unexpected call %d", i)
	}
	return c.results[i], nil
}

func directAnswer(text string) *llm.ChatWithToolsResult {
	return &llm.ChatWithToolsResult{Content: text, StopReason: llm.StopReasonEnd}
}

func newTestSystem(t *testing.T, client *scriptedClient) *RAGSystem {
	t.Helper()
	idx, err := index.NewSemanticIndex(bagEmbedder{}, nil, 5, nil)
	if err != nil {
		t.Fatalf("NewSemanticIndex: %v", err)
	}
	cfg := DefaultConfig()
	return NewRAGSystem(cfg, client, idx, nil)
}

const sampleDoc = `Course Title: Python Basics
Course Link: https://example.com/python
Course Instructor: Dr. Ada

Lesson 1: Getting Started
Lesson Link: https://example.com/python/1
Install the interpreter and run your first script.

Lesson 2: Variables
Variables store values in python programs.
`

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// =============================================================================
// Query
// =============================================================================

func TestQueryCreatesSessionWhenEmpty(t *testing.T) {
	client := &scriptedClient{results: []*llm.ChatWithToolsResult{directAnswer("hi")}}
	rag := newTestSystem(t, client)

	answer, _, sessionID, err := rag.Query(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if answer != "hi" {
		t.Errorf("answer = %q", answer)
	}
	if sessionID == "" {
		t.Error("no session id returned")
	}
}

func TestQueryDistinctSessionsPerCall(t *testing.T) {
	client := &scriptedClient{results: []*llm.ChatWithToolsResult{
		directAnswer("a"), directAnswer("b"),
	}}
	rag := newTestSystem(t, client)

	_, _, sidA, err := rag.Query(context.Background(), "first", "")
	if err != nil {
		t.Fatal(err)
	}
	_, _, sidB, err := rag.Query(context.Background(), "second", "")
	if err != nil {
		t.Fatal(err)
	}
	if sidA == sidB {
		t.Errorf("independent queries shared session %q", sidA)
	}
}

func TestQueryWrapsQuestionInPrompt(t *testing.T) {
	client := &scriptedClient{results: []*llm.ChatWithToolsResult{directAnswer("ok")}}
	rag := newTestSystem(t, client)

	if _, _, _, err := rag.Query(context.Background(), "What is MCP?", ""); err != nil {
		t.Fatal(err)
	}
	var userContent string
	for _, m := range client.calls[0] {
		if m.Role == "user" {
			userContent = m.Content
		}
	}
	if userContent != "Answer this question about course materials: What is MCP?" {
		t.Errorf("user content = %q", userContent)
	}
}

func TestQueryCarriesHistoryIntoNextTurn(t *testing.T) {
	client := &scriptedClient{results: []*llm.ChatWithToolsResult{
		directAnswer("first answer"), directAnswer("second answer"),
	}}
	rag := newTestSystem(t, client)

	_, _, sid, err := rag.Query(context.Background(), "first question", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := rag.Query(context.Background(), "second question", sid); err != nil {
		t.Fatal(err)
	}

	system := client.calls[1][0].Content
	if !strings.Contains(system, "User: first question") ||
		!strings.Contains(system, "Assistant: first answer") {
		t.Errorf("second call system prompt missing history:\n%s", system)
	}
}

func TestQueryReturnsSourcesFromToolRound(t *testing.T) {
	client := &scriptedClient{results: []*llm.ChatWithToolsResult{
		{
			StopReason: llm.StopReasonToolUse,
			ToolCalls: []llm.ToolCallResponse{{
				ID:        "toolu_1",
				Name:      "search_course_content",
				Arguments: json.RawMessage(`{"query":"variables store values"}`),
			}},
		},
		directAnswer("Variables store values."),
	}}
	rag := newTestSystem(t, client)

	ctx := context.Background()
	dir := t.TempDir()
	writeDoc(t, dir, "python.txt", sampleDoc)
	if _, _, err := rag.AddCourseFolder(ctx, dir, false); err != nil {
		t.Fatalf("AddCourseFolder: %v", err)
	}

	answer, sources, _, err := rag.Query(ctx, "What are variables?", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if answer != "Variables store values." {
		t.Errorf("answer = %q", answer)
	}
	if len(sources) == 0 {
		t.Fatal("expected sources from tool round")
	}
	if !strings.HasPrefix(sources[0].Text, "Python Basics") {
		t.Errorf("source text = %q", sources[0].Text)
	}
}

func TestQuerySourcesDoNotLeakBetweenQueries(t *testing.T) {
	client := &scriptedClient{results: []*llm.ChatWithToolsResult{
		{
			StopReason: llm.StopReasonToolUse,
			ToolCalls: []llm.ToolCallResponse{{
				ID:        "toolu_1",
				Name:      "search_course_content",
				Arguments: json.RawMessage(`{"query":"variables"}`),
			}},
		},
		directAnswer("with sources"),
		directAnswer("no tools this time"),
	}}
	rag := newTestSystem(t, client)

	ctx := context.Background()
	dir := t.TempDir()
	writeDoc(t, dir, "python.txt", sampleDoc)
	if _, _, err := rag.AddCourseFolder(ctx, dir, false); err != nil {
		t.Fatal(err)
	}

	_, first, _, err := rag.Query(ctx, "q1", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(first) == 0 {
		t.Fatal("first query should have sources")
	}

	_, second, _, err := rag.Query(ctx, "q2", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 0 {
		t.Errorf("second query leaked %d stale sources", len(second))
	}
}

func TestQueryProviderFailureKeepsHistoryClean(t *testing.T) {
	client := &scriptedClient{
		errs: []error{fmt.Errorf("api down"), nil},
		results: []*llm.ChatWithToolsResult{
			nil, directAnswer("recovered"),
		},
	}
	rag := newTestSystem(t, client)

	_, _, sid, err := rag.Query(context.Background(), "failing question", "")
	if err == nil {
		t.Fatal("expected provider error")
	}

	if _, _, _, err := rag.Query(context.Background(), "next", sid); err != nil {
		t.Fatal(err)
	}
	system := client.calls[1][0].Content
	if strings.Contains(system, "failing question") {
		t.Errorf("failed exchange recorded in history:\n%s", system)
	}
}

// =============================================================================
// Ingestion
// =============================================================================

func TestAddCourseDocument(t *testing.T) {
	rag := newTestSystem(t, &scriptedClient{})
	path := writeDoc(t, t.TempDir(), "python.txt", sampleDoc)

	c, chunkCount, err := rag.AddCourseDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("AddCourseDocument: %v", err)
	}
	if c.Title != "Python Basics" {
		t.Errorf("title = %q", c.Title)
	}
	if chunkCount == 0 {
		t.Error("no chunks indexed")
	}
	stats := rag.GetCourseAnalytics()
	if stats.TotalCourses != 1 || stats.CourseTitles[0] != "Python Basics" {
		t.Errorf("analytics = %+v", stats)
	}
}

func TestAddCourseDocumentMissingFile(t *testing.T) {
	rag := newTestSystem(t, &scriptedClient{})

	if _, _, err := rag.AddCourseDocument(context.Background(), "/no/such/file.txt"); err == nil {
		t.Fatal("expected error")
	}
	if rag.GetCourseAnalytics().TotalCourses != 0 {
		t.Error("failed ingestion left catalog entries")
	}
}

const sampleDocRevised = `Course Title: Python Basics
Course Link: https://example.com/python
Course Instructor: Dr. Ada

Lesson 1: Getting Started
Lesson Link: https://example.com/python/1
Install the interpreter, then run the updated starter script.
`

func TestAddCourseDocumentReingestReplacesChunks(t *testing.T) {
	client := &scriptedClient{results: []*llm.ChatWithToolsResult{
		{
			StopReason: llm.StopReasonToolUse,
			ToolCalls: []llm.ToolCallResponse{{
				ID:        "toolu_1",
				Name:      "search_course_content",
				Arguments: json.RawMessage(`{"query":"python"}`),
			}},
		},
		directAnswer("done"),
	}}
	rag := newTestSystem(t, client)
	ctx := context.Background()
	dir := t.TempDir()

	path := writeDoc(t, dir, "python.txt", sampleDoc)
	if _, n, err := rag.AddCourseDocument(ctx, path); err != nil || n != 2 {
		t.Fatalf("first ingest: chunks = %d, err = %v; want 2, nil", n, err)
	}

	// The docs watcher re-ingests on every write to a changed file. The
	// shrunk revision must replace the old chunks, not pile on top of
	// them, or searches return duplicates and stale lesson content.
	writeDoc(t, dir, "python.txt", sampleDocRevised)
	if _, n, err := rag.AddCourseDocument(ctx, path); err != nil || n != 1 {
		t.Fatalf("re-ingest: chunks = %d, err = %v; want 1, nil", n, err)
	}

	_, sources, _, err := rag.Query(ctx, "what does the course cover?", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(sources) != 1 {
		t.Errorf("sources = %d, want 1 (duplicate or stale chunks survived re-ingest)", len(sources))
	}
	if rag.GetCourseAnalytics().TotalCourses != 1 {
		t.Errorf("total courses = %d, want 1", rag.GetCourseAnalytics().TotalCourses)
	}
}

func TestAddCourseFolderSkipsExistingTitles(t *testing.T) {
	rag := newTestSystem(t, &scriptedClient{})
	ctx := context.Background()
	dir := t.TempDir()
	writeDoc(t, dir, "python.txt", sampleDoc)

	added, _, err := rag.AddCourseFolder(ctx, dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}

	// Second pass: same title, nothing new.
	added, chunks, err := rag.AddCourseFolder(ctx, dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if added != 0 || chunks != 0 {
		t.Errorf("re-ingest added %d courses, %d chunks; want 0, 0", added, chunks)
	}
}

func TestAddCourseFolderClearExisting(t *testing.T) {
	rag := newTestSystem(t, &scriptedClient{})
	ctx := context.Background()
	dir := t.TempDir()
	writeDoc(t, dir, "python.txt", sampleDoc)

	if _, _, err := rag.AddCourseFolder(ctx, dir, false); err != nil {
		t.Fatal(err)
	}
	added, _, err := rag.AddCourseFolder(ctx, dir, true)
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 {
		t.Errorf("added = %d after clear, want 1", added)
	}
	if rag.GetCourseAnalytics().TotalCourses != 1 {
		t.Errorf("total = %d, want 1", rag.GetCourseAnalytics().TotalCourses)
	}
}

func TestAddCourseFolderSkipsBadDocuments(t *testing.T) {
	rag := newTestSystem(t, &scriptedClient{})
	ctx := context.Background()
	dir := t.TempDir()
	writeDoc(t, dir, "good.txt", sampleDoc)
	writeDoc(t, dir, "ignored.log", "not a course doc")

	added, _, err := rag.AddCourseFolder(ctx, dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}
}
