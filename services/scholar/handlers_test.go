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
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/Scholar/services/llm"
)

func newTestRouter(t *testing.T, client *scriptedClient) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rag := newTestSystem(t, client)
	router := gin.New()
	RegisterRoutes(router.Group("/api"), NewHandlers(rag, nil))
	return router
}

func postQuery(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestQueryEndpointSuccess(t *testing.T) {
	client := &scriptedClient{results: []*llm.ChatWithToolsResult{directAnswer("This is a test answer")}}
	router := newTestRouter(t, client)

	w := postQuery(t, router, `{"query": "What is Python?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp QueryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response JSON: %v", err)
	}
	if resp.Answer != "This is a test answer" {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.SessionID == "" {
		t.Error("no session id")
	}
	if resp.Sources == nil {
		t.Error("sources must be [], not null")
	}
}

func TestQueryEndpointEchoesSessionID(t *testing.T) {
	client := &scriptedClient{results: []*llm.ChatWithToolsResult{directAnswer("ok")}}
	router := newTestRouter(t, client)

	w := postQuery(t, router, `{"query": "q", "session_id": "existing-session"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp QueryResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.SessionID != "existing-session" {
		t.Errorf("session_id = %q", resp.SessionID)
	}
}

func TestQueryEndpointBadRequests(t *testing.T) {
	router := newTestRouter(t, &scriptedClient{})

	// The detail must name the actual failure: a parse error is not a
	// missing field.
	cases := []struct {
		body   string
		detail string
	}{
		{`{}`, "query is required"},
		{`{"session_id": "s"}`, "query is required"},
		{`{"query": ""}`, "query is required"},
		{`not json`, "invalid request body"},
		{`{"query": 42}`, "invalid request body"},
	}
	for _, tc := range cases {
		w := postQuery(t, router, tc.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", tc.body, w.Code)
		}
		var resp map[string]string
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp["detail"] != tc.detail {
			t.Errorf("body %q: detail = %q, want %q", tc.body, resp["detail"], tc.detail)
		}
	}
}

func TestQueryEndpointProviderFailure(t *testing.T) {
	client := &scriptedClient{errs: []error{fmt.Errorf("RAG system error")}}
	router := newTestRouter(t, client)

	w := postQuery(t, router, `{"query": "q"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "detail") {
		t.Errorf("error body missing detail: %s", w.Body.String())
	}
}

func TestCoursesEndpoint(t *testing.T) {
	client := &scriptedClient{}
	router := newTestRouter(t, client)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/courses", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var stats Analytics
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("bad response JSON: %v", err)
	}
	if stats.TotalCourses != 0 {
		t.Errorf("total_courses = %d", stats.TotalCourses)
	}
	if stats.CourseTitles == nil {
		t.Error("course_titles must be [], not null")
	}
}

func TestClearSessionEndpoint(t *testing.T) {
	router := newTestRouter(t, &scriptedClient{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/sessions/some-id/clear", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.Contains(resp["message"], "cleared successfully") {
		t.Errorf("message = %q", resp["message"])
	}
	if resp["session_id"] != "some-id" {
		t.Errorf("session_id = %q", resp["session_id"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, &scriptedClient{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}
