// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestCreateSessionReturnsUniqueIDs(t *testing.T) {
	m := NewManager(2, nil)

	a := m.CreateSession()
	b := m.CreateSession()
	if a == "" || b == "" {
		t.Fatal("empty session id")
	}
	if a == b {
		t.Errorf("duplicate session ids: %q", a)
	}
}

func TestHistoryFormat(t *testing.T) {
	m := NewManager(2, nil)
	id := m.CreateSession()

	m.AddExchange(id, "What is Python?", "Python is a programming language.")

	got := m.GetConversationHistory(id)
	want := "User: What is Python?\nAssistant: Python is a programming language."
	if got != want {
		t.Errorf("history = %q, want %q", got, want)
	}
}

func TestHistoryCapKeepsNewest(t *testing.T) {
	m := NewManager(2, nil)
	id := m.CreateSession()

	for i := 1; i <= 4; i++ {
		m.AddExchange(id, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	got := m.GetConversationHistory(id)
	if strings.Contains(got, "q1") || strings.Contains(got, "q2") {
		t.Errorf("history retains evicted exchanges: %q", got)
	}
	if !strings.Contains(got, "q3") || !strings.Contains(got, "q4") {
		t.Errorf("history missing newest exchanges: %q", got)
	}
	// Oldest retained exchange comes first.
	if strings.Index(got, "q3") > strings.Index(got, "q4") {
		t.Errorf("history out of order: %q", got)
	}
}

func TestUnknownSessionHistoryIsEmpty(t *testing.T) {
	m := NewManager(2, nil)
	if got := m.GetConversationHistory("no-such-session"); got != "" {
		t.Errorf("history = %q, want empty", got)
	}
}

func TestAddExchangeCreatesSessionImplicitly(t *testing.T) {
	m := NewManager(2, nil)

	m.AddExchange("client-chosen-id", "q", "a")
	if got := m.GetConversationHistory("client-chosen-id"); got == "" {
		t.Error("implicit session has no history")
	}
}

func TestAddExchangeEmptyIDIsNoop(t *testing.T) {
	m := NewManager(2, nil)
	m.AddExchange("", "q", "a")
	if got := m.GetConversationHistory(""); got != "" {
		t.Errorf("history for empty id = %q", got)
	}
}

func TestClearSession(t *testing.T) {
	m := NewManager(2, nil)
	id := m.CreateSession()
	m.AddExchange(id, "q", "a")

	m.ClearSession(id)
	if got := m.GetConversationHistory(id); got != "" {
		t.Errorf("history after clear = %q", got)
	}

	// Session remains usable after clearing.
	m.AddExchange(id, "q2", "a2")
	if got := m.GetConversationHistory(id); !strings.Contains(got, "q2") {
		t.Errorf("history after re-use = %q", got)
	}
}

func TestClearUnknownSessionIsNoop(t *testing.T) {
	m := NewManager(2, nil)
	m.ClearSession("no-such-session") // must not panic or create
	if got := m.GetConversationHistory("no-such-session"); got != "" {
		t.Errorf("history = %q", got)
	}
}

func TestSessionIsolation(t *testing.T) {
	m := NewManager(2, nil)
	a := m.CreateSession()
	b := m.CreateSession()

	m.AddExchange(a, "only in a", "answer a")
	if got := m.GetConversationHistory(b); got != "" {
		t.Errorf("session b leaked history: %q", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := NewManager(2, nil)
	id := m.CreateSession()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.AddExchange(id, fmt.Sprintf("q%d", i), "a")
			_ = m.GetConversationHistory(id)
		}()
	}
	wg.Wait()

	if got := m.GetConversationHistory(id); got == "" {
		t.Error("history empty after concurrent writes")
	}
}
