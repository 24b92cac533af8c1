// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session tracks per-session conversation history so follow-up
// questions carry context into the model call.
//
// Sessions are in-memory only. A restart clears them; that is
// acceptable because history is a quality optimization, not state the
// user can lose work over.
package session

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// exchange is one completed user/assistant turn pair.
type exchange struct {
	userMessage      string
	assistantMessage string
}

// Manager stores conversation history per session.
//
// Description:
//
//	History is capped at maxHistory exchanges per session; older
//	exchanges are discarded. Session IDs are opaque UUIDs handed to
//	the client, which echoes them on subsequent queries.
//
// Thread Safety: Safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string][]exchange
	maxHistory int
	logger     *slog.Logger
}

// NewManager creates a session manager keeping up to maxHistory
// exchanges per session. Values < 1 become 2. A nil logger selects
// slog.Default().
func NewManager(maxHistory int, logger *slog.Logger) *Manager {
	if maxHistory < 1 {
		maxHistory = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions:   make(map[string][]exchange),
		maxHistory: maxHistory,
		logger:     logger,
	}
}

// CreateSession allocates a new empty session and returns its ID.
func (m *Manager) CreateSession() string {
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = nil
	m.mu.Unlock()
	m.logger.Debug("Session created", "session_id", id)
	return id
}

// AddExchange appends one completed turn pair, trimming to the history
// cap. An unknown session ID is created implicitly.
func (m *Manager) AddExchange(sessionID, userMessage, assistantMessage string) {
	if sessionID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(m.sessions[sessionID], exchange{
		userMessage:      userMessage,
		assistantMessage: assistantMessage,
	})
	if len(history) > m.maxHistory {
		history = history[len(history)-m.maxHistory:]
	}
	m.sessions[sessionID] = history
}

// GetConversationHistory renders the session's retained exchanges as
// "User: ...\nAssistant: ..." lines, oldest first. Unknown or empty
// sessions yield "".
func (m *Manager) GetConversationHistory(sessionID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.sessions[sessionID]
	if len(history) == 0 {
		return ""
	}

	var lines []string
	for _, ex := range history {
		lines = append(lines, "User: "+ex.userMessage)
		lines = append(lines, "Assistant: "+ex.assistantMessage)
	}
	return strings.Join(lines, "\n")
}

// ClearSession drops a session's history but keeps the session alive.
// Clearing an unknown session is a no-op.
func (m *Manager) ClearSession(sessionID string) {
	m.mu.Lock()
	if _, ok := m.sessions[sessionID]; ok {
		m.sessions[sessionID] = nil
	}
	m.mu.Unlock()
	m.logger.Debug("Session cleared", "session_id", sessionID)
}
