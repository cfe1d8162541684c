// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rag

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lectern-ai/lectern/services/rag/datatypes"
)

// SessionManager keeps bounded per-session conversation history in memory.
//
// # Description
//
// Each session holds at most maxHistory question-answer exchanges; older
// exchanges are discarded as new ones arrive, which caps the history text
// injected into the system prompt regardless of conversation length.
// Unknown session ids read as empty history and are created on first write.
//
// # Thread Safety
//
// Safe for concurrent use. The HTTP surface serves sessions concurrently,
// so the map is guarded by a mutex.
type SessionManager struct {
	mu         sync.Mutex
	sessions   map[string][]datatypes.Exchange
	maxHistory int
}

// NewSessionManager creates a manager keeping maxHistory exchanges per
// session. Values < 1 fall back to 2.
func NewSessionManager(maxHistory int) *SessionManager {
	if maxHistory < 1 {
		maxHistory = 2
	}
	return &SessionManager{
		sessions:   make(map[string][]datatypes.Exchange),
		maxHistory: maxHistory,
	}
}

// NewSession allocates a fresh session id with empty history.
func (m *SessionManager) NewSession() string {
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = nil
	m.mu.Unlock()
	return id
}

// AddExchange appends a question-answer pair, trimming to the history cap.
func (m *SessionManager) AddExchange(sessionID, question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(m.sessions[sessionID], datatypes.Exchange{
		Question: question,
		Answer:   answer,
	})
	if len(history) > m.maxHistory {
		history = history[len(history)-m.maxHistory:]
	}
	m.sessions[sessionID] = history
}

// History renders a session's exchanges as alternating "User:" and
// "Assistant:" lines for prompt injection. Empty string when the session
// is unknown or has no exchanges.
func (m *SessionManager) History(sessionID string) string {
	m.mu.Lock()
	history := m.sessions[sessionID]
	m.mu.Unlock()

	if len(history) == 0 {
		return ""
	}
	lines := make([]string, 0, len(history)*2)
	for _, ex := range history {
		lines = append(lines,
			fmt.Sprintf("User: %s", ex.Question),
			fmt.Sprintf("Assistant: %s", ex.Answer),
		)
	}
	return strings.Join(lines, "\n")
}

// ClearSession drops a session's history. The id stays valid; the next
// exchange starts a fresh history.
func (m *SessionManager) ClearSession(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}
