// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dialog

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tuasgeo/platechat/services/dialog/session"
	"github.com/tuasgeo/platechat/services/responder"
)

// conversation is the per-session state the HTTP layer stores between
// turns. Its mutex serializes turns for one session, which is the
// serialization guarantee the engine requires.
type conversation struct {
	mu       sync.Mutex
	dialogue *session.Dialogue
	memory   *responder.Memory
}

// SessionStore maps session IDs to their conversations. The engine holds
// no per-conversation state, so this store is the only mutable map in the
// service.
//
// Thread Safety: Safe for concurrent use.
type SessionStore struct {
	mu            sync.Mutex
	conversations map[string]*conversation
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{conversations: make(map[string]*conversation)}
}

// Get returns the conversation for id, or nil when unknown.
func (s *SessionStore) Get(id string) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversations[id]
}

// Create allocates a new conversation and returns its ID.
func (s *SessionStore) Create() (string, *conversation) {
	id := uuid.NewString()
	conv := &conversation{memory: responder.NewMemory(0)}
	s.mu.Lock()
	s.conversations[id] = conv
	s.mu.Unlock()
	return id, conv
}

// GetOrCreate returns the conversation for id, creating one (and a fresh
// ID) when id is empty or unknown.
func (s *SessionStore) GetOrCreate(id string) (string, *conversation) {
	if id != "" {
		if conv := s.Get(id); conv != nil {
			return id, conv
		}
	}
	return s.Create()
}

// Delete removes a conversation.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
}

// Len returns the number of live conversations.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}
