// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assistant

import (
	"sync"
	"time"

	"github.com/AleutianAI/CivicScope/services/assistant/suggest"
)

// turnTTL is how long followups stay fetchable after a turn.
const turnTTL = 15 * time.Minute

// turnState holds the asynchronously produced artifacts of one turn.
type turnState struct {
	createdAt        time.Time
	suggestionsReady bool
	suggestions      []suggest.SuggestedQuery
}

// turnStore keeps recent turns in memory so the client can poll for
// followup suggestions after the response has been delivered.
//
// Thread Safety: Safe for concurrent use via sync.Mutex.
type turnStore struct {
	mu    sync.Mutex
	turns map[string]*turnState

	// now is swappable for tests.
	now func() time.Time
}

func newTurnStore() *turnStore {
	return &turnStore{
		turns: make(map[string]*turnState),
		now:   time.Now,
	}
}

// Create registers a new pending turn and prunes expired ones.
func (s *turnStore) Create(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, t := range s.turns {
		if now.Sub(t.createdAt) > turnTTL {
			delete(s.turns, key)
		}
	}
	s.turns[id] = &turnState{createdAt: now}
}

// SetSuggestions marks a turn's followups ready. Unknown ids (already
// expired) are a no-op.
func (s *turnStore) SetSuggestions(id string, batch []suggest.SuggestedQuery) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.turns[id]; ok {
		t.suggestions = batch
		t.suggestionsReady = true
	}
}

// Suggestions returns the followup state of a turn.
//
// Outputs:
//   - []suggest.SuggestedQuery: The batch, nil while pending.
//   - bool: Whether the batch is ready.
//   - bool: Whether the turn id is known.
func (s *turnStore) Suggestions(id string) ([]suggest.SuggestedQuery, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.turns[id]
	if !ok {
		return nil, false, false
	}
	return t.suggestions, t.suggestionsReady, true
}
