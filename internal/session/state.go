// Package session keeps per-session conversation state.
package session

import (
	"sync"
	"time"

	"github.com/samcharles93/mchat/internal/chat"
)

// Pending is a prompt staged for the next render pass. Continuation is the
// text already shown as the start of the assistant reply.
type Pending struct {
	Prompt       string
	Continuation string
}

// State is the explicit key/value store of one session. It lives from the
// first interaction until the session ends.
type State struct {
	ID           string
	Conversation *chat.Conversation
	Created      time.Time

	pending *Pending
	busy    sync.Mutex

	mu       sync.Mutex
	values   map[string]any
	lastSeen time.Time
}

func New(id, greeting string) *State {
	now := time.Now()
	return &State{
		ID:           id,
		Conversation: chat.NewConversation(greeting),
		Created:      now,
		values:       make(map[string]any),
		lastSeen:     now,
	}
}

// Stage replaces any staged prompt.
func (s *State) Stage(prompt, continuation string) {
	s.pending = &Pending{Prompt: prompt, Continuation: continuation}
}

func (s *State) Pending() (Pending, bool) {
	if s.pending == nil {
		return Pending{}, false
	}
	return *s.pending, true
}

func (s *State) ClearPending() { s.pending = nil }

func (s *State) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *State) Set(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = v
}

// Acquire claims the session for one interaction. It returns false while
// another interaction, such as a running generation, holds it.
func (s *State) Acquire() bool { return s.busy.TryLock() }

func (s *State) Release() { s.busy.Unlock() }

func (s *State) Touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *State) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
