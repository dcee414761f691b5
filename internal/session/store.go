package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/mchat/internal/logger"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrBusy     = errors.New("session is busy")
)

// Store holds the sessions of a multi-client front end.
type Store struct {
	greeting string
	now      func() time.Time

	mu     sync.Mutex
	states map[string]*State
}

func NewStore(greeting string) *Store {
	return &Store{greeting: greeting, now: time.Now, states: make(map[string]*State)}
}

// Create starts a session with a fresh conversation.
func (s *Store) Create() *State {
	st := New(uuid.NewString(), s.greeting)
	st.Touch(s.now())
	s.mu.Lock()
	s.states[st.ID] = st
	s.mu.Unlock()
	return st
}

// Get returns the session and marks it as seen.
func (s *Store) Get(id string) (*State, error) {
	s.mu.Lock()
	st, ok := s.states[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	st.Touch(s.now())
	return st, nil
}

// Acquire returns the session with its busy lock held. The caller releases
// it.
func (s *Store) Acquire(id string) (*State, error) {
	st, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !st.Acquire() {
		return nil, ErrBusy
	}
	return st, nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[id]; !ok {
		return ErrNotFound
	}
	delete(s.states, id)
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Sweep ends sessions idle for longer than idle. Busy sessions are kept.
func (s *Store) Sweep(idle time.Duration) []string {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for id, st := range s.states {
		if !st.LastSeen().Before(cutoff) {
			continue
		}
		if !st.Acquire() {
			continue
		}
		st.Release()
		delete(s.states, id)
		removed = append(removed, id)
	}
	slices.Sort(removed)
	return removed
}

// RunSweeper sweeps every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval, idle time.Duration, log logger.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if removed := s.Sweep(idle); len(removed) > 0 {
				log.Info("expired idle sessions", "count", len(removed))
			}
		}
	}
}
