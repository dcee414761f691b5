package session

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/samcharles93/mchat/internal/chat"
)

func TestStateStaging(t *testing.T) {
	t.Parallel()

	st := New("s1", "")
	if _, ok := st.Pending(); ok {
		t.Fatal("new state must have nothing staged")
	}
	st.Stage("prompt", "seed")
	p, ok := st.Pending()
	if !ok || p != (Pending{Prompt: "prompt", Continuation: "seed"}) {
		t.Fatalf("Pending = %+v, %v", p, ok)
	}
	st.ClearPending()
	if _, ok := st.Pending(); ok {
		t.Fatal("ClearPending left a prompt staged")
	}
	if got := st.Conversation.Messages(); !slices.Equal(got, []chat.Message{chat.Assistant(chat.DefaultGreeting)}) {
		t.Fatalf("conversation = %+v", got)
	}
}

func TestStateValues(t *testing.T) {
	t.Parallel()

	st := New("s1", "")
	st.Set("model", "toy")
	if v, ok := st.Get("model"); !ok || v != "toy" {
		t.Fatalf("Get = %v, %v", v, ok)
	}
	st.Set("model", "openai:tiny")
	if v, _ := st.Get("model"); v != "openai:tiny" {
		t.Fatalf("Set did not replace the value: %v", v)
	}
	if _, ok := st.Get("missing"); ok {
		t.Fatal("Get reported a missing key")
	}
}

func TestStateAcquire(t *testing.T) {
	t.Parallel()

	st := New("s1", "")
	if !st.Acquire() {
		t.Fatal("first Acquire failed")
	}
	if st.Acquire() {
		t.Fatal("second Acquire must fail while held")
	}
	st.Release()
	if !st.Acquire() {
		t.Fatal("Acquire after Release failed")
	}
	st.Release()
}

func TestStoreLifecycle(t *testing.T) {
	t.Parallel()

	s := NewStore("hello")
	st := s.Create()
	if st.ID == "" || s.Len() != 1 {
		t.Fatalf("Create: id %q, len %d", st.ID, s.Len())
	}
	if st.Conversation.Greeting() != "hello" {
		t.Fatalf("greeting = %q", st.Conversation.Greeting())
	}
	got, err := s.Get(st.ID)
	if err != nil || got != st {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if err := s.Delete(st.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(st.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Delete: %v", err)
	}
	if err := s.Delete(st.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestStoreAcquire(t *testing.T) {
	t.Parallel()

	s := NewStore("")
	st := s.Create()
	got, err := s.Acquire(st.ID)
	if err != nil || got != st {
		t.Fatalf("Acquire = %v, %v", got, err)
	}
	if _, err := s.Acquire(st.ID); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Acquire: %v", err)
	}
	st.Release()
	if _, err := s.Acquire("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Acquire unknown: %v", err)
	}
}

func TestStoreSweep(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore("")
	s.now = func() time.Time { return now }

	idle := s.Create()
	busy := s.Create()
	fresh := s.Create()
	idle.Touch(now.Add(-time.Hour))
	busy.Touch(now.Add(-time.Hour))
	if !busy.Acquire() {
		t.Fatal("acquire busy session")
	}
	defer busy.Release()

	removed := s.Sweep(30 * time.Minute)
	if !slices.Equal(removed, []string{idle.ID}) {
		t.Fatalf("removed = %v, want only %s", removed, idle.ID)
	}
	if _, err := s.Get(fresh.ID); err != nil {
		t.Fatal("fresh session was swept")
	}
	if _, err := s.Get(busy.ID); err != nil {
		t.Fatal("busy session was swept")
	}
}
