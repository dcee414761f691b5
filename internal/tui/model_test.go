package tui

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/samcharles93/mchat/internal/chat"
	"github.com/samcharles93/mchat/internal/inference"
	"github.com/samcharles93/mchat/internal/registry"
	"github.com/samcharles93/mchat/internal/session"
	"github.com/samcharles93/mchat/internal/turn"
)

type fakeStream struct {
	chunks []string
	err    error
}

func (s *fakeStream) Next() (string, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *fakeStream) Close() error { return nil }

type fakeModels struct {
	chunks   []string
	err      error
	ids      []string
	requests []inference.Request
}

func (f *fakeModels) Generator(_ context.Context, id string) (inference.Generator, error) {
	f.ids = append(f.ids, id)
	return f, nil
}

func (f *fakeModels) Generate(_ context.Context, req inference.Request) (inference.Stream, error) {
	f.requests = append(f.requests, req)
	return &fakeStream{chunks: slices.Clone(f.chunks), err: f.err}, nil
}

func newTestModel(chunks ...string) (*Model, *fakeModels) {
	models := &fakeModels{chunks: chunks}
	m := New(context.Background(), Options{
		State:  session.New("tui", chat.DefaultGreeting),
		Models: models,
		Registry: registry.New(
			registry.Model{ID: "toy", Name: "Toy"},
			registry.Model{ID: "openai:gpt", Name: "GPT"},
		),
		Defaults: turn.DefaultSettings(),
	})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, models
}

func press(m *Model, k tea.KeyType) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: k})
	return cmd
}

// pump feeds chunks to m until its turn ends.
func pump(t *testing.T, m *Model) {
	t.Helper()
	for i := 0; m.turn != nil; i++ {
		if i > 100 {
			t.Fatalf("turn did not finish")
		}
		m.Update(m.next(m.turn)())
	}
}

func send(t *testing.T, m *Model, text string) {
	t.Helper()
	m.input.SetValue(text)
	press(m, tea.KeyEnter)
	if m.turn == nil {
		t.Fatalf("expected a streaming turn after enter")
	}
	pump(t, m)
}

func TestSendStreamsAndCommits(t *testing.T) {
	t.Parallel()

	m, models := newTestModel("4", ", of", " course")
	send(t, m, "2+2?")

	msgs := m.Controller().Messages()
	if len(msgs) != 3 || msgs[2].Content != "4, of course" {
		t.Fatalf("transcript: %+v", msgs)
	}
	if m.input.Value() != "" {
		t.Fatalf("input not cleared: %q", m.input.Value())
	}
	if !strings.Contains(m.Transcript(), "4, of course") {
		t.Fatalf("reply not rendered: %q", m.Transcript())
	}
	if strings.Contains(m.Transcript(), turn.Cursor) {
		t.Fatalf("cursor left after commit")
	}
	if models.ids[0] != "toy" {
		t.Fatalf("model id: got %q", models.ids[0])
	}
}

func TestSendIgnoresBlankInput(t *testing.T) {
	t.Parallel()

	m, models := newTestModel("x")
	m.input.SetValue("   ")
	press(m, tea.KeyEnter)
	if m.turn != nil || len(models.requests) != 0 {
		t.Fatalf("blank input must not start a turn")
	}
}

func TestStreamingShowsCursor(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel("a", "b")
	m.input.SetValue("hi")
	press(m, tea.KeyEnter)
	m.Update(m.next(m.turn)())
	m.rebuild()
	if !strings.Contains(m.Transcript(), "a"+turn.Cursor) {
		t.Fatalf("live reply not shown: %q", m.Transcript())
	}
	if !strings.Contains(m.View(), "generating") {
		t.Fatalf("status does not show generation")
	}
	pump(t, m)
}

func TestForgetKey(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel("ok")
	send(t, m, "hi")
	press(m, tea.KeyCtrlF)
	if n := len(m.Controller().Messages()); n != 1 {
		t.Fatalf("messages after forget: got %d", n)
	}
}

func TestContinueKey(t *testing.T) {
	t.Parallel()

	m, models := newTestModel("first\nsecond")
	press(m, tea.KeyCtrlR)
	if m.turn != nil {
		t.Fatalf("continue without exchange must do nothing")
	}

	send(t, m, "hi")
	models.chunks = []string{" more"}
	press(m, tea.KeyCtrlR)
	pump(t, m)

	msgs := m.Controller().Messages()
	if len(msgs) != 3 || msgs[2].Content != "first more" {
		t.Fatalf("continued transcript: %+v", msgs)
	}
}

func TestStreamRunsToCompletion(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel("a", "b", "c")
	m.input.SetValue("hi")
	press(m, tea.KeyEnter)
	m.Update(m.next(m.turn)())

	// Keys pressed mid-stream neither stop nor alter the turn.
	for _, k := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlF, tea.KeyCtrlR, tea.KeyEnter} {
		press(m, k)
		if m.turn == nil {
			t.Fatalf("key %v ended the turn", k)
		}
	}
	pump(t, m)

	msgs := m.Controller().Messages()
	if len(msgs) != 3 || msgs[2].Content != "abc" {
		t.Fatalf("transcript: %+v", msgs)
	}
}

func TestErrorIsShown(t *testing.T) {
	t.Parallel()

	m, models := newTestModel("part")
	models.err = errors.New("out of memory")
	send(t, m, "hi")

	if !strings.Contains(m.Transcript(), "out of memory") {
		t.Fatalf("error not rendered: %q", m.Transcript())
	}
	if n := len(m.Controller().Messages()); n != 2 {
		t.Fatalf("failed reply committed, got %d messages", n)
	}

	models.err = nil
	models.chunks = []string{"fine"}
	send(t, m, "again")
	if strings.Contains(m.Transcript(), "out of memory") {
		t.Fatalf("error kept after a successful turn")
	}
}

func TestSettingsKeys(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel()
	tests := []struct {
		key  tea.KeyType
		temp float64
		ctx  int
	}{
		{tea.KeyCtrlUp, 1.0, turn.DefaultMaxSteps},
		{tea.KeyCtrlDown, 0.9, turn.DefaultMaxSteps},
		{tea.KeyCtrlRight, 0.9, turn.DefaultMaxSteps + 100},
		{tea.KeyCtrlLeft, 0.9, turn.DefaultMaxSteps},
		{tea.KeyCtrlLeft, 0.9, turn.DefaultMaxSteps - 100},
	}
	for i, tt := range tests {
		press(m, tt.key)
		s := m.Controller().Settings()
		if s.Temperature != tt.temp || s.MaxSteps != tt.ctx {
			t.Fatalf("step %d: got temperature %v context %d", i, s.Temperature, s.MaxSteps)
		}
	}
}

func TestModelPicker(t *testing.T) {
	t.Parallel()

	m, models := newTestModel("ok")
	press(m, tea.KeyCtrlO)
	if !m.picking {
		t.Fatalf("picker not open")
	}
	press(m, tea.KeyDown)
	press(m, tea.KeyEnter)
	if m.picking {
		t.Fatalf("picker still open")
	}
	if got := m.Controller().Settings().ModelID; got != "openai:gpt" {
		t.Fatalf("selected model: got %q", got)
	}
	if !strings.Contains(m.View(), "GPT") {
		t.Fatalf("header does not show the model name")
	}

	send(t, m, "hi")
	if models.ids[0] != "openai:gpt" {
		t.Fatalf("generator id: got %q", models.ids[0])
	}

	press(m, tea.KeyCtrlO)
	press(m, tea.KeyEsc)
	if m.picking || m.Controller().Settings().ModelID != "openai:gpt" {
		t.Fatalf("esc must close the picker without changes")
	}
}

func TestRegistryMsg(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel()
	m.Update(RegistryMsg{Registry: registry.New(registry.Model{ID: "x", Name: "X"})})
	if n := len(m.picker.Items()); n != 1 {
		t.Fatalf("picker items: got %d", n)
	}
	if got := m.Controller().Settings().ModelID; got != "toy" {
		t.Fatalf("selection must survive a registry change, got %q", got)
	}
}

func TestThinkingRenderedApart(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel("<think>check sums</think>", "4")
	send(t, m, "2+2?")
	tr := m.Transcript()
	if !strings.Contains(tr, "check sums") || !strings.Contains(tr, "4") {
		t.Fatalf("transcript: %q", tr)
	}
	if strings.Contains(tr, "<think>") {
		t.Fatalf("think tags rendered: %q", tr)
	}
	if got := m.Controller().Messages()[2].Content; got != "<think>check sums</think>4" {
		t.Fatalf("stored reply must keep the raw text, got %q", got)
	}
}
