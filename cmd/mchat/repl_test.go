package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/samcharles93/mchat/internal/chat"
	"github.com/samcharles93/mchat/internal/inference"
	"github.com/samcharles93/mchat/internal/registry"
	"github.com/samcharles93/mchat/internal/session"
	"github.com/samcharles93/mchat/internal/turn"
)

type cannedStream struct {
	chunks []string
	err    error
}

func (s *cannedStream) Next() (string, error) {
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

func (s *cannedStream) Close() error { return nil }

type cannedModels struct {
	chunks   []string
	err      error
	ids      []string
	requests []inference.Request
}

func (m *cannedModels) Generator(_ context.Context, id string) (inference.Generator, error) {
	m.ids = append(m.ids, id)
	return m, nil
}

func (m *cannedModels) Generate(_ context.Context, req inference.Request) (inference.Stream, error) {
	m.requests = append(m.requests, req)
	return &cannedStream{chunks: slices.Clone(m.chunks), err: m.err}, nil
}

type scriptedInput struct {
	lines []string
}

func (s *scriptedInput) ReadLine(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	l := s.lines[0]
	s.lines = s.lines[1:]
	return l, nil
}

func newTestREPL(models *cannedModels) (*repl, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	r := &repl{
		reg: registry.New(
			registry.Model{ID: "toy", Name: "Toy"},
			registry.Model{ID: "openai:gpt", Name: "GPT"},
		),
		out:    &out,
		errOut: &errOut,
		mode:   StreamInstant,
	}
	defaults := turn.DefaultSettings()
	defaults.ModelID = "toy"
	r.ctrl = turn.New(turn.Config{
		State:     session.New("repl", chat.DefaultGreeting),
		Models:    models,
		Defaults:  defaults,
		Presenter: r,
	})
	return r, &out, &errOut
}

func TestREPLConversation(t *testing.T) {
	t.Parallel()

	models := &cannedModels{chunks: []string{"line one", "\nline two"}}
	r, out, errOut := newTestREPL(models)
	in := &scriptedInput{lines: []string{"hello", "", "/continue", "/exit", "never read"}}
	if err := r.loop(context.Background(), in); err != nil {
		t.Fatalf("loop: %v", err)
	}

	if len(in.lines) != 1 {
		t.Fatalf("/exit did not stop the loop, %d lines left", len(in.lines))
	}
	text := out.String()
	if !strings.HasPrefix(text, "assistant: "+chat.DefaultGreeting+"\n") {
		t.Fatalf("greeting not printed first: %q", text)
	}
	if !strings.Contains(text, "assistant: line one\nline two\n") {
		t.Fatalf("reply not printed: %q", text)
	}
	if strings.Contains(text, turn.Cursor) {
		t.Fatalf("cursor printed: %q", text)
	}
	if len(models.requests) != 2 {
		t.Fatalf("requests: got %d", len(models.requests))
	}
	msgs := r.ctrl.Messages()
	if len(msgs) != 3 || msgs[2].Content != "line oneline one\nline two" {
		t.Fatalf("transcript after continue: %+v", msgs)
	}
	if errOut.Len() == 0 {
		t.Fatalf("expected the usage hint on stderr")
	}
}

func TestREPLContinueWithoutExchange(t *testing.T) {
	t.Parallel()

	models := &cannedModels{}
	r, _, errOut := newTestREPL(models)
	r.handle(context.Background(), "/continue")
	if !strings.Contains(errOut.String(), "nothing to continue") {
		t.Fatalf("stderr: %q", errOut.String())
	}
	if len(models.requests) != 0 {
		t.Fatalf("continue without exchange generated")
	}
}

func TestREPLErrorKeepsRunning(t *testing.T) {
	t.Parallel()

	models := &cannedModels{chunks: []string{"part"}, err: errors.New("backend down")}
	r, _, errOut := newTestREPL(models)
	if quit := r.handle(context.Background(), "hi"); quit {
		t.Fatalf("error must not quit")
	}
	if !strings.Contains(errOut.String(), "error: backend down") {
		t.Fatalf("stderr: %q", errOut.String())
	}
	if n := len(r.ctrl.Messages()); n != 2 {
		t.Fatalf("failed reply committed, %d messages", n)
	}
}

func TestREPLSettingsCommands(t *testing.T) {
	t.Parallel()

	r, out, errOut := newTestREPL(&cannedModels{})
	ctx := context.Background()

	r.handle(ctx, "/temp 0.44")
	r.handle(ctx, "/ctx 99999")
	r.handle(ctx, "/system Be brief.")
	r.handle(ctx, "/temp warm")

	s := r.ctrl.Settings()
	if s.Temperature != 0.4 || s.MaxSteps != turn.MaxMaxSteps || s.SystemPrompt != "Be brief." {
		t.Fatalf("settings: %+v", s)
	}
	if !strings.Contains(out.String(), "temperature: 0.4") || !strings.Contains(out.String(), "context length: 32000") {
		t.Fatalf("stdout: %q", out.String())
	}
	if !strings.Contains(errOut.String(), `invalid temperature "warm"`) {
		t.Fatalf("stderr: %q", errOut.String())
	}
}

func TestREPLModelCommands(t *testing.T) {
	t.Parallel()

	models := &cannedModels{chunks: []string{"ok"}}
	r, out, errOut := newTestREPL(models)
	ctx := context.Background()

	r.handle(ctx, "/models")
	if !strings.Contains(out.String(), "openai:gpt | GPT") {
		t.Fatalf("model list: %q", out.String())
	}

	r.pick = func(models []registry.Model, current string) (string, error) {
		if current != "toy" {
			t.Fatalf("current model: %q", current)
		}
		return models[1].ID, nil
	}
	r.handle(ctx, "/models")
	r.handle(ctx, "hi")
	if models.ids[0] != "openai:gpt" {
		t.Fatalf("generator id: %q", models.ids[0])
	}

	r.handle(ctx, "/model custom:thing")
	if !strings.Contains(errOut.String(), "not in the registry") {
		t.Fatalf("stderr: %q", errOut.String())
	}
	if got := r.ctrl.Settings().ModelID; got != "custom:thing" {
		t.Fatalf("model: %q", got)
	}
}

func TestREPLForgetAndHistory(t *testing.T) {
	t.Parallel()

	r, out, _ := newTestREPL(&cannedModels{chunks: []string{"ok"}})
	ctx := context.Background()
	r.handle(ctx, "hi")
	out.Reset()

	r.handle(ctx, "/history")
	if out.String() != "assistant: "+chat.DefaultGreeting+"\nuser: hi\nassistant: ok\n" {
		t.Fatalf("history: %q", out.String())
	}

	out.Reset()
	r.handle(ctx, "/forget")
	if out.String() != "assistant: "+chat.DefaultGreeting+"\n" {
		t.Fatalf("after forget: %q", out.String())
	}
}
