package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"

	"github.com/samcharles93/mchat/internal/inference"
)

type fakeBackend struct {
	opened []Ref
	err    error
}

func (f *fakeBackend) Open(_ context.Context, ref Ref) (*Handle, error) {
	f.opened = append(f.opened, ref)
	if f.err != nil {
		return nil, f.err
	}
	return &Handle{}, nil
}

func TestMuxParse(t *testing.T) {
	t.Parallel()

	m := NewMux("openai")
	m.Register("toy", &fakeBackend{})
	m.Register("openai", &fakeBackend{})

	tests := []struct {
		id   string
		want Ref
	}{
		{"toy", Ref{ID: "toy", Scheme: "toy"}},
		{"toy:/tmp/tok.json", Ref{ID: "toy:/tmp/tok.json", Scheme: "toy", Name: "/tmp/tok.json"}},
		{"openai:qwen2.5", Ref{ID: "openai:qwen2.5", Scheme: "openai", Name: "qwen2.5"}},
		{"llama3:8b", Ref{ID: "llama3:8b", Scheme: "openai", Name: "llama3:8b"}},
		{"mlx-community/Nous-Hermes-2", Ref{ID: "mlx-community/Nous-Hermes-2", Scheme: "openai", Name: "mlx-community/Nous-Hermes-2"}},
	}
	for _, tc := range tests {
		if got := m.Parse(tc.id); got != tc.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tc.id, got, tc.want)
		}
	}
	if got := m.Schemes(); !slices.Equal(got, []string{"openai", "toy"}) {
		t.Fatalf("Schemes = %v", got)
	}
}

func TestMuxLoad(t *testing.T) {
	t.Parallel()

	toyB := &fakeBackend{}
	m := NewMux("remote")
	m.Register("toy", toyB)

	h, err := m.Load(context.Background(), "toy")
	if err != nil {
		t.Fatal(err)
	}
	if h.ID != "toy" || len(toyB.opened) != 1 {
		t.Fatalf("unexpected load result %+v, opened %v", h, toyB.opened)
	}
	_, err = m.Load(context.Background(), "anything")
	if !errors.Is(err, ErrUnknownScheme) {
		t.Fatalf("expected ErrUnknownScheme, got %v", err)
	}
	if !strings.Contains(err.Error(), "(known: toy)") {
		t.Fatalf("error does not list known schemes: %v", err)
	}
	if _, err := m.Load(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty identifier")
	}
}

func TestStopTable(t *testing.T) {
	t.Parallel()

	table := StopTable{"default": {1}, "special": {5, 6}}
	if got := table.For("special"); !slices.Equal(got, []int{5, 6}) {
		t.Fatalf("For(special) = %v", got)
	}
	if got := table.For("other"); !slices.Equal(got, []int{1}) {
		t.Fatalf("For(other) = %v", got)
	}
	if got := StopTable(nil).For("x"); got != nil {
		t.Fatalf("nil table = %v", got)
	}
}

type countingLoader struct {
	loads atomic.Int32
	fail  map[string]error
	gate  chan struct{}
}

func (l *countingLoader) Load(_ context.Context, id string) (*Handle, error) {
	l.loads.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	if err := l.fail[id]; err != nil {
		return nil, err
	}
	return &Handle{ID: id}, nil
}

func TestCacheMemoizes(t *testing.T) {
	t.Parallel()

	l := &countingLoader{gate: make(chan struct{})}
	c := NewCache(l, nil)

	var wg sync.WaitGroup
	handles := make([]*Handle, 8)
	for i := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := c.Get(context.Background(), "toy")
			if err != nil {
				t.Errorf("Get: %v", err)
			}
			handles[i] = h
		}()
	}
	close(l.gate)
	wg.Wait()

	if n := l.loads.Load(); n != 1 {
		t.Fatalf("loads = %d, want 1", n)
	}
	for _, h := range handles {
		if h != handles[0] {
			t.Fatal("callers received different handles")
		}
	}

	if _, err := c.Get(context.Background(), "other"); err != nil {
		t.Fatal(err)
	}
	if n := l.loads.Load(); n != 2 {
		t.Fatalf("switching models should load once more, loads = %d", n)
	}
	if got := c.Loaded(); !slices.Equal(got, []string{"other", "toy"}) {
		t.Fatalf("Loaded = %v", got)
	}
}

func TestCacheForgetsFailures(t *testing.T) {
	t.Parallel()

	l := &countingLoader{fail: map[string]error{"bad": errors.New("no such model")}}
	c := NewCache(l, nil)
	for range 2 {
		if _, err := c.Get(context.Background(), "bad"); err == nil {
			t.Fatal("expected load error")
		}
	}
	if n := l.loads.Load(); n != 2 {
		t.Fatalf("failed loads must not be cached, loads = %d", n)
	}
}

func TestCacheCloseJoinsErrors(t *testing.T) {
	t.Parallel()

	closed := 0
	loader := loaderFunc(func(_ context.Context, id string) (*Handle, error) {
		return &Handle{close: func() error {
			closed++
			return fmt.Errorf("close %s", id)
		}}, nil
	})
	c := NewCache(loader, nil)
	_, _ = c.Get(context.Background(), "a")
	_, _ = c.Get(context.Background(), "b")
	err := c.Close()
	if closed != 2 || err == nil || !strings.Contains(err.Error(), "close a") || !strings.Contains(err.Error(), "close b") {
		t.Fatalf("closed = %d, err = %v", closed, err)
	}
	if len(c.Loaded()) != 0 {
		t.Fatal("Close must empty the cache")
	}
}

type loaderFunc func(ctx context.Context, id string) (*Handle, error)

func (f loaderFunc) Load(ctx context.Context, id string) (*Handle, error) { return f(ctx, id) }

func TestToyBackendGenerates(t *testing.T) {
	t.Parallel()

	b := &ToyBackend{Seed: 3}
	h, err := b.Open(context.Background(), Ref{ID: "toy", Scheme: "toy"})
	if err != nil {
		t.Fatal(err)
	}
	if !h.Stops.Contains(2) || !h.Stops.Contains(32000) {
		t.Fatalf("stop set missing defaults: %v", h.Stops.IDs())
	}
	s, err := h.Generator.Generate(context.Background(), inference.Request{
		Prompt:      "<|im_start|>user\nhi<|im_end|>\n<|im_start|>assistant",
		MaxSteps:    64,
		Temperature: 1,
		Seed:        1,
	})
	if err != nil {
		t.Fatal(err)
	}
	text, err := readAll(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(text) > 64*4 {
		t.Fatalf("generated %d bytes from 64 steps", len(text))
	}
}

func TestOpenAIBackendStreams(t *testing.T) {
	t.Parallel()

	var got struct {
		Model     string   `json:"model"`
		Prompt    string   `json:"prompt"`
		MaxTokens int      `json:"max_tokens"`
		Stop      []string `json:"stop"`
		Stream    bool     `json:"stream"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/completions" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, text := range []string{"Hel", "", "lo", "!"} {
			fmt.Fprintf(w, "data: {\"object\":\"text_completion\",\"choices\":[{\"index\":0,\"text\":%q}]}\n\n", text)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	b := NewOpenAIBackend(OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "local"})
	h, err := b.Open(context.Background(), Ref{ID: "openai:tiny", Scheme: "openai", Name: "tiny"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		maxSteps int
		want     string
	}{
		{maxSteps: 10, want: "Hello!"},
		{maxSteps: 2, want: "Hello"},
	}
	for _, tc := range tests {
		s, err := h.Generator.Generate(context.Background(), inference.Request{Prompt: "p", MaxSteps: tc.maxSteps})
		if err != nil {
			t.Fatal(err)
		}
		text, err := readAll(s)
		if err != nil {
			t.Fatal(err)
		}
		if text != tc.want {
			t.Fatalf("max %d: text = %q, want %q", tc.maxSteps, text, tc.want)
		}
	}
	if got.Model != "tiny" || got.Prompt != "p" || !got.Stream || !slices.Equal(got.Stop, RemoteStops) {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestOpenAIBackendRequiresName(t *testing.T) {
	t.Parallel()

	if _, err := NewOpenAIBackend(OpenAIConfig{}).Open(context.Background(), Ref{Scheme: "openai"}); err == nil {
		t.Fatal("expected error without a model name")
	}
}

// readAll drains s and closes it.
func readAll(s inference.Stream) (string, error) {
	defer s.Close()
	var out strings.Builder
	for {
		chunk, err := s.Next()
		if errors.Is(err, io.EOF) {
			return out.String(), nil
		}
		if err != nil {
			return out.String(), err
		}
		out.WriteString(chunk)
	}
}
