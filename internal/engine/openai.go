package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/samcharles93/mchat/internal/chat"
	"github.com/samcharles93/mchat/internal/inference"
)

// RemoteStops is the fixed text stop set sent to completion servers.
var RemoteStops = []string{chat.EndMarker, chat.StartMarker, "<|endoftext|>"}

// OpenAIConfig points at an OpenAI compatible completions server such as
// llama.cpp, Ollama or vLLM.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// OpenAIBackend streams raw prompt completions from a remote server.
type OpenAIBackend struct {
	client *openai.Client
}

func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		c.HTTPClient = cfg.HTTPClient
	}
	return &OpenAIBackend{client: openai.NewClientWithConfig(c)}
}

func (b *OpenAIBackend) Open(_ context.Context, ref Ref) (*Handle, error) {
	if ref.Name == "" {
		return nil, errors.New("remote model name is required")
	}
	return &Handle{Generator: &remoteGenerator{client: b.client, model: ref.Name}}, nil
}

type remoteGenerator struct {
	client *openai.Client
	model  string
}

// minTemperature stands in for zero, which the client would omit.
const minTemperature = 1e-6

func (g *remoteGenerator) Generate(ctx context.Context, req inference.Request) (inference.Stream, error) {
	if req.MaxSteps <= 0 {
		return nil, fmt.Errorf("max steps must be positive, got %d", req.MaxSteps)
	}
	stream, err := g.client.CreateCompletionStream(ctx, openai.CompletionRequest{
		Model:       g.model,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxSteps,
		Temperature: float32(max(req.Temperature, minTemperature)),
		Stop:        RemoteStops,
	})
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	return &remoteStream{stream: stream, max: req.MaxSteps}, nil
}

type remoteStream struct {
	stream *openai.CompletionStream
	max    int
	chunks int
	done   bool
}

func (s *remoteStream) Next() (string, error) {
	for !s.done {
		if s.chunks >= s.max {
			s.Close()
			break
		}
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.Close()
			break
		}
		if err != nil {
			s.Close()
			return "", fmt.Errorf("completion stream: %w", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Text == "" {
			continue
		}
		s.chunks++
		return resp.Choices[0].Text, nil
	}
	return "", io.EOF
}

func (s *remoteStream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	s.stream.Close()
	return nil
}
