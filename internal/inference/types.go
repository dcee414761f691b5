// Package inference streams text from a loaded model.
package inference

import (
	"context"
	"time"
)

// Request describes one generation.
type Request struct {
	Prompt string
	// MaxSteps bounds the number of sampled tokens and therefore the number
	// of chunks a stream may yield.
	MaxSteps    int
	Temperature float64
	Seed        int64
}

// Stream yields text chunks in order. Next returns io.EOF once the
// generation has ended. Close releases the model and may be called at any
// point, more than once.
type Stream interface {
	Next() (string, error)
	Close() error
}

// Generator starts generations. Every call begins with fresh decoding state.
type Generator interface {
	Generate(ctx context.Context, req Request) (Stream, error)
}

// Model is a token level language model.
type Model interface {
	ForwardToken(id int) ([]float32, error)
	Reset()
}

type Stats struct {
	TokensGenerated int
	Duration        time.Duration
	TPS             float64
}

// StatsReporter is implemented by streams that count what they generated.
type StatsReporter interface {
	Stats() Stats
}
