package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/samcharles93/mchat/internal/logits"
	"github.com/samcharles93/mchat/internal/tokenizer"
)

// StepGenerator samples tokens one at a time from a local Model. Only one
// stream may use the model at a time; Generate waits until the previous
// stream is closed or exhausted, or until its context is done.
type StepGenerator struct {
	Model     Model
	Tokenizer tokenizer.Tokenizer
	Stops     StopSet

	// Optional sampling truncation applied on top of the request temperature.
	TopK int
	TopP float64

	once sync.Once
	sem  *semaphore.Weighted
}

func (g *StepGenerator) lock(ctx context.Context) error {
	g.once.Do(func() { g.sem = semaphore.NewWeighted(1) })
	return g.sem.Acquire(ctx, 1)
}

func (g *StepGenerator) unlock() { g.sem.Release(1) }

func (g *StepGenerator) Generate(ctx context.Context, req Request) (Stream, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.MaxSteps <= 0 {
		return nil, fmt.Errorf("max steps must be positive, got %d", req.MaxSteps)
	}

	if err := g.lock(ctx); err != nil {
		return nil, fmt.Errorf("waiting for model: %w", err)
	}
	ids, err := safeEncode(g.Tokenizer, req.Prompt)
	if err != nil {
		g.unlock()
		return nil, fmt.Errorf("encode prompt: %w", err)
	}
	if len(ids) == 0 {
		g.unlock()
		return nil, errors.New("prompt encodes to no tokens")
	}
	if err := safeReset(g.Model); err != nil {
		g.unlock()
		return nil, err
	}

	return &stepStream{
		ctx:    ctx,
		gen:    g,
		prompt: ids,
		sampler: logits.NewSampler(logits.SamplerConfig{
			Seed:        req.Seed,
			Temperature: req.Temperature,
			TopK:        g.TopK,
			TopP:        g.TopP,
		}),
		detok:    &detokenizer{tok: g.Tokenizer},
		maxSteps: req.MaxSteps,
		pending:  -1,
		start:    time.Now(),
	}, nil
}

type stepStream struct {
	ctx      context.Context
	gen      *StepGenerator
	prompt   []int
	sampler  *logits.Sampler
	detok    *detokenizer
	maxSteps int

	logits  []float32
	pending int
	steps   int
	chunks  int
	done    bool

	release sync.Once
	start   time.Time
	stats   Stats
}

func (s *stepStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		if err := s.ctx.Err(); err != nil {
			s.finish()
			return "", err
		}
		if s.steps >= s.maxSteps {
			return s.drain()
		}
		if err := s.advance(); err != nil {
			s.finish()
			return "", err
		}

		next := s.sampler.Sample(s.logits)
		s.steps++
		if s.gen.Stops.Contains(next) {
			return s.drain()
		}
		s.pending = next
		s.stats.TokensGenerated++

		chunk, err := s.detok.Push(next)
		if err != nil {
			s.finish()
			return "", fmt.Errorf("decode: %w", err)
		}
		if chunk != "" {
			s.chunks++
			return chunk, nil
		}
	}
}

// advance feeds the prompt on the first step and the previously sampled
// token afterwards.
func (s *stepStream) advance() error {
	if s.logits == nil {
		for _, id := range s.prompt {
			out, err := safeForward(s.gen.Model, id)
			if err != nil {
				return fmt.Errorf("prefill: %w", err)
			}
			s.logits = out
		}
		return nil
	}
	out, err := safeForward(s.gen.Model, s.pending)
	if err != nil {
		return fmt.Errorf("generation step %d: %w", s.steps, err)
	}
	s.logits = out
	return nil
}

// drain ends the stream, returning held back bytes when the chunk budget
// still allows one more chunk.
func (s *stepStream) drain() (string, error) {
	s.finish()
	rest := s.detok.Flush()
	if rest == "" || s.chunks >= s.maxSteps {
		return "", io.EOF
	}
	s.chunks++
	return rest, nil
}

func (s *stepStream) finish() {
	s.done = true
	s.release.Do(func() {
		s.stats.Duration = time.Since(s.start)
		if secs := s.stats.Duration.Seconds(); secs > 0 {
			s.stats.TPS = float64(s.stats.TokensGenerated) / secs
		}
		s.gen.unlock()
	})
}

func (s *stepStream) Close() error {
	s.finish()
	return nil
}

func (s *stepStream) Stats() Stats { return s.stats }

func safeReset(m Model) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Reset: %v", rec)
		}
	}()
	m.Reset()
	return nil
}

func safeEncode(tok tokenizer.Tokenizer, prompt string) (ids []int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Encode: %v", rec)
		}
	}()
	return tok.Encode(prompt)
}

func safeForward(m Model, id int) (out []float32, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in ForwardToken: %v", rec)
		}
	}()
	return m.ForwardToken(id)
}
