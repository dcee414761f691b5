package engine

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/samcharles93/mchat/internal/inference"
	"github.com/samcharles93/mchat/internal/tokenizer"
	"github.com/samcharles93/mchat/internal/toy"
)

// ToyBackend serves the built-in toy model. An empty name pairs it with the
// byte tokenizer; otherwise the name is a tokenizer.json path or directory.
type ToyBackend struct {
	Hidden int
	Seed   int64
	Stops  StopTable
	TopK   int
	TopP   float64
}

const (
	defaultToyHidden = 32
	// byteBias nudges the byte model towards readable text and towards
	// ending its turn after a few dozen tokens.
	byteBias = 4
)

func (b *ToyBackend) Open(_ context.Context, ref Ref) (*Handle, error) {
	var (
		tok   tokenizer.Tokenizer
		vocab int
	)
	if ref.Name == "" {
		bt := tokenizer.NewByteTokenizer()
		tok, vocab = bt, bt.VocabSize()
	} else {
		ht, err := tokenizer.LoadHF(ref.Name)
		if err != nil {
			return nil, fmt.Errorf("toy tokenizer: %w", err)
		}
		tok, vocab = ht, ht.VocabSize()
	}

	hidden := b.Hidden
	if hidden <= 0 {
		hidden = defaultToyHidden
	}
	model := toy.New(vocab, hidden, b.Seed+int64(hashID(ref.ID)))
	stops := inference.BuildStopSet(b.Stops.For(ref.ID), tok)
	if _, ok := tok.(*tokenizer.ByteTokenizer); ok {
		biasByteModel(model, stops)
	}

	return &Handle{
		Generator: &inference.StepGenerator{
			Model:     model,
			Tokenizer: tok,
			Stops:     stops,
			TopK:      b.TopK,
			TopP:      b.TopP,
		},
		Tokenizer: tok,
		Stops:     stops,
	}, nil
}

func biasByteModel(m *toy.Model, stops inference.StopSet) {
	off := len(tokenizer.ByteSpecials)
	for c := ' '; c <= '~'; c++ {
		m.Bias[off+int(c)] = byteBias
	}
	m.Bias[off+'\n'] = byteBias / 2
	for _, id := range stops.IDs() {
		if id < m.Vocab {
			m.Bias[id] = byteBias
		}
	}
}

func hashID(id string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return h.Sum32()
}
