// Package toy provides a tiny deterministic language model. It exists so the
// chat pipeline runs end to end without model weights.
package toy

import (
	"fmt"
	"math/rand/v2"
)

// Model is an embedding, a decaying hidden state and a projection back to
// vocabulary logits. Weights are derived from the seed.
type Model struct {
	Vocab  int
	Hidden int

	Emb  []float32 // [Vocab x Hidden]
	W    []float32 // [Hidden x Vocab]
	Bias []float32 // [Vocab]

	h []float32
}

// Decay is the share of the previous hidden state kept at each step.
const Decay = 0.5

func New(vocab, hidden int, seed int64) *Model {
	m := &Model{
		Vocab:  vocab,
		Hidden: hidden,
		Emb:    make([]float32, vocab*hidden),
		W:      make([]float32, hidden*vocab),
		Bias:   make([]float32, vocab),
		h:      make([]float32, hidden),
	}
	fill(m.Emb, seed+11)
	fill(m.W, seed+23)
	return m
}

func fill(dst []float32, seed int64) {
	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)*31+7))
	for i := range dst {
		dst[i] = float32(r.Float64()*2 - 1)
	}
}

func (m *Model) VocabSize() int { return m.Vocab }

// Reset clears the hidden state before a new prompt.
func (m *Model) Reset() { clear(m.h) }

// ForwardToken feeds one token and returns fresh logits for the next one.
func (m *Model) ForwardToken(tok int) ([]float32, error) {
	if tok < 0 || tok >= m.Vocab {
		return nil, fmt.Errorf("toy: token %d outside vocabulary of %d", tok, m.Vocab)
	}
	row := m.Emb[tok*m.Hidden : (tok+1)*m.Hidden]
	for i := range m.h {
		m.h[i] = Decay*m.h[i] + row[i]
	}
	logits := make([]float32, m.Vocab)
	copy(logits, m.Bias)
	for i, hv := range m.h {
		w := m.W[i*m.Vocab : (i+1)*m.Vocab]
		for j := range logits {
			logits[j] += hv * w[j]
		}
	}
	return logits, nil
}
