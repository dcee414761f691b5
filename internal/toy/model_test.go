package toy

import (
	"math"
	"slices"
	"testing"
)

func TestForwardMatchesNaive(t *testing.T) {
	t.Parallel()

	vocab, hidden := 8, 6
	m := New(vocab, hidden, 5)
	logits, err := m.ForwardToken(3)
	if err != nil {
		t.Fatal(err)
	}
	for j := range vocab {
		var sum float32
		for i := range hidden {
			sum += m.Emb[3*hidden+i] * m.W[i*vocab+j]
		}
		if math.Abs(float64(logits[j]-sum)) > 1e-4 {
			t.Fatalf("logit %d: got %f, want %f", j, logits[j], sum)
		}
	}
}

func TestForwardDependsOnHistory(t *testing.T) {
	t.Parallel()

	m := New(8, 6, 1)
	first, _ := m.ForwardToken(2)
	again, _ := m.ForwardToken(2)
	if slices.Equal(first, again) {
		t.Fatal("expected the hidden state to carry over between tokens")
	}
	m.Reset()
	afterReset, _ := m.ForwardToken(2)
	if !slices.Equal(first, afterReset) {
		t.Fatal("Reset must restore the initial state")
	}
}

func TestSameSeedSameWeights(t *testing.T) {
	t.Parallel()

	a, b := New(16, 4, 9), New(16, 4, 9)
	if !slices.Equal(a.Emb, b.Emb) || !slices.Equal(a.W, b.W) {
		t.Fatal("weights differ for the same seed")
	}
}

func TestForwardRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	m := New(4, 2, 1)
	if _, err := m.ForwardToken(4); err == nil {
		t.Fatal("expected error for token outside vocabulary")
	}
}
