// Package logits turns model output scores into sampled token ids.
package logits

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"
)

// SamplerConfig configures a Sampler.
type SamplerConfig struct {
	Seed int64
	// Temperature 0 selects greedy decoding; 1 samples the model's native
	// distribution.
	Temperature float64
	// TopK <= 0 keeps the whole vocabulary.
	TopK int
	// TopP outside (0, 1) disables nucleus truncation.
	TopP float64
}

type Sampler struct {
	rng    *rand.Rand
	cfg    SamplerConfig
	greedy bool
	order  []int
	prob   []float64
}

func NewSampler(cfg SamplerConfig) *Sampler {
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		cfg.TopP = 1
	}
	seed := uint64(cfg.Seed)
	return &Sampler{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		cfg:    cfg,
		greedy: cfg.Temperature <= 0 || cfg.TopK == 1,
	}
}

// Sample draws one index from logits. The slice is not modified.
func (s *Sampler) Sample(logits []float32) int {
	if len(logits) == 0 {
		return 0
	}
	if s.greedy {
		return argmax(logits)
	}

	candidates := s.candidates(logits)

	if cap(s.prob) < len(candidates) {
		s.prob = make([]float64, len(candidates))
	}
	prob := s.prob[:len(candidates)]
	maxv := float64(logits[candidates[0]])
	for _, id := range candidates[1:] {
		maxv = max(maxv, float64(logits[id]))
	}
	inv := 1 / s.cfg.Temperature
	var sum float64
	for i, id := range candidates {
		prob[i] = math.Exp((float64(logits[id]) - maxv) * inv)
		sum += prob[i]
	}
	if sum == 0 || math.IsNaN(sum) {
		return argmax(logits)
	}

	n := len(candidates)
	if s.cfg.TopP < 1 {
		var cum float64
		for i := range prob {
			cum += prob[i] / sum
			if cum >= s.cfg.TopP {
				n = i + 1
				break
			}
		}
		sum = 0
		for _, p := range prob[:n] {
			sum += p
		}
	}

	r := s.rng.Float64() * sum
	for i := range n {
		r -= prob[i]
		if r < 0 {
			return candidates[i]
		}
	}
	return candidates[n-1]
}

// candidates returns the ids eligible for sampling. They are sorted by
// descending score whenever truncation applies.
func (s *Sampler) candidates(logits []float32) []int {
	s.order = s.order[:0]
	for i := range logits {
		s.order = append(s.order, i)
	}
	k := s.cfg.TopK
	if (k <= 0 || k >= len(logits)) && s.cfg.TopP >= 1 {
		return s.order
	}
	slices.SortStableFunc(s.order, func(a, b int) int {
		return cmp.Compare(logits[b], logits[a])
	})
	if k > 0 && k < len(s.order) {
		return s.order[:k]
	}
	return s.order
}

func argmax(logits []float32) int {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	return best
}
