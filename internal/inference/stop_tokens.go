package inference

import (
	"maps"
	"slices"

	"github.com/samcharles93/mchat/internal/tokenizer"
)

// DefaultStopIDs end generation for every model regardless of tokenizer.
var DefaultStopIDs = []int{0, 1, 2, 32000, 32001}

// StopSet is an immutable set of token ids that end a generation.
type StopSet struct {
	ids map[int]struct{}
}

// BuildStopSet unions literal ids with the special ids reported by tok.
// A nil literal selects DefaultStopIDs.
func BuildStopSet(literal []int, tok tokenizer.Tokenizer) StopSet {
	if literal == nil {
		literal = DefaultStopIDs
	}
	ids := make(map[int]struct{}, len(literal))
	for _, id := range literal {
		ids[id] = struct{}{}
	}
	if tok != nil {
		for _, id := range tokenizer.SpecialIDs(tok) {
			ids[id] = struct{}{}
		}
	}
	return StopSet{ids: ids}
}

func (s StopSet) Contains(id int) bool {
	_, ok := s.ids[id]
	return ok
}

// IDs returns the members in ascending order.
func (s StopSet) IDs() []int {
	return slices.Sorted(maps.Keys(s.ids))
}

func (s StopSet) Len() int { return len(s.ids) }
