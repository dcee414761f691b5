// Package tokenizer converts between text and model token ids.
package tokenizer

// Tokenizer is the minimal contract the generator needs.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
}

// Specials is implemented by tokenizers that know which ids are control
// tokens. Those ids always end a generation.
type Specials interface {
	SpecialIDs() []int
}

// Vocab is implemented by tokenizers with a fixed vocabulary size.
type Vocab interface {
	VocabSize() int
}

// SpecialIDs returns tok's special ids, or nil when it does not report any.
func SpecialIDs(tok Tokenizer) []int {
	if s, ok := tok.(Specials); ok {
		return s.SpecialIDs()
	}
	return nil
}
