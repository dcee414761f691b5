package tokenizer

import "fmt"

// ByteSpecials are the control tokens of ByteTokenizer, in id order.
var ByteSpecials = []string{"<|endoftext|>", "<|im_start|>", "<|im_end|>"}

// ByteTokenizer maps every byte to its own token after a small block of
// ChatML control tokens. It never fails to encode.
type ByteTokenizer struct {
	specials []string
}

func NewByteTokenizer() *ByteTokenizer {
	return &ByteTokenizer{specials: sortLongestFirst(append([]string(nil), ByteSpecials...))}
}

func (t *ByteTokenizer) offset() int { return len(ByteSpecials) }

func (t *ByteTokenizer) VocabSize() int { return t.offset() + 256 }

func (t *ByteTokenizer) SpecialIDs() []int {
	ids := make([]int, len(ByteSpecials))
	for i := range ids {
		ids[i] = i
	}
	return ids
}

func (t *ByteTokenizer) Encode(text string) ([]int, error) {
	ids := make([]int, 0, len(text))
	for _, part := range splitSpecials(text, t.specials) {
		if part.isSpecial {
			ids = append(ids, specialIndex(part.text))
			continue
		}
		for i := 0; i < len(part.text); i++ {
			ids = append(ids, t.offset()+int(part.text[i]))
		}
	}
	return ids, nil
}

func (t *ByteTokenizer) Decode(ids []int) (string, error) {
	b := make([]byte, 0, len(ids))
	for _, id := range ids {
		switch {
		case id < 0 || id >= t.VocabSize():
			return "", fmt.Errorf("token id out of range: %d", id)
		case id < t.offset():
			b = append(b, ByteSpecials[id]...)
		default:
			b = append(b, byte(id-t.offset()))
		}
	}
	return string(b), nil
}

func specialIndex(s string) int {
	for i, sp := range ByteSpecials {
		if sp == s {
			return i
		}
	}
	return -1
}
