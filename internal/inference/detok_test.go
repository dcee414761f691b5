package inference

import (
	"testing"

	"github.com/samcharles93/mchat/internal/tokenizer"
)

func TestCompletePrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 3},
		{"é", 2},
		{"a\xc3", 1},
		{"a\xe2\x82", 1},
		{"€", 3},
		{"\xf0\x9f\x98", 0},
		{"a\xff", 2},
		{"\xa9", 1},
	}
	for _, tc := range tests {
		if got := completePrefix(tc.in); got != tc.want {
			t.Errorf("completePrefix(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestDetokenizerConcatenation(t *testing.T) {
	t.Parallel()

	tok := tokenizer.NewByteTokenizer()
	text := "naïve 🙂 café"
	ids, _ := tok.Encode(text)
	d := &detokenizer{tok: tok}
	var got string
	for _, id := range ids {
		chunk, err := d.Push(id)
		if err != nil {
			t.Fatal(err)
		}
		got += chunk
	}
	got += d.Flush()
	if got != text {
		t.Fatalf("got %q, want %q", got, text)
	}
}
