package inference

import (
	"strings"
	"unicode/utf8"
)

type decoder interface {
	Decode(ids []int) (string, error)
}

// detokenizer turns a growing id sequence into text increments. It decodes
// the whole sequence each time and holds back a trailing incomplete UTF-8
// sequence until later tokens complete it.
type detokenizer struct {
	tok     decoder
	ids     []int
	text    string
	emitted int
}

func (d *detokenizer) Push(id int) (string, error) {
	d.ids = append(d.ids, id)
	text, err := d.tok.Decode(d.ids)
	if err != nil {
		return "", err
	}
	d.text = text
	end := completePrefix(text)
	if end <= d.emitted {
		return "", nil
	}
	out := text[d.emitted:end]
	d.emitted = end
	return strings.ToValidUTF8(out, string(utf8.RuneError)), nil
}

// Flush returns whatever was held back, with invalid bytes replaced.
func (d *detokenizer) Flush() string {
	if d.emitted >= len(d.text) {
		return ""
	}
	out := d.text[d.emitted:]
	d.emitted = len(d.text)
	return strings.ToValidUTF8(out, string(utf8.RuneError))
}

// completePrefix returns the length of s without a trailing incomplete rune.
func completePrefix(s string) int {
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if utf8.RuneStart(s[i]) {
			if utf8.FullRuneInString(s[i:]) {
				return len(s)
			}
			return i
		}
	}
	return len(s)
}
