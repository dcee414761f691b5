package chat

import (
	"slices"
	"testing"
)

func TestFormat(t *testing.T) {
	t.Parallel()

	got := Format([]Message{System("be brief"), User("What is 2+2?")}, true)
	want := "<|im_start|>system\nbe brief<|im_end|>\n" +
		"<|im_start|>user\nWhat is 2+2?<|im_end|>\n" +
		"<|im_start|>assistant\n"
	if got != want {
		t.Fatalf("Format mismatch:\n got %q\nwant %q", got, want)
	}

	if got := Format(nil, false); got != "" {
		t.Fatalf("Format(nil) = %q, want empty", got)
	}
}

func TestTrimForGeneration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "generation prompt", in: "<|im_start|>assistant\n", want: "<|im_start|>assistant"},
		{name: "closed section", in: "<|im_start|>assistant\nline1<|im_end|>\n", want: "<|im_start|>assistant\nline1"},
		{name: "content ending in marker letters", in: "the end<|im_end|>\n", want: "the end"},
		{name: "repeated", in: "x<|im_end|>\n\n<|im_end|>\n", want: "x"},
		{name: "nothing to trim", in: "plain", want: "plain"},
		{name: "empty", in: "", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := TrimForGeneration(tc.in); got != tc.want {
				t.Fatalf("TrimForGeneration(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	tests := [][]Message{
		{System("sys"), User("hi"), Assistant("hello\nthere")},
		{User("")},
		{Assistant("trailing newline\n"), User("a|b")},
	}
	for _, msgs := range tests {
		for _, gen := range []bool{false, true} {
			parsed, open := Parse(Format(msgs, gen))
			if open != gen {
				t.Fatalf("open = %v, want %v", open, gen)
			}
			if gen {
				last := parsed[len(parsed)-1]
				if last.Role != RoleAssistant || last.Content != "" {
					t.Fatalf("unexpected open section %+v", last)
				}
				parsed = parsed[:len(parsed)-1]
			}
			if !slices.Equal(parsed, msgs) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", parsed, msgs)
			}
		}
	}
}

func TestParseTrimmedContinuation(t *testing.T) {
	t.Parallel()

	prompt := TrimForGeneration(Format([]Message{System("s"), User("hi"), Assistant("line1")}, false))
	msgs, open := Parse(prompt)
	if !open {
		t.Fatal("expected trimmed continuation to end in an open section")
	}
	if got := msgs[len(msgs)-1]; got != Assistant("line1") {
		t.Fatalf("last section = %+v", got)
	}
}
