package tui

import "testing"

func TestSplitThinking(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, in, thinking, answer string
	}{
		{"plain", "Hello", "", "Hello"},
		{"closed", "<think>plan</think>\nHello", "plan", "Hello"},
		{"unclosed", "<think>still going", "still going", ""},
		{"mixed case", "A<THINK>r</Think>B", "r", "AB"},
		{"two sections", "<think>a</think>x<think>b</think>y", "ab", "xy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			th, ans := splitThinking(tt.in)
			if th != tt.thinking || ans != tt.answer {
				t.Fatalf("splitThinking(%q) = %q, %q", tt.in, th, ans)
			}
		})
	}
}
