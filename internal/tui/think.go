package tui

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// splitThinking separates <think>...</think> sections from a reply. An
// unclosed section runs to the end of the text. Tags match case
// insensitively.
func splitThinking(s string) (thinking, answer string) {
	lower := strings.ToLower(s)
	var th, ans strings.Builder
	for i := 0; i < len(s); {
		start := strings.Index(lower[i:], thinkOpen)
		if start < 0 {
			ans.WriteString(s[i:])
			break
		}
		ans.WriteString(s[i : i+start])
		body := i + start + len(thinkOpen)
		end := strings.Index(lower[body:], thinkClose)
		if end < 0 {
			th.WriteString(s[body:])
			break
		}
		th.WriteString(s[body : body+end])
		i = body + end + len(thinkClose)
	}
	return strings.TrimSpace(th.String()), strings.TrimLeft(ans.String(), "\n")
}
