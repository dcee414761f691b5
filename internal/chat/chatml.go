package chat

import "strings"

const (
	StartMarker = "<|im_start|>"
	EndMarker   = "<|im_end|>"
)

// Format renders msgs in ChatML. Marker sequences inside content are not
// escaped. With addGenerationPrompt an open assistant header is appended.
func Format(msgs []Message, addGenerationPrompt bool) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(StartMarker)
		b.WriteString(string(m.Role))
		b.WriteByte('\n')
		b.WriteString(m.Content)
		b.WriteString(EndMarker)
		b.WriteByte('\n')
	}
	if addGenerationPrompt {
		b.WriteString(StartMarker)
		b.WriteString(string(RoleAssistant))
		b.WriteByte('\n')
	}
	return b.String()
}

// TrimForGeneration removes trailing newlines and end markers so generation
// resumes right after the last written text.
func TrimForGeneration(prompt string) string {
	for {
		trimmed := strings.TrimRight(prompt, "\n")
		trimmed = strings.TrimSuffix(trimmed, EndMarker)
		if trimmed == prompt {
			return trimmed
		}
		prompt = trimmed
	}
}

// Parse splits a ChatML string back into messages. The second result is true
// when the text ends with an open section, whose partial content is returned
// as the last message.
func Parse(s string) ([]Message, bool) {
	var msgs []Message
	open := false
	for _, block := range strings.Split(s, StartMarker)[1:] {
		header, body, _ := strings.Cut(block, "\n")
		content, closed := strings.CutSuffix(strings.TrimSuffix(body, "\n"), EndMarker)
		if !closed {
			content = body
		}
		msgs = append(msgs, Message{Role: Role(header), Content: content})
		open = !closed
	}
	return msgs, open
}
