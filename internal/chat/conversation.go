package chat

import "slices"

// DefaultGreeting opens every conversation.
const DefaultGreeting = "How may I help you?"

// Conversation is an ordered transcript that always starts with a synthetic
// assistant greeting. It is never empty.
type Conversation struct {
	greeting string
	messages []Message
}

// NewConversation returns a conversation holding only the greeting. An empty
// greeting selects DefaultGreeting.
func NewConversation(greeting string) *Conversation {
	if greeting == "" {
		greeting = DefaultGreeting
	}
	c := &Conversation{greeting: greeting}
	c.Reset()
	return c
}

// Greeting returns the text of the opening assistant message.
func (c *Conversation) Greeting() string { return c.greeting }

// Reset drops everything except the greeting.
func (c *Conversation) Reset() {
	c.messages = []Message{Assistant(c.greeting)}
}

// Len returns the number of messages including the greeting.
func (c *Conversation) Len() int { return len(c.messages) }

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []Message { return slices.Clone(c.messages) }

// Append adds m to the end of the transcript.
func (c *Conversation) Append(m Message) { c.messages = append(c.messages, m) }

// Memory returns the messages strictly between the greeting and the last
// message. It is the history replayed ahead of a new user message.
func (c *Conversation) Memory() []Message {
	if len(c.messages) <= 2 {
		return nil
	}
	return slices.Clone(c.messages[1 : len(c.messages)-1])
}

// LastUser returns the content of the most recent user message.
func (c *Conversation) LastUser() (string, bool) {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == RoleUser {
			return c.messages[i].Content, true
		}
	}
	return "", false
}

// LastResponse returns the most recent assistant message that is not the
// greeting.
func (c *Conversation) LastResponse() (string, bool) {
	if i := c.lastResponseIndex(); i >= 0 {
		return c.messages[i].Content, true
	}
	return "", false
}

// RemoveLastResponse deletes the most recent non-greeting assistant message
// and reports whether one was found.
func (c *Conversation) RemoveLastResponse() bool {
	i := c.lastResponseIndex()
	if i < 0 {
		return false
	}
	c.messages = slices.Delete(c.messages, i, i+1)
	return true
}

func (c *Conversation) lastResponseIndex() int {
	for i := len(c.messages) - 1; i > 0; i-- {
		if c.messages[i].Role == RoleAssistant {
			return i
		}
	}
	return -1
}
