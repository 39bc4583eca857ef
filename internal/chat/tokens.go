package chat

import "unicode/utf8"

// charsPerToken is the rune-to-token ratio used for estimation. Modern
// tokenizers average roughly four characters per token on English text.
const charsPerToken = 4

const (
	// perMessageOverhead covers the framing tokens the chat format wraps
	// around every message.
	perMessageOverhead = 4
	// transcriptPrimer covers the reply primer appended after the
	// transcript.
	transcriptPrimer = 2
)

// TokenCounter estimates the token cost of messages for budget decisions.
// The estimate is deterministic and internally consistent; it does not try
// to match the provider's tokenizer exactly.
type TokenCounter struct{}

// NewTokenCounter creates a token counter.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

// CountString estimates the token length of a string.
func (c *TokenCounter) CountString(s string) int {
	if s == "" {
		return 0
	}
	runes := utf8.RuneCountInString(s)
	return (runes + charsPerToken - 1) / charsPerToken
}

// CountMessage estimates a single message: fixed overhead plus role,
// content, every tool call's name and raw arguments, and the name field
// carried by tool result messages.
func (c *TokenCounter) CountMessage(m Message) int {
	n := perMessageOverhead
	n += c.CountString(m.Role)
	n += c.CountString(m.Content)
	for _, tc := range m.ToolCalls {
		n += c.CountString(tc.Name)
		n += c.CountString(tc.Arguments)
	}
	n += c.CountString(m.Name)
	return n
}

// CountMessages estimates an ordered transcript.
func (c *TokenCounter) CountMessages(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += c.CountMessage(m)
	}
	return total + transcriptPrimer
}
