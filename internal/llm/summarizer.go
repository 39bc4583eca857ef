package llm

import (
	"context"

	"shellpilot/internal/chat"
)

// Summarization uses low temperature and a hard completion cap: the point
// is a compact, faithful digest, not prose.
const (
	summaryTemperature = 0.3
	summaryMaxTokens   = 1000
)

// Summarizer issues the one-shot summarization call used by transcript
// compression. It is independent of the live transcript. Usage flows to
// the sink so compression costs are accounted like any other call.
type Summarizer struct {
	oracle Oracle
	system string
	sink   func(Usage)
}

// NewSummarizer creates a summarizer with the given summarization
// instruction. sink may be nil.
func NewSummarizer(oracle Oracle, systemPrompt string, sink func(Usage)) *Summarizer {
	return &Summarizer{oracle: oracle, system: systemPrompt, sink: sink}
}

// Summarize condenses a transcription of older messages.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	resp, err := s.oracle.Chat(ctx, Request{
		Messages: []chat.Message{
			chat.System(s.system),
			chat.User("Summarize the following conversation history:\n\n" + transcript),
		},
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		return "", err
	}
	if s.sink != nil {
		s.sink(resp.Usage)
	}
	return resp.Message.Content, nil
}
