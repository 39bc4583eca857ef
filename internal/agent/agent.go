// Package agent runs the conversation loop: it sends the transcript to the
// model, dispatches tool calls, and folds the results back in until the
// model answers in plain text.
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"shellpilot/internal/chat"
	"shellpilot/internal/history"
	"shellpilot/internal/llm"
	"shellpilot/internal/logging"
)

// Agent owns one conversation. Not safe for concurrent turns; the REPL is
// the only caller.
type Agent struct {
	mu sync.Mutex

	oracle       llm.Oracle
	dispatcher   *Dispatcher
	compressor   *history.Compressor
	counter      *chat.TokenCounter
	stats        *TokenStats
	systemPrompt string
	temperature  float64
	sessionID    string

	messages []chat.Message

	// OnCompression, when set, observes every automatic compression so the
	// REPL can report it.
	OnCompression func(history.Report)
}

// New creates an agent with a fresh transcript seeded by the system prompt.
// stats may be pre-built so the summarizer's usage sink can share it; nil
// allocates a fresh one.
func New(oracle llm.Oracle, dispatcher *Dispatcher, compressor *history.Compressor, counter *chat.TokenCounter, stats *TokenStats, systemPrompt string, temperature float64) *Agent {
	if counter == nil {
		counter = chat.NewTokenCounter()
	}
	if stats == nil {
		stats = &TokenStats{}
	}
	return &Agent{
		oracle:       oracle,
		dispatcher:   dispatcher,
		compressor:   compressor,
		counter:      counter,
		stats:        stats,
		systemPrompt: systemPrompt,
		temperature:  temperature,
		sessionID:    uuid.NewString(),
		messages:     []chat.Message{chat.System(systemPrompt)},
	}
}

// SessionID identifies this conversation in the logs.
func (a *Agent) SessionID() string { return a.sessionID }

// HandleTurn appends the user's input and loops until the model responds
// without tool calls. The final plain-text response is returned to the
// caller and is not appended to the transcript.
func (a *Agent) HandleTurn(ctx context.Context, input string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.messages = append(a.messages, chat.User(input))
	logging.Session("[%s] user turn, transcript %d messages", a.sessionID, len(a.messages))

	for {
		a.compressLocked(ctx)

		resp, err := a.oracle.Chat(ctx, llm.Request{
			Messages:    a.messages,
			Tools:       a.dispatcher.Tools(),
			Temperature: a.temperature,
		})
		if err != nil {
			return "", fmt.Errorf("model call: %w", err)
		}
		a.stats.AddCall(resp.Usage)
		logging.API("[%s] call used %d tokens (%d prompt, %d completion)",
			a.sessionID, resp.Usage.TotalTokens, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

		if len(resp.Message.ToolCalls) == 0 {
			return resp.Message.Content, nil
		}

		a.messages = append(a.messages, resp.Message)
		results := a.dispatcher.Dispatch(ctx, resp.Message.ToolCalls)
		a.messages = append(a.messages, results...)
	}
}

// compressLocked shrinks the transcript when it exceeds the budget. Runs
// before every model call. Caller holds the mutex.
func (a *Agent) compressLocked(ctx context.Context) {
	compacted, report := a.compressor.CompressIfNeeded(ctx, a.messages)
	if !report.Compressed {
		return
	}
	a.messages = compacted
	a.stats.AddCompression()
	logging.Context("[%s] compressed: %d -> %d messages, %d -> %d tokens",
		a.sessionID, report.MessagesBefore, report.MessagesAfter, report.TokensBefore, report.TokensAfter)
	if a.OnCompression != nil {
		a.OnCompression(report)
	}
}

// Compress forces a compression regardless of the budget. The compressor
// still refuses when there is too little history to be worth summarizing.
func (a *Agent) Compress(ctx context.Context) history.Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.messages) <= 1 {
		return history.Report{Refusal: "nothing to compress"}
	}
	compacted, report := a.compressor.Compress(ctx, a.messages)
	if report.Compressed {
		a.messages = compacted
		a.stats.AddCompression()
		logging.Context("[%s] manual compression: %d -> %d messages",
			a.sessionID, report.MessagesBefore, report.MessagesAfter)
	}
	return report
}

// Reset drops the conversation and the stats, keeping the system prompt.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = []chat.Message{chat.System(a.systemPrompt)}
	a.stats.Reset()
	logging.Session("[%s] transcript reset", a.sessionID)
}

// Stats returns the session accounting.
func (a *Agent) Stats() StatsSnapshot {
	return a.stats.Snapshot()
}

// TranscriptInfo reports the transcript length and its estimated token
// footprint.
func (a *Agent) TranscriptInfo() (messages, estTokens int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.messages), a.counter.CountMessages(a.messages)
}
