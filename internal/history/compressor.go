// Package history compresses long transcripts by summarizing older
// messages while keeping every assistant tool-call group paired with its
// tool results.
package history

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"shellpilot/internal/chat"
	"shellpilot/internal/logging"
)

// failurePlaceholder stands in for the summary when the oracle call fails.
// Compression still proceeds so a broken summarizer cannot wedge a session
// at the context ceiling.
const failurePlaceholder = "(earlier conversation was compressed; some context may be lost)"

const (
	// Manual compression refuses below these: the summary risks being
	// larger than the material it replaces.
	minMessagesWorth = 5
	minTokensWorth   = 500

	// Forced compression on a short transcript never keeps fewer than
	// this many recent messages.
	minForcedKeep = 3
)

// Summarizer produces a summary for a transcription of older messages.
// The call is independent of the live transcript.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// Config bounds one session's transcript. Immutable for the session.
type Config struct {
	MaxContextTokens   int
	KeepRecentMessages int
}

// Report describes one compression attempt, for display and accounting.
type Report struct {
	Compressed     bool
	Refusal        string // set when not compressed
	MessagesBefore int
	MessagesAfter  int
	TokensBefore   int
	TokensAfter    int
}

// Compressor rewrites transcripts that grow past the token ceiling.
// Compression builds a new transcript; the input slice is never mutated.
type Compressor struct {
	cfg        Config
	counter    *chat.TokenCounter
	summarizer Summarizer

	mu           sync.Mutex
	compressions int
}

// NewCompressor creates a compressor. counter may be shared with other
// components so budget decisions and displays agree.
func NewCompressor(cfg Config, counter *chat.TokenCounter, summarizer Summarizer) *Compressor {
	if counter == nil {
		counter = chat.NewTokenCounter()
	}
	return &Compressor{cfg: cfg, counter: counter, summarizer: summarizer}
}

// Compressions returns how many compressions this session has performed.
func (c *Compressor) Compressions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compressions
}

// CompressIfNeeded is the automatic trigger: when the transcript estimate
// exceeds the ceiling it compresses with force, guaranteeing progress even
// against the worth-it thresholds. Under budget it returns the transcript
// unchanged.
func (c *Compressor) CompressIfNeeded(ctx context.Context, messages []chat.Message) ([]chat.Message, Report) {
	tokens := c.counter.CountMessages(messages)
	if tokens <= c.cfg.MaxContextTokens {
		return messages, Report{
			Refusal:        "under budget",
			MessagesBefore: len(messages),
			MessagesAfter:  len(messages),
			TokensBefore:   tokens,
			TokensAfter:    tokens,
		}
	}
	logging.Context("transcript over budget (%d > %d tokens), compressing", tokens, c.cfg.MaxContextTokens)
	return c.compress(ctx, messages, true)
}

// Compress is the manual trigger: it respects the worth-it thresholds and
// refuses gracefully, reporting why.
func (c *Compressor) Compress(ctx context.Context, messages []chat.Message) ([]chat.Message, Report) {
	return c.compress(ctx, messages, false)
}

func (c *Compressor) compress(ctx context.Context, messages []chat.Message, force bool) ([]chat.Message, Report) {
	report := Report{
		MessagesBefore: len(messages),
		MessagesAfter:  len(messages),
		TokensBefore:   c.counter.CountMessages(messages),
	}
	report.TokensAfter = report.TokensBefore

	var system, body []chat.Message
	for _, m := range messages {
		if m.Role == chat.RoleSystem {
			system = append(system, m)
		} else {
			body = append(body, m)
		}
	}

	var old, recent []chat.Message
	if len(body) <= c.cfg.KeepRecentMessages {
		if !force {
			report.Refusal = fmt.Sprintf("only %d non-system messages, nothing to compress", len(body))
			return messages, report
		}
		// Over budget with a short transcript: lower the retention floor
		// instead of giving up.
		adjusted := len(body) / 2
		if adjusted < minForcedKeep {
			adjusted = minForcedKeep
		}
		logging.Context("short transcript, keeping %d of %d messages", adjusted, len(body))
		old, recent = splitSafe(body, adjusted)
	} else {
		old, recent = splitSafe(body, c.cfg.KeepRecentMessages)
	}

	if !force {
		if len(old) < minMessagesWorth {
			report.Refusal = fmt.Sprintf("only %d messages would be summarized, need at least %d", len(old), minMessagesWorth)
			return messages, report
		}
		if oldTokens := c.counter.CountMessages(old); oldTokens < minTokensWorth {
			report.Refusal = fmt.Sprintf("only %d tokens would be summarized, below the %d-token floor", oldTokens, minTokensWorth)
			return messages, report
		}
	}

	summary, err := c.summarizer.Summarize(ctx, Transcribe(old))
	if err != nil || strings.TrimSpace(summary) == "" {
		if err != nil {
			logging.Context("summarization failed, using placeholder: %v", err)
		}
		summary = failurePlaceholder
	}

	compressed := make([]chat.Message, 0, len(system)+1+len(recent))
	compressed = append(compressed, system...)
	compressed = append(compressed, chat.User(
		"[Conversation summary]\n"+summary+"\n[End of summary; recent messages follow]"))
	compressed = append(compressed, recent...)

	c.mu.Lock()
	c.compressions++
	c.mu.Unlock()

	report.Compressed = true
	report.MessagesAfter = len(compressed)
	report.TokensAfter = c.counter.CountMessages(compressed)
	logging.Context("compressed %d -> %d messages, %d -> %d tokens",
		report.MessagesBefore, report.MessagesAfter, report.TokensBefore, report.TokensAfter)
	return compressed, report
}

// splitSafe cuts keep messages off the end of the transcript, then moves
// the cut so no assistant tool-call group is separated from its results.
// Ties grow the recent side; the guarantee is "no pairing ever split", not
// a minimal move.
func splitSafe(messages []chat.Message, keep int) (old, recent []chat.Message) {
	if len(messages) <= keep {
		return nil, messages
	}

	split := len(messages) - keep

	// The cut landed on a tool result: walk back to the assistant that
	// issued the calls so the whole group stays on the recent side.
	if messages[split].Role == chat.RoleTool {
		for i := split - 1; i >= 0; i-- {
			if messages[i].Role == chat.RoleAssistant && len(messages[i].ToolCalls) > 0 {
				split = i
				break
			}
			if messages[i].Role != chat.RoleTool {
				break
			}
		}
	}

	// The cut landed right after an assistant with tool calls: pull its
	// results over to the summarized side so the group stays whole.
	if split > 0 {
		last := messages[split-1]
		if last.Role == chat.RoleAssistant && len(last.ToolCalls) > 0 {
			found := 0
			i := split
			for i < len(messages) && found < len(last.ToolCalls) {
				if messages[i].Role != chat.RoleTool {
					break
				}
				found++
				i++
			}
			if found > 0 {
				split = i
			}
		}
	}

	return messages[:split], messages[split:]
}

// Transcribe renders older messages as plain text for the summarization
// call: user text verbatim, assistant text with its tool invocations, and
// tool results reduced to a marker so their payloads do not inflate the
// summarization prompt.
func Transcribe(messages []chat.Message) string {
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case chat.RoleUser:
			fmt.Fprintf(&b, "User: %s\n\n", m.Content)
		case chat.RoleAssistant:
			fmt.Fprintf(&b, "Assistant: %s\n", m.Content)
			for _, tc := range m.ToolCalls {
				fmt.Fprintf(&b, "  [called tool: %s]\n", tc.Name)
			}
			b.WriteString("\n")
		case chat.RoleTool:
			fmt.Fprintf(&b, "[tool %s returned a result]\n\n", m.Name)
		}
	}
	return b.String()
}
