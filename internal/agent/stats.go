package agent

import (
	"sync"

	"shellpilot/internal/llm"
)

// StatsSnapshot is a point-in-time copy of the session accounting.
type StatsSnapshot struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	APICalls         int
	Compressions     int
}

// TokenStats accumulates usage for one session. Owned by the session, not
// package state, so concurrent sessions stay independent.
type TokenStats struct {
	mu sync.Mutex
	s  StatsSnapshot
}

// AddCall records a main-loop model call.
func (t *TokenStats) AddCall(u llm.Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.PromptTokens += u.PromptTokens
	t.s.CompletionTokens += u.CompletionTokens
	t.s.TotalTokens += u.TotalTokens
	t.s.APICalls++
}

// AddUsage records tokens without counting an API call; the summarization
// path uses this.
func (t *TokenStats) AddUsage(u llm.Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.PromptTokens += u.PromptTokens
	t.s.CompletionTokens += u.CompletionTokens
	t.s.TotalTokens += u.TotalTokens
}

// AddCompression counts one compression event.
func (t *TokenStats) AddCompression() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Compressions++
}

// Reset zeroes the counters.
func (t *TokenStats) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s = StatsSnapshot{}
}

// Snapshot returns a copy of the counters.
func (t *TokenStats) Snapshot() StatsSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}
