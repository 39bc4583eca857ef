package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountString(t *testing.T) {
	c := NewTokenCounter()

	assert.Equal(t, 0, c.CountString(""))
	assert.Equal(t, 1, c.CountString("hi"))
	assert.Equal(t, 1, c.CountString("user"))
	assert.Equal(t, 2, c.CountString("hello"))
	assert.Equal(t, 25, c.CountString(strings.Repeat("x", 100)))
}

func TestCountMessage_ToolCallsAndName(t *testing.T) {
	c := NewTokenCounter()

	plain := User("hello world")
	withCalls := Assistant("", []ToolCall{
		{ID: "call_1", Name: "bash_exec", Arguments: `{"command":"ls -la"}`},
	})
	result := ToolResult("call_1", "bash_exec", `{"ok":true}`)

	assert.Greater(t, c.CountMessage(withCalls), perMessageOverhead)
	assert.Greater(t, c.CountMessage(result), c.CountMessage(ToolResult("call_1", "", "")))
	assert.Greater(t, c.CountMessage(plain), perMessageOverhead)
}

func TestCountMessages_MonotonicUnderAppend(t *testing.T) {
	c := NewTokenCounter()

	transcript := []Message{
		System("you are a shell assistant"),
		User("list the files"),
		Assistant("", []ToolCall{{ID: "call_1", Name: "bash_exec", Arguments: `{"command":"ls"}`}}),
		ToolResult("call_1", "bash_exec", `{"ok":true,"stdout":"a.txt\n"}`),
		Assistant("There is one file: a.txt", nil),
		User(""),
	}

	prev := c.CountMessages(nil)
	require.Equal(t, transcriptPrimer, prev)
	for i := 1; i <= len(transcript); i++ {
		cur := c.CountMessages(transcript[:i])
		assert.GreaterOrEqual(t, cur, prev, "append at %d must not shrink the estimate", i)
		prev = cur
	}
}

func TestCountMessages_Deterministic(t *testing.T) {
	c := NewTokenCounter()
	transcript := []Message{
		System("sys"),
		User("question"),
		Assistant("answer", nil),
	}
	assert.Equal(t, c.CountMessages(transcript), c.CountMessages(transcript))
}
