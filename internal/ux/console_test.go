package ux

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shellpilot/internal/history"
	"shellpilot/internal/shell"
)

func TestReadLine(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out, strings.NewReader("  hello world  \n"))

	line, err := c.ReadLine("> ")
	require.NoError(t, err)
	assert.Equal(t, "hello world", line)
	assert.Contains(t, out.String(), ">")
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false}, // EOF declines
	}
	for _, tt := range tests {
		var out bytes.Buffer
		c := NewConsole(&out, strings.NewReader(tt.input))
		assert.Equal(t, tt.want, c.Confirm("echo hi"), "input %q", tt.input)
		assert.Contains(t, out.String(), "echo hi")
	}
}

func TestCommandResult(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out, nil)

	c.CommandResult(shell.Result{Ran: true, Stdout: "ok\n"})
	assert.Contains(t, out.String(), "succeeded")
	assert.Contains(t, out.String(), "ok")

	out.Reset()
	c.CommandResult(shell.Result{ExitCode: 1, Stderr: "boom", Reason: "timeout"})
	assert.Contains(t, out.String(), "failed")
	assert.Contains(t, out.String(), "boom")
	assert.Contains(t, out.String(), "timeout")
}

func TestCompressionReport(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out, nil)

	c.CompressionReport(history.Report{Refusal: "under budget"})
	assert.Contains(t, out.String(), "under budget")

	out.Reset()
	c.CompressionReport(history.Report{
		Compressed:     true,
		MessagesBefore: 12, MessagesAfter: 5,
		TokensBefore: 1000, TokensAfter: 400,
	})
	assert.Contains(t, out.String(), "12 -> 5 messages")
	assert.Contains(t, out.String(), "60.0%")
}
