package agent

import (
	"context"
	"encoding/json"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shellpilot/internal/chat"
	"shellpilot/internal/mcp"
	"shellpilot/internal/shell"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func newTestDispatcher(t *testing.T, confirm ConfirmFunc) *Dispatcher {
	t.Helper()
	exec := shell.NewExecutor(t.TempDir())
	return NewDispatcher(exec, nil, confirm, nil, 5*time.Second)
}

func decodeShell(t *testing.T, payload string) shellEnvelope {
	t.Helper()
	var env shellEnvelope
	require.NoError(t, json.Unmarshal([]byte(payload), &env))
	return env
}

func TestTools_BuiltinShell(t *testing.T) {
	d := newTestDispatcher(t, nil)
	tools := d.Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, BuiltinShellTool, tools[0].Name)

	props, ok := tools[0].Parameters["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "command")
	assert.Contains(t, props, "timeout_s")
	assert.Equal(t, []string{"command"}, tools[0].Parameters["required"])
}

func TestDispatch_ShellSuccess(t *testing.T) {
	skipOnWindows(t)
	d := newTestDispatcher(t, nil)

	results := d.Dispatch(context.Background(), []chat.ToolCall{
		{ID: "call_1", Name: BuiltinShellTool, Arguments: `{"command":"echo hello"}`},
	})
	require.Len(t, results, 1)
	assert.Equal(t, chat.RoleTool, results[0].Role)
	assert.Equal(t, "call_1", results[0].ToolCallID)

	env := decodeShell(t, results[0].Content)
	assert.True(t, env.OK)
	assert.True(t, env.Ran)
	assert.Equal(t, 0, env.ExitCode)
	assert.Equal(t, "hello\n", env.Stdout)
}

func TestDispatch_DangerousBlocked(t *testing.T) {
	d := newTestDispatcher(t, nil)

	results := d.Dispatch(context.Background(), []chat.ToolCall{
		{ID: "c", Name: BuiltinShellTool, Arguments: `{"command":"sudo rm file"}`},
	})
	env := decodeShell(t, results[0].Content)
	assert.False(t, env.OK)
	assert.False(t, env.Ran)
	assert.Equal(t, "dangerous_command_blocked", env.Reason)
	assert.Equal(t, "blocked by guard", env.Stderr)
	assert.Equal(t, 1, env.ExitCode)
}

func TestDispatch_OutsideWorkdirBlocked(t *testing.T) {
	d := newTestDispatcher(t, nil)

	results := d.Dispatch(context.Background(), []chat.ToolCall{
		{ID: "c", Name: BuiltinShellTool, Arguments: `{"command":"cat /tmp/x"}`},
	})
	env := decodeShell(t, results[0].Content)
	assert.False(t, env.Ran)
	assert.Equal(t, "outside_workdir_blocked", env.Reason)
	assert.Contains(t, env.Stderr, "must stay inside ")
	assert.Contains(t, env.Stderr, d.executor.WorkDir())
}

func TestDispatch_EmptyCommand(t *testing.T) {
	d := newTestDispatcher(t, nil)

	results := d.Dispatch(context.Background(), []chat.ToolCall{
		{ID: "c", Name: BuiltinShellTool, Arguments: `{"command":"   "}`},
	})
	env := decodeShell(t, results[0].Content)
	assert.False(t, env.Ran)
	assert.Equal(t, "empty", env.Reason)
	assert.Equal(t, "empty command", env.Stderr)
}

func TestDispatch_Declined(t *testing.T) {
	asked := ""
	d := newTestDispatcher(t, func(command string) bool {
		asked = command
		return false
	})

	results := d.Dispatch(context.Background(), []chat.ToolCall{
		{ID: "c", Name: BuiltinShellTool, Arguments: `{"command":"echo hi"}`},
	})
	env := decodeShell(t, results[0].Content)
	assert.Equal(t, "echo hi", asked)
	assert.False(t, env.Ran)
	assert.Equal(t, "declined", env.Reason)
	assert.Equal(t, "user declined", env.Stderr)
}

func TestDispatch_TimeoutOverride(t *testing.T) {
	skipOnWindows(t)
	exec := shell.NewExecutor(t.TempDir())
	d := NewDispatcher(exec, nil, nil, nil, time.Minute)

	results := d.Dispatch(context.Background(), []chat.ToolCall{
		{ID: "c", Name: BuiltinShellTool, Arguments: `{"command":"sleep 5","timeout_s":1}`},
	})
	env := decodeShell(t, results[0].Content)
	assert.False(t, env.Ran)
	assert.Equal(t, "timeout", env.Reason)
	assert.Equal(t, 124, env.ExitCode)
}

func TestDispatch_BadArguments(t *testing.T) {
	d := newTestDispatcher(t, nil)

	results := d.Dispatch(context.Background(), []chat.ToolCall{
		{ID: "c", Name: BuiltinShellTool, Arguments: `{not json`},
	})
	var env mcpEnvelope
	require.NoError(t, json.Unmarshal([]byte(results[0].Content), &env))
	assert.False(t, env.OK)
	assert.Contains(t, env.Error, "bad tool arguments")
}

func TestDispatch_UnknownTool(t *testing.T) {
	d := newTestDispatcher(t, nil)

	results := d.Dispatch(context.Background(), []chat.ToolCall{
		{ID: "c", Name: "teleport", Arguments: `{}`},
	})
	assert.JSONEq(t, `{"ok":false,"error":"unknown tool"}`, results[0].Content)
}

func TestDispatch_MCPNotConnected(t *testing.T) {
	exec := shell.NewExecutor(t.TempDir())
	d := NewDispatcher(exec, mcp.NewManager(), nil, nil, time.Second)

	results := d.Dispatch(context.Background(), []chat.ToolCall{
		{ID: "c", Name: "mcp_fs_read", Arguments: `{"path":"a"}`},
	})
	var env mcpEnvelope
	require.NoError(t, json.Unmarshal([]byte(results[0].Content), &env))
	assert.False(t, env.OK)
	assert.Equal(t, "MCP client not connected", env.Error)
}

func TestDispatch_PreservesOrder(t *testing.T) {
	skipOnWindows(t)
	d := newTestDispatcher(t, nil)

	results := d.Dispatch(context.Background(), []chat.ToolCall{
		{ID: "a", Name: BuiltinShellTool, Arguments: `{"command":"echo one"}`},
		{ID: "b", Name: BuiltinShellTool, Arguments: `{"command":"echo two"}`},
	})
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ToolCallID)
	assert.Equal(t, "b", results[1].ToolCallID)
	assert.Contains(t, results[0].Content, "one")
	assert.Contains(t, results[1].Content, "two")
}
