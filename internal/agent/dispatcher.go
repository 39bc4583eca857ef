package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"shellpilot/internal/chat"
	"shellpilot/internal/guard"
	"shellpilot/internal/logging"
	"shellpilot/internal/mcp"
	"shellpilot/internal/shell"
)

// BuiltinShellTool is the name the model uses to run shell commands.
const BuiltinShellTool = "bash_exec"

// ConfirmFunc asks the user whether a command may run. A nil func means
// auto-approve.
type ConfirmFunc func(command string) bool

// ResultHook observes every shell result as it happens, before the envelope
// goes back to the model. Used for console echo.
type ResultHook func(command string, res shell.Result)

// Dispatcher routes assistant tool calls to the shell executor or to a
// connected MCP server and wraps every outcome in a JSON envelope the model
// can parse. It never returns an error; failures travel inside the envelope.
type Dispatcher struct {
	executor       *shell.Executor
	mcpManager     *mcp.Manager
	confirm        ConfirmFunc
	onResult       ResultHook
	defaultTimeout time.Duration
}

// NewDispatcher wires the dispatcher. mcpManager may be nil when no servers
// are configured.
func NewDispatcher(executor *shell.Executor, mcpManager *mcp.Manager, confirm ConfirmFunc, onResult ResultHook, defaultTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		executor:       executor,
		mcpManager:     mcpManager,
		confirm:        confirm,
		onResult:       onResult,
		defaultTimeout: defaultTimeout,
	}
}

// Tools returns every tool definition the model may call: the built-in shell
// tool plus whatever the MCP servers advertise.
func (d *Dispatcher) Tools() []chat.ToolDefinition {
	tools := []chat.ToolDefinition{{
		Name: BuiltinShellTool,
		Description: "Execute a shell command inside the working directory. " +
			"Returns a JSON envelope with ok, ran, reason, stdout, stderr and exit_code.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The shell command to execute",
				},
				"timeout_s": map[string]any{
					"type":        "integer",
					"description": "Optional timeout in seconds for this command",
					"minimum":     1,
				},
			},
			"required": []string{"command"},
		},
	}}
	if d.mcpManager != nil {
		tools = append(tools, d.mcpManager.ToolDefinitions()...)
	}
	return tools
}

// Dispatch executes each tool call in order and returns one tool-role message
// per call, in the same order.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []chat.ToolCall) []chat.Message {
	results := make([]chat.Message, 0, len(calls))
	for _, call := range calls {
		var payload string
		switch {
		case call.Name == BuiltinShellTool:
			payload = d.runShell(ctx, call.Arguments)
		case d.mcpManager != nil && strings.HasPrefix(call.Name, mcp.ToolPrefix):
			payload = d.runMCP(ctx, call.Name, call.Arguments)
		default:
			logging.ToolsDebug("unknown tool call: %s", call.Name)
			payload = errorEnvelope("unknown tool")
		}
		results = append(results, chat.ToolResult(call.ID, call.Name, payload))
	}
	return results
}

type shellArgs struct {
	Command  string `json:"command"`
	TimeoutS int    `json:"timeout_s"`
}

type shellEnvelope struct {
	OK       bool   `json:"ok"`
	Ran      bool   `json:"ran"`
	Reason   string `json:"reason,omitempty"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

func (d *Dispatcher) runShell(ctx context.Context, rawArgs string) string {
	var args shellArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return errorEnvelope(fmt.Sprintf("bad tool arguments: %v", err))
	}

	if v := guard.Evaluate(args.Command, d.executor.WorkDir()); v.Blocked {
		switch v.Reason {
		case guard.ReasonDangerous:
			logging.GuardWarn("blocked dangerous command: %s", args.Command)
			return marshalEnvelope(shellEnvelope{
				Reason:   "dangerous_command_blocked",
				Stderr:   "blocked by guard",
				ExitCode: 1,
			})
		case guard.ReasonPathOutside:
			logging.GuardWarn("blocked command leaving workdir: %s", args.Command)
			return marshalEnvelope(shellEnvelope{
				Reason:   "outside_workdir_blocked",
				Stderr:   "must stay inside " + d.executor.WorkDir(),
				ExitCode: 1,
			})
		default: // empty command
			return marshalEnvelope(shellEnvelope{
				Reason:   "empty",
				Stderr:   "empty command",
				ExitCode: 1,
			})
		}
	}
	if d.confirm != nil && !d.confirm(args.Command) {
		logging.Exec("user declined: %s", args.Command)
		return marshalEnvelope(shellEnvelope{
			Reason:   "declined",
			Stderr:   "user declined",
			ExitCode: 1,
		})
	}

	timeout := d.defaultTimeout
	if args.TimeoutS > 0 {
		timeout = time.Duration(args.TimeoutS) * time.Second
	}
	res := d.executor.Run(ctx, args.Command, timeout)
	if d.onResult != nil {
		d.onResult(args.Command, res)
	}
	return marshalEnvelope(shellEnvelope{
		OK:       res.Ran && res.ExitCode == 0,
		Ran:      res.Ran,
		Reason:   res.Reason,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
	})
}

type mcpEnvelope struct {
	OK      bool   `json:"ok"`
	Content string `json:"content,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (d *Dispatcher) runMCP(ctx context.Context, name, rawArgs string) string {
	if !d.mcpManager.IsConnected() {
		return errorEnvelope("MCP client not connected")
	}
	var args map[string]any
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return errorEnvelope(fmt.Sprintf("bad tool arguments: %v", err))
		}
	}
	res := d.mcpManager.CallTool(ctx, name, args)
	if !res.Success {
		return errorEnvelope(res.Error)
	}
	var content string
	for _, item := range res.Content {
		if item.Type == "text" {
			content += item.Text
		}
	}
	raw, _ := json.Marshal(mcpEnvelope{OK: true, Content: content, IsError: res.IsError})
	return string(raw)
}

func marshalEnvelope(env shellEnvelope) string {
	raw, _ := json.Marshal(env)
	return string(raw)
}

func errorEnvelope(msg string) string {
	raw, _ := json.Marshal(mcpEnvelope{OK: false, Error: msg})
	return string(raw)
}
