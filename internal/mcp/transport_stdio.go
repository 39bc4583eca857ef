package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"shellpilot/internal/logging"
)

// stdoutBufferLimit bounds a single JSON-RPC line from the server.
const stdoutBufferLimit = 4 * 1024 * 1024

// stdioTransport speaks JSON-RPC 2.0 with one MCP server process over its
// stdin/stdout. Responses are correlated to requests by integer ID through
// the pending map; a reader goroutine owns stdout.
type stdioTransport struct {
	mu sync.Mutex

	name string
	cfg  ServerConfig

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	connected bool
	nextID    int
	pending   map[int]chan *rpcResponse

	wg sync.WaitGroup
}

func newStdioTransport(name string, cfg ServerConfig) *stdioTransport {
	return &stdioTransport{
		name:    name,
		cfg:     cfg,
		nextID:  1,
		pending: make(map[int]chan *rpcResponse),
	}
}

// Connect starts the server process, spawns the reader goroutines, and
// performs the initialize handshake.
func (t *stdioTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return nil
	}
	if t.cfg.Command == "" {
		t.mu.Unlock()
		return fmt.Errorf("server %s: empty command", t.name)
	}

	cmd := exec.Command(t.cfg.Command, t.cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range t.cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var err error
	if t.stdin, err = cmd.StdinPipe(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("server %s: stdin pipe: %w", t.name, err)
	}
	if t.stdout, err = cmd.StdoutPipe(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("server %s: stdout pipe: %w", t.name, err)
	}
	if t.stderr, err = cmd.StderrPipe(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("server %s: stderr pipe: %w", t.name, err)
	}

	if err := cmd.Start(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("server %s: start %s: %w", t.name, t.cfg.Command, err)
	}

	t.cmd = cmd
	t.connected = true

	t.wg.Add(2)
	go t.readStderr()
	go t.readStdout()
	t.mu.Unlock()

	if err := t.initialize(ctx); err != nil {
		_ = t.Close()
		return fmt.Errorf("server %s: initialize: %w", t.name, err)
	}
	logging.MCP("server %s connected (pid %d)", t.name, cmd.Process.Pid)
	return nil
}

func (t *stdioTransport) initialize(ctx context.Context) error {
	_, err := t.call(ctx, "initialize", initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo{Name: "shellpilot", Version: "1.0.0"},
	})
	if err != nil {
		return err
	}
	// The handshake completes with a notification; no response follows.
	return t.notify("notifications/initialized")
}

// Close kills the server process and releases the reader goroutines.
// Safe to call more than once.
func (t *stdioTransport) Close() error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil
	}
	t.connected = false

	if t.stdin != nil {
		_ = t.stdin.Close()
	}
	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		if t.cmd != nil {
			_ = t.cmd.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		logging.MCPWarn("server %s: readers did not exit in time", t.name)
	}

	logging.MCP("server %s disconnected", t.name)
	return nil
}

func (t *stdioTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *stdioTransport) readStderr() {
	defer t.wg.Done()
	scanner := bufio.NewScanner(t.stderr)
	for scanner.Scan() {
		logging.MCPDebug("server %s stderr: %s", t.name, scanner.Text())
	}
}

func (t *stdioTransport) readStdout() {
	defer t.wg.Done()
	scanner := bufio.NewScanner(t.stdout)
	scanner.Buffer(make([]byte, 64*1024), stdoutBufferLimit)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			logging.MCPWarn("server %s: bad JSON on stdout: %v", t.name, err)
			continue
		}
		if resp.ID == nil {
			// Server-initiated notification; nothing to correlate.
			logging.MCPDebug("server %s notification: %.200s", t.name, line)
			continue
		}

		t.mu.Lock()
		ch, ok := t.pending[*resp.ID]
		if ok {
			delete(t.pending, *resp.ID)
		}
		t.mu.Unlock()
		if !ok {
			logging.MCPWarn("server %s: response for unknown id %d", t.name, *resp.ID)
			continue
		}
		ch <- &resp
	}

	if err := scanner.Err(); err != nil {
		t.mu.Lock()
		connected := t.connected
		t.mu.Unlock()
		if connected {
			logging.MCPWarn("server %s: stdout read error: %v", t.name, err)
		}
	}
}

// call sends one request and blocks until its response or ctx expiry.
// The lock is never held while waiting; the reader needs it to dispatch.
func (t *stdioTransport) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil, fmt.Errorf("server %s: not connected", t.name)
	}
	id := t.nextID
	t.nextID++
	ch := make(chan *rpcResponse, 1)
	t.pending[id] = ch

	data, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: &id, Method: method, Params: params})
	if err != nil {
		delete(t.pending, id)
		t.mu.Unlock()
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		delete(t.pending, id)
		t.mu.Unlock()
		return nil, fmt.Errorf("server %s: write %s: %w", t.name, method, err)
	}
	t.mu.Unlock()

	select {
	case resp, ok := <-ch:
		if !ok || resp == nil {
			return nil, fmt.Errorf("server %s: connection closed", t.name)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("server %s: rpc error %d: %s", t.name, resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (t *stdioTransport) notify(method string) error {
	data, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method})
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stdin == nil {
		return fmt.Errorf("server %s: not connected", t.name)
	}
	_, err = t.stdin.Write(append(data, '\n'))
	return err
}

// ListTools retrieves the tools the server advertises.
func (t *stdioTransport) ListTools(ctx context.Context) ([]ToolSchema, error) {
	result, err := t.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var parsed listToolsResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, fmt.Errorf("server %s: parse tools/list: %w", t.name, err)
	}
	return parsed.Tools, nil
}

// CallTool invokes one tool and returns its content payload.
func (t *stdioTransport) CallTool(ctx context.Context, name string, args map[string]any) (*callToolResult, error) {
	result, err := t.call(ctx, "tools/call", callToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	var parsed callToolResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, fmt.Errorf("server %s: parse tools/call: %w", t.name, err)
	}
	return &parsed, nil
}
