package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"shellpilot/internal/chat"
	"shellpilot/internal/logging"
)

// ToolPrefix qualifies provider tools in the model's namespace as
// mcp_<server>_<tool>.
const ToolPrefix = "mcp_"

// serverConn pairs a live transport with the tool list discovered at
// connect time.
type serverConn struct {
	transport *stdioTransport
	tools     []ToolSchema
}

// Manager owns the connected MCP servers.
type Manager struct {
	mu      sync.RWMutex
	servers map[string]*serverConn
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{servers: make(map[string]*serverConn)}
}

// ConnectAll launches every configured server, discovers its tools, and
// returns how many connected. Servers that fail are logged and skipped so
// one broken entry never takes the session down.
func (m *Manager) ConnectAll(ctx context.Context, cfg *ConfigFile) int {
	if cfg == nil {
		return 0
	}
	connected := 0
	for name, sc := range cfg.Servers {
		transport := newStdioTransport(name, sc)
		if err := transport.Connect(ctx); err != nil {
			logging.MCPWarn("skipping server %s: %v", name, err)
			continue
		}
		tools, err := transport.ListTools(ctx)
		if err != nil {
			logging.MCPWarn("skipping server %s: %v", name, err)
			_ = transport.Close()
			continue
		}
		m.mu.Lock()
		m.servers[name] = &serverConn{transport: transport, tools: tools}
		m.mu.Unlock()
		logging.MCP("server %s: %d tools discovered", name, len(tools))
		connected++
	}
	return connected
}

// IsConnected reports whether any server is connected.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.servers {
		if s.transport.IsConnected() {
			return true
		}
	}
	return false
}

// Cleanup disconnects every server. Safe to call more than once.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, s := range m.servers {
		_ = s.transport.Close()
		delete(m.servers, name)
	}
}

// ServerTools returns server name -> advertised tool names, for status
// displays.
func (m *Manager) ServerTools() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]string, len(m.servers))
	for name, s := range m.servers {
		names := make([]string, 0, len(s.tools))
		for _, tool := range s.tools {
			names = append(names, tool.Name)
		}
		sort.Strings(names)
		out[name] = names
	}
	return out
}

// ToolDefinitions renders every discovered tool for the model under the
// qualified mcp_<server>_<tool> name.
func (m *Manager) ToolDefinitions() []chat.ToolDefinition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	sort.Strings(names)

	var defs []chat.ToolDefinition
	for _, server := range names {
		for _, tool := range m.servers[server].tools {
			params := map[string]any{"type": "object"}
			if len(tool.InputSchema) > 0 {
				var parsed map[string]any
				if err := json.Unmarshal(tool.InputSchema, &parsed); err == nil {
					params = parsed
				}
			}
			defs = append(defs, chat.ToolDefinition{
				Name:        QualifiedToolName(server, tool.Name),
				Description: fmt.Sprintf("[%s] %s", server, tool.Description),
				Parameters:  params,
			})
		}
	}
	return defs
}

// QualifiedToolName builds the model-facing name for a server tool.
func QualifiedToolName(server, tool string) string {
	return ToolPrefix + server + "_" + tool
}

// SplitToolName parses a qualified tool name back into server and tool.
// The server name itself cannot contain underscores; the tool name can.
func SplitToolName(qualified string) (server, tool string, ok bool) {
	rest, found := strings.CutPrefix(qualified, ToolPrefix)
	if !found {
		return "", "", false
	}
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// CallTool routes a qualified tool call to its server. RPC and routing
// failures come back inside the result, not as an error: the dispatcher
// always has an envelope to hand the model.
func (m *Manager) CallTool(ctx context.Context, qualified string, args map[string]any) *CallResult {
	server, tool, ok := SplitToolName(qualified)
	if !ok {
		return &CallResult{Error: fmt.Sprintf("malformed tool name: %s", qualified)}
	}

	m.mu.RLock()
	conn, exists := m.servers[server]
	m.mu.RUnlock()
	if !exists || !conn.transport.IsConnected() {
		return &CallResult{Error: fmt.Sprintf("server not connected: %s", server)}
	}

	logging.Tools("mcp call: server=%s tool=%s", server, tool)
	result, err := conn.transport.CallTool(ctx, tool, args)
	if err != nil {
		return &CallResult{Error: err.Error()}
	}
	return &CallResult{Success: true, Content: result.Content, IsError: result.IsError}
}
