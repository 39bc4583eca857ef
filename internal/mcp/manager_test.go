package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"mcpServers": {
			"files": {"command": "mcp-files", "args": ["--root", "."], "env": {"DEBUG": "1"}},
			"search": {"command": "mcp-search"}
		}
	}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 2)
	assert.Equal(t, "mcp-files", cfg.Servers["files"].Command)
	assert.Equal(t, []string{"--root", "."}, cfg.Servers["files"].Args)
	assert.Equal(t, "1", cfg.Servers["files"].Env["DEBUG"])
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestSplitToolName(t *testing.T) {
	tests := []struct {
		qualified string
		server    string
		tool      string
		ok        bool
	}{
		{"mcp_files_read_file", "files", "read_file", true},
		{"mcp_search_query", "search", "query", true},
		{"bash_exec", "", "", false},
		{"mcp_", "", "", false},
		{"mcp_lonely", "", "", false},
	}
	for _, tt := range tests {
		server, tool, ok := SplitToolName(tt.qualified)
		assert.Equal(t, tt.ok, ok, tt.qualified)
		assert.Equal(t, tt.server, server, tt.qualified)
		assert.Equal(t, tt.tool, tool, tt.qualified)
	}
}

func TestToolDefinitions(t *testing.T) {
	m := NewManager()
	m.servers["files"] = &serverConn{
		transport: newStdioTransport("files", ServerConfig{Command: "noop"}),
		tools: []ToolSchema{
			{
				Name:        "read_file",
				Description: "Read a file",
				InputSchema: []byte(`{"type":"object","properties":{"path":{"type":"string"}}}`),
			},
			{Name: "bare"},
		},
	}

	defs := m.ToolDefinitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "mcp_files_read_file", defs[0].Name)
	assert.Equal(t, "[files] Read a file", defs[0].Description)
	assert.Contains(t, defs[0].Parameters, "properties")
	// A tool without a schema still advertises an object type.
	assert.Equal(t, "mcp_files_bare", defs[1].Name)
	assert.Equal(t, map[string]any{"type": "object"}, defs[1].Parameters)
}

func TestCallTool_NotConnected(t *testing.T) {
	m := NewManager()

	res := m.CallTool(context.Background(), "mcp_files_read_file", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "server not connected")

	res = m.CallTool(context.Background(), "not_qualified", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "malformed tool name")
}

func TestManager_CleanupIdempotent(t *testing.T) {
	m := NewManager()
	m.Cleanup()
	m.Cleanup()
	assert.False(t, m.IsConnected())
}
