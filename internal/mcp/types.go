// Package mcp implements a minimal Model Context Protocol client: JSON-RPC
// 2.0 spoken over a child server process's stdio, plus a manager that owns
// the connected servers and the qualified tool namespace.
package mcp

import (
	"encoding/json"
	"fmt"
	"os"
)

// protocolVersion is the MCP revision this client negotiates.
const protocolVersion = "2024-11-05"

// ServerConfig describes how to launch one MCP server process.
type ServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// ConfigFile is the on-disk server catalog.
type ConfigFile struct {
	Servers map[string]ServerConfig `json:"mcpServers"`
}

// LoadConfig reads a server catalog from path.
func LoadConfig(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mcp config: %w", err)
	}
	var cfg ConfigFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse mcp config: %w", err)
	}
	return &cfg, nil
}

// ToolSchema is one tool advertised by a server.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ContentItem is one element of a tools/call result payload.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CallResult is the outcome of one tools/call round trip. IsError marks a
// tool-level failure reported inside a successful RPC.
type CallResult struct {
	Success bool
	Content []ContentItem
	IsError bool
	Error   string
}

// JSON-RPC 2.0 framing. IDs are integers; notifications carry none.

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int   `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int            `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type listToolsResult struct {
	Tools []ToolSchema `json:"tools"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type callToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}
