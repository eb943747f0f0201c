// Package mcp implements the JSON-RPC 2.0 message layer used by MCP-style
// clients, routing tools/list and tools/call requests onto a tool registry.
package mcp

import (
	"context"
	"encoding/json"
)

// ProtocolVersion is the streamable-HTTP transport revision we speak.
const ProtocolVersion = "2025-03-26"

// JSON-RPC error codes.
const (
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is an incoming JSON-RPC 2.0 message. ID is kept raw so numeric and
// string identifiers round-trip unchanged.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outgoing JSON-RPC 2.0 message. Exactly one of Result and
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// Handler runs one tool with already-filtered named arguments.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Tool describes a registered tool: its advertised schema plus the metadata
// the gateway needs to run it outside the JSON-RPC path.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any

	// TargetParam names the argument carrying the scan target ("target",
	// "url", "domain", ...). Empty means "target".
	TargetParam string

	Handler Handler
}

// descriptor is the wire form advertised by tools/list.
type descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// textContent wraps a tool result as an MCP text content block.
type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callResult struct {
	Content []textContent `json:"content"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
