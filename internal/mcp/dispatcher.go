package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/crieger/scopegw/internal/log"
)

// reservedParams are session and orchestration keys that MCP clients and
// agent frameworks attach to tool arguments. They are stripped before the
// handler runs so tools only ever see their real parameters.
var reservedParams = map[string]struct{}{
	"sessionId":  {},
	"action":     {},
	"chatInput":  {},
	"tool":       {},
	"toolCallId": {},
	"output":     {},
	"_meta":      {},
	"_request":   {},
	"_session":   {},
}

// Dispatcher routes JSON-RPC requests to the tool registry.
type Dispatcher struct {
	registry *Registry
	name     string
	version  string
	logger   *slog.Logger
}

func NewDispatcher(registry *Registry, serverName, version string) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		name:     serverName,
		version:  version,
		logger:   log.WithComponent("mcp"),
	}
}

// ServerInfo returns the transport description served on GET /messages.
func (d *Dispatcher) ServerInfo() map[string]any {
	return map[string]any{
		"name":            d.name,
		"version":         d.version,
		"protocolVersion": ProtocolVersion,
		"transport":       "streamable-http",
		"capabilities":    map[string]any{"tools": map[string]any{}},
	}
}

// Dispatch handles one JSON-RPC request and always returns a well-formed
// response; protocol failures surface as JSON-RPC error objects, not Go
// errors.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	switch req.Method {
	case "initialize":
		d.logger.Info("client initialize")
		return d.result(req.ID, initializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      serverInfo{Name: d.name, Version: d.version},
		})

	case "tools/list":
		tools := d.registry.List()
		descs := make([]descriptor, 0, len(tools))
		for _, t := range tools {
			descs = append(descs, descriptor{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
		}
		d.logger.Debug("tools listed", "count", len(descs))
		return d.result(req.ID, map[string]any{"tools": descs})

	case "tools/call":
		return d.call(ctx, req)

	default:
		d.logger.Warn("unknown method", "method", req.Method)
		return d.fail(req.ID, CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func (d *Dispatcher) call(ctx context.Context, req Request) Response {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return d.fail(req.ID, CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
	}

	tool, ok := d.registry.Get(params.Name)
	if !ok {
		d.logger.Warn("unknown tool", "tool", params.Name)
		return d.fail(req.ID, CodeInvalidParams, fmt.Sprintf("Unknown tool: %s", params.Name))
	}

	args := filterReserved(params.Arguments)
	d.logger.Info("tool call", "tool", tool.Name)

	result, err := tool.Handler(ctx, args)
	if err != nil {
		d.logger.Error("tool execution failed", "tool", tool.Name, "error", err)
		return d.fail(req.ID, CodeInternalError, fmt.Sprintf("Tool execution failed: %v", err))
	}

	text, err := json.Marshal(result)
	if err != nil {
		return d.fail(req.ID, CodeInternalError, fmt.Sprintf("Tool execution failed: %v", err))
	}
	return d.result(req.ID, callResult{Content: []textContent{{Type: "text", Text: string(text)}}})
}

// filterReserved drops session metadata keys, leaving only real tool
// parameters.
func filterReserved(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if _, reserved := reservedParams[k]; reserved {
			continue
		}
		out[k] = v
	}
	return out
}

func (d *Dispatcher) result(id json.RawMessage, res any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: res}
}

func (d *Dispatcher) fail(id json.RawMessage, code int, msg string) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: msg}}
}
