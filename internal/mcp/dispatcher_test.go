package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "echoes its arguments",
		InputSchema: map[string]any{"type": "object"},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"success": true, "args": args}, nil
		},
	}
}

func newTestDispatcher(t *testing.T, tools ...Tool) *Dispatcher {
	t.Helper()
	reg := NewRegistry()
	reg.MustRegister(tools...)
	return NewDispatcher(reg, "scopegw", "1.0.0")
}

func callRequest(t *testing.T, name string, args map[string]any) Request {
	t.Helper()
	params, err := json.Marshal(map[string]any{"name": name, "arguments": args})
	require.NoError(t, err)
	return Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "tools/call", Params: params}
}

func TestInitialize(t *testing.T) {
	d := newTestDispatcher(t, echoTool("nmap_scan"))

	resp := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", ID: json.RawMessage(`"init-1"`), Method: "initialize"})
	require.Nil(t, resp.Error)
	assert.Equal(t, json.RawMessage(`"init-1"`), resp.ID)

	res, ok := resp.Result.(initializeResult)
	require.True(t, ok)
	assert.Equal(t, ProtocolVersion, res.ProtocolVersion)
	assert.Equal(t, "scopegw", res.ServerInfo.Name)
}

func TestToolsListOrder(t *testing.T) {
	d := newTestDispatcher(t, echoTool("nmap_scan"), echoTool("httpx_probe"))

	resp := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", Method: "tools/list"})
	require.Nil(t, resp.Error)

	res, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	descs, ok := res["tools"].([]descriptor)
	require.True(t, ok)
	require.Len(t, descs, 2)
	assert.Equal(t, "nmap_scan", descs[0].Name)
	assert.Equal(t, "httpx_probe", descs[1].Name)
	assert.NotEmpty(t, descs[0].Description)
}

func TestToolsCallFiltersReservedParams(t *testing.T) {
	d := newTestDispatcher(t, echoTool("nmap_scan"))

	resp := d.Dispatch(context.Background(), callRequest(t, "nmap_scan", map[string]any{
		"target":     "192.168.1.1",
		"sessionId":  "abc",
		"chatInput":  "scan my network",
		"toolCallId": "42",
		"_meta":      map[string]any{},
	}))
	require.Nil(t, resp.Error)

	res, ok := resp.Result.(callResult)
	require.True(t, ok)
	require.Len(t, res.Content, 1)
	assert.Equal(t, "text", res.Content[0].Type)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &payload))
	args, ok := payload["args"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"target": "192.168.1.1"}, args)
}

func TestToolsCallUnknownTool(t *testing.T) {
	d := newTestDispatcher(t, echoTool("nmap_scan"))

	resp := d.Dispatch(context.Background(), callRequest(t, "no_such_tool", nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "no_such_tool")
}

func TestToolsCallHandlerError(t *testing.T) {
	d := newTestDispatcher(t, Tool{
		Name:        "broken",
		Description: "always fails",
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return nil, assert.AnError
		},
	})

	resp := d.Dispatch(context.Background(), callRequest(t, "broken", nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInternalError, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "Tool execution failed")
}

func TestUnknownMethod(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.Dispatch(context.Background(), Request{JSONRPC: "2.0", ID: json.RawMessage(`7`), Method: "resources/list"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, json.RawMessage(`7`), resp.ID)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(echoTool("nmap_scan")))
	assert.Error(t, reg.Register(echoTool("nmap_scan")))
	assert.Error(t, reg.Register(Tool{Name: "", Handler: echoTool("x").Handler}))
	assert.Error(t, reg.Register(Tool{Name: "nil_handler"}))

	// TargetParam defaults to "target".
	tool, ok := reg.Get("nmap_scan")
	require.True(t, ok)
	assert.Equal(t, "target", tool.TargetParam)
}
