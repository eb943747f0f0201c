package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crieger/scopegw/internal/auth"
	"github.com/crieger/scopegw/internal/config"
	"github.com/crieger/scopegw/internal/log"
	"github.com/crieger/scopegw/internal/mcp"
	"github.com/crieger/scopegw/internal/scan"
)

const testAPIKey = "test-admin-key"

func newTestServer(t *testing.T, tools ...mcp.Tool) (*Server, *httptest.Server, *scan.Manager) {
	t.Helper()

	hub := NewEventHub(64)
	manager, err := scan.NewManager(config.ScansConfig{
		ResultsDir:     t.TempDir(),
		WebhookTimeout: 5 * time.Second,
	}, hub)
	require.NoError(t, err)

	registry := mcp.NewRegistry()
	registry.MustRegister(tools...)

	srv := New(Config{
		APIKey:  testAPIKey,
		Version: "test",
		Tokens: []auth.TokenConfig{
			{Token: "reader-token", Scopes: []string{"scans:ro", "tools:ro"}},
			{Token: "events-token", Scopes: []string{"events:ro"}},
		},
	}, manager, registry, hub, log.WithComponent("api-test"))

	ts := httptest.NewServer(srv.setupRoutes())
	t.Cleanup(ts.Close)
	return srv, ts, manager
}

func fastTool(name string) mcp.Tool {
	return mcp.Tool{
		Name:        name,
		Description: "test tool",
		InputSchema: map[string]any{"type": "object"},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"success": true, "args": args}, nil
		},
	}
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestRootAndHealthzUnauthenticated(t *testing.T) {
	_, ts, _ := newTestServer(t, fastTool("nmap_scan"))

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "scopegw", body["service"])

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["tools_loaded"])
}

func TestAuthRequired(t *testing.T) {
	_, ts, _ := newTestServer(t, fastTool("nmap_scan"))

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/tools", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/tools", "wrong-key", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/tools", testAPIKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestScopeEnforcement(t *testing.T) {
	_, ts, _ := newTestServer(t, fastTool("nmap_scan"))

	// scans:ro can read but not start.
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/scans", "reader-token", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/scans/start", "reader-token",
		ScanStartRequest{Tool: "nmap_scan", Target: "192.168.1.1"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// events:ro cannot touch scans.
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/scans", "events-token", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestListTools(t *testing.T) {
	_, ts, _ := newTestServer(t, fastTool("nmap_scan"), fastTool("httpx_probe"))

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/tools", testAPIKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["count"])
	tools := body["tools"].([]any)
	first := tools[0].(map[string]any)
	assert.Equal(t, "nmap_scan", first["name"])
	assert.NotNil(t, first["inputSchema"])
}

func TestMessagesJSONRPC(t *testing.T) {
	_, ts, _ := newTestServer(t, fastTool("nmap_scan"))

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/messages", testAPIKey, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name": "nmap_scan",
			"arguments": map[string]any{
				"target":    "192.168.1.1",
				"sessionId": "should-be-stripped",
			},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, body["error"])

	result := body["result"].(map[string]any)
	content := result["content"].([]any)
	block := content[0].(map[string]any)
	assert.Equal(t, "text", block["type"])

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(block["text"].(string)), &payload))
	args := payload["args"].(map[string]any)
	assert.Equal(t, "192.168.1.1", args["target"])
	assert.NotContains(t, args, "sessionId")
}

func TestMessagesUnknownMethod(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/messages", testAPIKey, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "prompts/list",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rpcErr := body["error"].(map[string]any)
	assert.Equal(t, float64(mcp.CodeMethodNotFound), rpcErr["code"])
}

func TestMessagesInfo(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/messages", testAPIKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "streamable-http", body["transport"])
}

func TestScanLifecycleOverREST(t *testing.T) {
	_, ts, _ := newTestServer(t, fastTool("nmap_scan"))

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/scans/start", testAPIKey,
		ScanStartRequest{Tool: "nmap_scan", Target: "192.168.1.1", Arguments: map[string]any{"ports": "80"}})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	jobID := body["job_id"].(string)
	require.NotEmpty(t, jobID)

	// Poll status until completed.
	deadline := time.Now().Add(5 * time.Second)
	var status string
	for time.Now().Before(deadline) {
		resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/scans/%s/status", ts.URL, jobID), testAPIKey, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		status = body["status"].(string)
		if status == "completed" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, "completed", status)

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/scans/%s/results", ts.URL, jobID), testAPIKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := body["results"].(map[string]any)
	assert.Equal(t, true, results["success"])
	// Target was injected under the tool's target parameter.
	args := results["args"].(map[string]any)
	assert.Equal(t, "192.168.1.1", args["target"])
	assert.Equal(t, "80", args["ports"])

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/scans", testAPIKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	// Completed jobs are not cancellable.
	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/scans/%s/cancel", ts.URL, jobID), testAPIKey, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestScanStartValidation(t *testing.T) {
	_, ts, _ := newTestServer(t, fastTool("nmap_scan"))

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/scans/start", testAPIKey,
		ScanStartRequest{Target: "192.168.1.1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/scans/start", testAPIKey,
		ScanStartRequest{Tool: "nmap_scan"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/scans/start", testAPIKey,
		ScanStartRequest{Tool: "unknown_tool", Target: "192.168.1.1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "unknown tool")
}

func TestScanCancelRunningJob(t *testing.T) {
	started := make(chan struct{})
	blocking := mcp.Tool{
		Name:        "slow_scan",
		Description: "blocks until cancelled",
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	_, ts, _ := newTestServer(t, blocking)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/scans/start", testAPIKey,
		ScanStartRequest{Tool: "slow_scan", Target: "192.168.1.1"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	jobID := body["job_id"].(string)
	<-started

	resp, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/scans/%s/cancel", ts.URL, jobID), testAPIKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", body["status"])

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/scans/missing-id/cancel", testAPIKey, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestScanStatusNotFound(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/scans/nope/status", testAPIKey, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/scans/nope/results", testAPIKey, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOpenAPIDoc(t *testing.T) {
	_, ts, _ := newTestServer(t, fastTool("nmap_scan"))

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/openapi.json", testAPIKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "3.1.0", body["openapi"])
	paths := body["paths"].(map[string]any)
	assert.Contains(t, paths, "/scans/start")
	assert.Contains(t, paths, "/tools/nmap_scan")
}
