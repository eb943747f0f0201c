// Package tools provides the security tool wrappers exposed through the
// gateway: each wrapper validates its target against the authorization
// policy, builds an argv without any shell involvement, runs the external
// binary with a per-tool timeout and shapes the output into a structured
// result.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/crieger/scopegw/internal/executil"
	"github.com/crieger/scopegw/internal/log"
	"github.com/crieger/scopegw/internal/mcp"
	"github.com/crieger/scopegw/internal/policy"
)

// RunFunc executes an external command; swapped out in tests.
type RunFunc func(ctx context.Context, argv []string, timeout time.Duration) executil.Result

// Catalog builds the gateway's tool set around a shared authorization
// policy.
type Catalog struct {
	policy *policy.Policy
	run    RunFunc
	logger *slog.Logger
}

func NewCatalog(p *policy.Policy) *Catalog {
	return &Catalog{
		policy: p,
		run:    executil.Run,
		logger: log.WithComponent("tools"),
	}
}

// All returns every tool wrapper for registration.
func (c *Catalog) All() []mcp.Tool {
	var out []mcp.Tool
	out = append(out, c.networkTools()...)
	out = append(out, c.webTools()...)
	out = append(out, c.cloudTools()...)
	out = append(out, c.binaryTools()...)
	return out
}

// failure is the uniform refusal/error result shape. Validation and
// execution failures are reported as tool results, not transport errors, so
// callers always get a structured payload.
func failure(tool, target string, err error) map[string]any {
	return map[string]any{
		"tool":    tool,
		"target":  target,
		"success": false,
		"error":   err.Error(),
	}
}

// Argument extraction. JSON-decoded arguments arrive as map[string]any, so
// numbers are float64 and everything needs coercion with a default.

func strArg(args map[string]any, key, def string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return def
		}
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprintf("%v", v)
}

func intArg(args map[string]any, key string, def int) int {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return def
}

func boolArg(args map[string]any, key string, def bool) bool {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
	}
	return def
}

// schema builders keep the inputSchema declarations compact.

func objSchema(required []string, props map[string]any) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func strProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func intProp(desc string, def int) map[string]any {
	return map[string]any{"type": "integer", "description": desc, "default": def}
}

func boolProp(desc string, def bool) map[string]any {
	return map[string]any{"type": "boolean", "description": desc, "default": def}
}
