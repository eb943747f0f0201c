package api

import (
	"github.com/crieger/scopegw/internal/mcp"
)

// buildOpenAPIDoc returns an OpenAPI 3.1 document covering the scan surface
// for every registered tool.
func buildOpenAPIDoc(tools []mcp.Tool) map[string]any {
	paths := map[string]any{
		"/scans/start": map[string]any{
			"post": map[string]any{
				"operationId": "startScan",
				"summary":     "Start an asynchronous scan job",
				"requestBody": map[string]any{
					"required": true,
					"content": map[string]any{
						"application/json": map[string]any{
							"schema": map[string]any{
								"type":     "object",
								"required": []string{"tool", "target"},
								"properties": map[string]any{
									"tool":        map[string]any{"type": "string", "enum": toolNames(tools)},
									"target":      map[string]any{"type": "string"},
									"arguments":   map[string]any{"type": "object"},
									"webhook_url": map[string]any{"type": "string"},
								},
							},
						},
					},
				},
				"responses": map[string]any{
					"202": map[string]any{"description": "Job created"},
					"400": map[string]any{"description": "Bad request"},
					"403": map[string]any{"description": "Insufficient scope"},
				},
				"security": []any{map[string]any{"BearerAuth": []string{}}},
			},
		},
	}

	// One documented tools/call operation per tool so clients can see each
	// input schema.
	for _, t := range tools {
		op := map[string]any{
			"operationId": "call__" + t.Name,
			"summary":     t.Description,
			"tags":        []string{"tools"},
			"responses": map[string]any{
				"200": map[string]any{"description": "Tool result"},
				"403": map[string]any{"description": "Insufficient scope"},
			},
			"security": []any{map[string]any{"BearerAuth": []string{}}},
		}
		if t.InputSchema != nil {
			op["requestBody"] = map[string]any{
				"required": false,
				"content": map[string]any{
					"application/json": map[string]any{"schema": t.InputSchema},
				},
			}
		}
		paths["/tools/"+t.Name] = map[string]any{"post": op}
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "Scope Gateway",
			"version": "1.0",
		},
		"paths": paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
		},
	}
}

func toolNames(tools []mcp.Tool) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return names
}
