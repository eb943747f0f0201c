// Package auth implements bearer-token authentication and the gateway's
// scope model. A scope names one protected resource plus an access level,
// "tools:ro" or "scans:rw"; write access to a resource always implies read.
// The wildcard scope "*" grants everything, and the legacy single api_key
// authenticates as a wildcard principal for backwards compatibility.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Resource is one protected surface of the gateway API.
type Resource string

const (
	// ResourceTools covers the tool catalog, OpenAPI description, and
	// MCP dispatch. Write access means invoking tools synchronously.
	ResourceTools Resource = "tools"
	// ResourceScans covers asynchronous scan jobs. Write access means
	// starting and cancelling jobs.
	ResourceScans Resource = "scans"
	// ResourceEvents covers the lifecycle event stream.
	ResourceEvents Resource = "events"
)

// Scope is one parsed grant from a token's scope list.
type Scope struct {
	Resource Resource
	Write    bool
	Wildcard bool
}

// ParseScope parses "resource:level" or "*". Level is "ro" or "rw" and the
// resource must be one the gateway actually serves; anything else is a
// configuration error.
func ParseScope(raw string) (Scope, error) {
	raw = strings.TrimSpace(raw)
	if raw == "*" {
		return Scope{Wildcard: true}, nil
	}

	res, level, ok := strings.Cut(raw, ":")
	if !ok {
		return Scope{}, fmt.Errorf("scope %q: expected resource:level", raw)
	}
	r := Resource(res)
	switch r {
	case ResourceTools, ResourceScans, ResourceEvents:
	default:
		return Scope{}, fmt.Errorf("scope %q: unknown resource %q", raw, res)
	}
	switch level {
	case "ro":
		return Scope{Resource: r}, nil
	case "rw":
		return Scope{Resource: r, Write: true}, nil
	default:
		return Scope{}, fmt.Errorf("scope %q: level must be ro or rw", raw)
	}
}

// TokenConfig is a bearer token with its raw scope list as configured.
type TokenConfig struct {
	Token  string
	Scopes []string
}

// Principal is an authenticated caller and the set of resources it may
// touch. The zero value holds no grants.
type Principal struct {
	Token    string
	wildcard bool
	grants   map[Resource]bool // true = read-write, false = read-only
}

// CanRead reports whether the principal may read the resource.
func (p Principal) CanRead(r Resource) bool {
	if p.wildcard {
		return true
	}
	_, ok := p.grants[r]
	return ok
}

// CanWrite reports whether the principal may mutate the resource.
func (p Principal) CanWrite(r Resource) bool {
	if p.wildcard {
		return true
	}
	return p.grants[r]
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func ExtractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing Authorization header")
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.New("invalid Authorization header format")
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", errors.New("missing API key")
	}
	return token, nil
}

func constantTimeEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Authenticate matches a presented bearer token against configured tokens.
// The legacy api_key authenticates as a wildcard principal. Scope strings
// are validated at config load; unparseable ones are ignored here rather
// than silently widening access.
func Authenticate(presented string, legacyAPIKey string, tokens []TokenConfig) (Principal, bool) {
	if constantTimeEqual(presented, legacyAPIKey) {
		return Principal{Token: presented, wildcard: true}, true
	}

	for _, t := range tokens {
		if !constantTimeEqual(presented, t.Token) {
			continue
		}

		p := Principal{Token: presented, grants: make(map[Resource]bool)}
		for _, raw := range t.Scopes {
			sc, err := ParseScope(raw)
			if err != nil {
				continue
			}
			if sc.Wildcard {
				p.wildcard = true
				continue
			}
			// rw wins over ro for the same resource.
			p.grants[sc.Resource] = p.grants[sc.Resource] || sc.Write
		}
		return p, true
	}
	return Principal{}, false
}
