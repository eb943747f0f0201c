// Package policy decides whether a requested target is in scope before any
// external tool runs against it. A single Policy instance is built at startup
// and shared, read-only, by every tool handler.
package policy

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/crieger/scopegw/internal/config"
	"github.com/crieger/scopegw/internal/log"
)

// ErrInvalidTarget marks malformed input: unparsable IPs, empty targets,
// dangerous argument patterns. Caller-input problems, never retried.
var ErrInvalidTarget = errors.New("invalid target")

// ErrUnauthorizedTarget marks a well-formed target that fails policy, so
// callers can tell "fix your input" from "this target is out of scope".
var ErrUnauthorizedTarget = errors.New("unauthorized target")

// defaultBlacklist is always enforced regardless of configuration.
var defaultBlacklist = []string{
	"169.254.0.0/16", // Link-local
	"224.0.0.0/4",    // Multicast
	"240.0.0.0/4",    // Reserved
}

// dangerousPatterns are shell-injection signatures rejected in tool arguments.
// A textual defense-in-depth check, not a shell grammar parser; commands are
// always executed without a shell, this only catches operator mistakes and
// hostile argument smuggling early.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`;\s*rm\s+-rf`), // destructive chained command
	regexp.MustCompile(`\|\s*sh`),      // pipe to shell
	regexp.MustCompile(`&&\s*`),        // command chaining
	regexp.MustCompile(`\$\(`),         // command substitution
	regexp.MustCompile("`"),            // backtick command substitution
}

// AuditSink receives tool execution audit records.
type AuditSink interface {
	Record(entry AuditEntry) error
}

// AuditEntry is a single audit trail record.
type AuditEntry struct {
	Timestamp time.Time
	Tool      string
	Target    string
	Params    map[string]any
	UserID    string
	Result    string
}

// Policy validates targets against authorized networks, blacklists, and
// domain allow-lists. Immutable after construction.
type Policy struct {
	authorizedNetworks  []*net.IPNet
	blacklistedNetworks []*net.IPNet
	authorizedDomains   []string

	audit  AuditSink
	logger *slog.Logger
}

// New builds a Policy from configuration. The default blacklist ranges are
// always appended. An invalid CIDR in cfg is an error; config validation
// should have caught it earlier.
func New(cfg config.SecurityConfig, audit AuditSink) (*Policy, error) {
	p := &Policy{
		audit:  audit,
		logger: log.WithComponent("policy"),
	}

	for _, cidr := range cfg.AuthorizedNetworks {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid authorized network %q: %w", cidr, err)
		}
		p.authorizedNetworks = append(p.authorizedNetworks, network)
	}

	blacklist := append([]string{}, cfg.BlacklistedNetworks...)
	blacklist = append(blacklist, defaultBlacklist...)
	for _, cidr := range blacklist {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid blacklisted network %q: %w", cidr, err)
		}
		p.blacklistedNetworks = append(p.blacklistedNetworks, network)
	}

	for _, d := range cfg.AuthorizedDomains {
		d = strings.TrimSpace(d)
		if d != "" {
			p.authorizedDomains = append(p.authorizedDomains, d)
		}
	}

	p.logger.Info("policy initialized",
		"authorized_networks", len(p.authorizedNetworks),
		"blacklisted_networks", len(p.blacklistedNetworks),
		"authorized_domains", len(p.authorizedDomains),
	)
	return p, nil
}

// ValidateIP checks an IPv4 address against the blacklist and allow-list.
// The blacklist always wins. With no allow-list configured, any
// non-blacklisted address is authorized (permissive lab default).
func (p *Policy) ValidateIP(ipStr string) error {
	ip := net.ParseIP(ipStr)
	if ip == nil || ip.To4() == nil {
		return fmt.Errorf("%w: invalid IP address format: %s", ErrInvalidTarget, ipStr)
	}
	ip = ip.To4()

	for _, network := range p.blacklistedNetworks {
		if network.Contains(ip) {
			p.logger.Warn("target in blacklisted network", "ip", ipStr, "network", network.String())
			return fmt.Errorf("%w: %s is in blacklisted network", ErrUnauthorizedTarget, ipStr)
		}
	}

	if len(p.authorizedNetworks) == 0 {
		p.logger.Debug("target validated, no network restrictions configured", "ip", ipStr)
		return nil
	}

	for _, network := range p.authorizedNetworks {
		if network.Contains(ip) {
			p.logger.Debug("target validated", "ip", ipStr, "network", network.String())
			return nil
		}
	}

	p.logger.Warn("target not in any authorized network", "ip", ipStr)
	return fmt.Errorf("%w: %s is not in authorized networks", ErrUnauthorizedTarget, ipStr)
}

// ValidateHostname checks a hostname against the authorized domain suffixes.
// Scheme and port are stripped first. An empty domain list is permissive.
func (p *Policy) ValidateHostname(hostname string) error {
	hostname = stripSchemeAndPort(hostname)

	if len(p.authorizedDomains) == 0 {
		p.logger.Debug("hostname validated, no domain restrictions configured", "hostname", hostname)
		return nil
	}

	for _, domain := range p.authorizedDomains {
		if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
			p.logger.Debug("hostname validated", "hostname", hostname, "domain", domain)
			return nil
		}
	}

	p.logger.Warn("hostname not in authorized domains", "hostname", hostname)
	return fmt.Errorf("%w: hostname %s is not in authorized domains", ErrUnauthorizedTarget, hostname)
}

// ValidateTarget validates any target shape: IP, hostname, URL, or CIDR range.
func (p *Policy) ValidateTarget(target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return fmt.Errorf("%w: target must be a non-empty string", ErrInvalidTarget)
	}

	p.logger.Debug("validating target", "target", target)

	// URL: extract host, try IP first, fall back to hostname.
	if strings.Contains(target, "://") {
		host := stripSchemeAndPort(target)
		if err := p.ValidateIP(host); err != nil {
			if errors.Is(err, ErrInvalidTarget) {
				return p.ValidateHostname(host)
			}
			return err
		}
		return nil
	}

	// CIDR: validate the network address as an IP.
	if strings.Contains(target, "/") {
		_, network, err := net.ParseCIDR(target)
		if err != nil {
			return fmt.Errorf("%w: invalid CIDR notation: %s", ErrInvalidTarget, target)
		}
		return p.ValidateIP(network.IP.String())
	}

	// Bare string: IP first, then hostname.
	if err := p.ValidateIP(target); err != nil {
		if errors.Is(err, ErrInvalidTarget) {
			return p.ValidateHostname(target)
		}
		return err
	}
	return nil
}

// ValidateCommandArgs scans arguments for shell-injection signatures.
func (p *Policy) ValidateCommandArgs(args []string) error {
	joined := strings.Join(args, " ")

	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(joined) {
			p.logger.Error("dangerous pattern detected in args", "pattern", pattern.String())
			return fmt.Errorf("%w: dangerous command pattern detected", ErrInvalidTarget)
		}
	}
	return nil
}

// LogExecution emits a structured audit record. Side-effect only: sink
// failures are logged and swallowed so auditing can never break a tool call.
func (p *Policy) LogExecution(tool, target string, params map[string]any, userID, result string) {
	if userID == "" {
		userID = "unknown"
	}
	entry := AuditEntry{
		Timestamp: time.Now().UTC(),
		Tool:      tool,
		Target:    target,
		Params:    params,
		UserID:    userID,
		Result:    result,
	}

	p.logger.Info("audit",
		"tool", entry.Tool,
		"target", entry.Target,
		"user_id", entry.UserID,
		"result", entry.Result,
	)

	if p.audit != nil {
		if err := p.audit.Record(entry); err != nil {
			p.logger.Error("failed to record audit entry", "error", err)
		}
	}
}

// stripSchemeAndPort reduces a URL or host:port string to a bare host.
func stripSchemeAndPort(target string) string {
	host := target
	if strings.Contains(host, "://") {
		if u, err := url.Parse(host); err == nil && u.Host != "" {
			host = u.Host
		} else {
			// Unparsable URL: fall back to chopping the scheme manually.
			if idx := strings.Index(host, "://"); idx >= 0 {
				host = host[idx+3:]
			}
			if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
				host = host[:idx]
			}
		}
	}
	if idx := strings.Index(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	return host
}
