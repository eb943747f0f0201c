package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crieger/scopegw/internal/mcp"
)

func (c *Catalog) networkTools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "nmap_scan",
			Description: "Network scanning and service detection with nmap. Supports service version detection, OS detection and script scanning.",
			InputSchema: objSchema([]string{"target"}, map[string]any{
				"target":    strProp("IP address, hostname, or CIDR range"),
				"scan_type": strProp("Scan type (sS, sT, sV, sC, A, ...)"),
				"ports":     strProp("Port specification, e.g. \"80,443\" or \"1-1000\""),
				"arguments": strProp("Additional nmap arguments"),
			}),
			Handler: c.nmapScan,
		},
		{
			Name:        "masscan_scan",
			Description: "High-speed port scanning with masscan. Suited for large ranges at a controlled packet rate.",
			InputSchema: objSchema([]string{"target"}, map[string]any{
				"target": strProp("IP address or CIDR range"),
				"ports":  strProp("Port range, e.g. \"1-65535\" or \"80,443\""),
				"rate":   intProp("Packets per second", 1000),
			}),
			Handler: c.masscanScan,
		},
		{
			Name:        "rustscan_scan",
			Description: "Fast port discovery with rustscan.",
			InputSchema: objSchema([]string{"target"}, map[string]any{
				"target": strProp("IP address or hostname"),
				"ports":  strProp("Port range (empty for all)"),
				"ulimit": intProp("File descriptor limit", 5000),
			}),
			Handler: c.rustscanScan,
		},
		{
			Name:        "subfinder_scan",
			Description: "Passive subdomain discovery with subfinder.",
			InputSchema: objSchema([]string{"domain"}, map[string]any{
				"domain":  strProp("Target domain"),
				"sources": strProp("Comma-separated list of sources"),
			}),
			TargetParam: "domain",
			Handler:     c.subfinderScan,
		},
		{
			Name:        "nuclei_scan",
			Description: "Template-based vulnerability scanning with nuclei.",
			InputSchema: objSchema([]string{"target"}, map[string]any{
				"target":    strProp("Target URL or host"),
				"templates": strProp("Template tags or paths (overrides profile)"),
				"severity":  strProp("Severity filter (info, low, medium, high, critical)"),
				"profile":   strProp("Scan profile (default pentest; empty disables)"),
			}),
			Handler: c.nucleiScan,
		},
		{
			Name:        "theharvester_scan",
			Description: "OSINT gathering with theHarvester: emails, subdomains and hosts from public sources.",
			InputSchema: objSchema([]string{"domain"}, map[string]any{
				"domain":  strProp("Target domain"),
				"sources": strProp("Data sources (google, bing, linkedin, ...)"),
				"limit":   intProp("Result limit", 500),
			}),
			TargetParam: "domain",
			Handler:     c.theharvesterScan,
		},
	}
}

func (c *Catalog) nmapScan(ctx context.Context, args map[string]any) (map[string]any, error) {
	target := strArg(args, "target", "")
	scanType := strArg(args, "scan_type", "sV")
	ports := strArg(args, "ports", "")
	extra := strArg(args, "arguments", "")

	if err := c.policy.ValidateTarget(target); err != nil {
		return failure("nmap", target, err), nil
	}

	argv := []string{"nmap", "-" + scanType}
	if ports != "" {
		argv = append(argv, "-p", ports)
	}
	if extra != "" {
		fields := strings.Fields(extra)
		if err := c.policy.ValidateCommandArgs(fields); err != nil {
			return failure("nmap", target, err), nil
		}
		argv = append(argv, fields...)
	}
	// XML report to stdout.
	argv = append(argv, "-oX", "-", target)

	c.policy.LogExecution("nmap", target, map[string]any{"scan_type": scanType, "ports": ports, "arguments": extra}, "", "executed")
	res := c.run(ctx, argv, 10*time.Minute)
	if res.Err != nil {
		return failure("nmap", target, res.Err), nil
	}

	out := map[string]any{
		"tool":             "nmap",
		"target":           target,
		"scan_type":        scanType,
		"success":          res.Success,
		"scan_info":        res.Stderr,
		"duration_seconds": res.Duration.Seconds(),
	}

	if res.Success && res.Stdout != "" {
		hosts, err := parseNmapXML([]byte(res.Stdout))
		if err != nil {
			out["xml_output"] = res.Stdout
			out["parse_error"] = err.Error()
			return out, nil
		}
		out["hosts"] = hosts
		out["hosts_count"] = len(hosts)
	} else {
		out["hosts"] = []map[string]any{}
		out["hosts_count"] = 0
	}
	return out, nil
}

func (c *Catalog) masscanScan(ctx context.Context, args map[string]any) (map[string]any, error) {
	target := strArg(args, "target", "")
	ports := strArg(args, "ports", "1-1000")
	rate := intArg(args, "rate", 1000)

	if err := c.policy.ValidateTarget(target); err != nil {
		return failure("masscan", target, err), nil
	}

	argv := []string{"masscan", target, "-p", ports, "--rate", strconv.Itoa(rate), "-oJ", "-"}

	c.policy.LogExecution("masscan", target, map[string]any{"ports": ports, "rate": rate}, "", "executed")
	res := c.run(ctx, argv, 10*time.Minute)
	if res.Err != nil {
		return failure("masscan", target, res.Err), nil
	}

	return map[string]any{
		"tool":             "masscan",
		"target":           target,
		"ports":            ports,
		"rate":             rate,
		"success":          res.Success,
		"output":           res.Stdout,
		"errors":           res.Stderr,
		"duration_seconds": res.Duration.Seconds(),
	}, nil
}

func (c *Catalog) rustscanScan(ctx context.Context, args map[string]any) (map[string]any, error) {
	target := strArg(args, "target", "")
	ports := strArg(args, "ports", "")
	ulimit := intArg(args, "ulimit", 5000)

	if err := c.policy.ValidateTarget(target); err != nil {
		return failure("rustscan", target, err), nil
	}

	argv := []string{"rustscan", "-a", target, "--ulimit", strconv.Itoa(ulimit)}
	if ports != "" {
		argv = append(argv, "-p", ports)
	}

	c.policy.LogExecution("rustscan", target, map[string]any{"ports": ports, "ulimit": ulimit}, "", "executed")
	res := c.run(ctx, argv, 5*time.Minute)
	if res.Err != nil {
		return failure("rustscan", target, res.Err), nil
	}

	return map[string]any{
		"tool":             "rustscan",
		"target":           target,
		"success":          res.Success,
		"output":           res.Stdout,
		"errors":           res.Stderr,
		"duration_seconds": res.Duration.Seconds(),
	}, nil
}

func (c *Catalog) subfinderScan(ctx context.Context, args map[string]any) (map[string]any, error) {
	domain := strArg(args, "domain", "")
	sources := strArg(args, "sources", "")

	if err := c.policy.ValidateHostname(domain); err != nil {
		return failure("subfinder", domain, err), nil
	}

	argv := []string{"subfinder", "-d", domain, "-json"}
	if sources != "" {
		argv = append(argv, "-sources", sources)
	}

	c.policy.LogExecution("subfinder", domain, map[string]any{"sources": sources}, "", "executed")
	res := c.run(ctx, argv, 5*time.Minute)
	if res.Err != nil {
		return failure("subfinder", domain, res.Err), nil
	}

	return map[string]any{
		"tool":             "subfinder",
		"domain":           domain,
		"success":          res.Success,
		"output":           res.Stdout,
		"errors":           res.Stderr,
		"duration_seconds": res.Duration.Seconds(),
	}, nil
}

func (c *Catalog) nucleiScan(ctx context.Context, args map[string]any) (map[string]any, error) {
	target := strArg(args, "target", "")
	templates := strArg(args, "templates", "")
	severity := strArg(args, "severity", "")
	profile := strArg(args, "profile", "pentest")

	if err := c.policy.ValidateTarget(target); err != nil {
		return failure("nuclei", target, err), nil
	}

	// nuclei writes findings as JSONL to a scratch file; stdout is progress
	// noise.
	outputFile := filepath.Join(os.TempDir(), "nuclei_"+uuid.NewString()+".jsonl")
	defer os.Remove(outputFile)

	argv := []string{"nuclei", "-u", target, "-jsonl", "-o", outputFile}
	if templates != "" {
		argv = append(argv, "-t", templates)
	} else if profile != "" {
		argv = append(argv, "-profile", profile)
	}
	if severity != "" {
		argv = append(argv, "-s", severity)
	}

	c.policy.LogExecution("nuclei", target, map[string]any{"templates": templates, "severity": severity, "profile": profile}, "", "executed")
	res := c.run(ctx, argv, 10*time.Minute)
	if res.Err != nil {
		return failure("nuclei", target, res.Err), nil
	}

	findings := readJSONLines(outputFile)

	return map[string]any{
		"tool":             "nuclei",
		"target":           target,
		"success":          res.Success,
		"findings":         findings,
		"findings_count":   len(findings),
		"scan_info":        res.Stderr,
		"duration_seconds": res.Duration.Seconds(),
	}, nil
}

func (c *Catalog) theharvesterScan(ctx context.Context, args map[string]any) (map[string]any, error) {
	domain := strArg(args, "domain", "")
	sources := strArg(args, "sources", "all")
	limit := intArg(args, "limit", 500)

	if err := c.policy.ValidateHostname(domain); err != nil {
		return failure("theharvester", domain, err), nil
	}

	argv := []string{"theHarvester", "-d", domain, "-b", sources, "-l", strconv.Itoa(limit)}

	c.policy.LogExecution("theharvester", domain, map[string]any{"sources": sources, "limit": limit}, "", "executed")
	res := c.run(ctx, argv, 5*time.Minute)
	if res.Err != nil {
		return failure("theharvester", domain, res.Err), nil
	}

	return map[string]any{
		"tool":             "theharvester",
		"domain":           domain,
		"success":          res.Success,
		"output":           res.Stdout,
		"errors":           res.Stderr,
		"duration_seconds": res.Duration.Seconds(),
	}, nil
}

// readJSONLines parses a JSONL file, skipping blank and malformed lines.
// A missing file yields an empty slice.
func readJSONLines(path string) []map[string]any {
	findings := []map[string]any{}
	data, err := os.ReadFile(path)
	if err != nil {
		return findings
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		findings = append(findings, entry)
	}
	return findings
}
