package tools

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/crieger/scopegw/internal/mcp"
)

func (c *Catalog) cloudTools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "prowler_scan",
			Description: "Cloud security assessment with Prowler for AWS, Azure and GCP. Runs CIS benchmark checks.",
			InputSchema: objSchema(nil, map[string]any{
				"provider": strProp("Cloud provider (aws, azure, gcp)"),
				"profile":  strProp("AWS profile name or Azure subscription"),
				"services": strProp("Specific services to scan"),
				"severity": strProp("Severity filter (critical, high, medium, low)"),
			}),
			TargetParam: "provider",
			Handler:     c.prowlerScan,
		},
		{
			Name:        "scoutsuite_scan",
			Description: "Multi-cloud security auditing with Scout Suite.",
			InputSchema: objSchema(nil, map[string]any{
				"provider": strProp("Cloud provider (aws, azure, gcp, alibaba, oci)"),
				"profile":  strProp("Cloud credentials profile"),
				"services": strProp("Specific services to audit"),
			}),
			TargetParam: "provider",
			Handler:     c.scoutsuiteScan,
		},
	}
}

// Cloud assessments run against credentialed provider accounts, not network
// targets, so there is no target validation step.

func (c *Catalog) prowlerScan(ctx context.Context, args map[string]any) (map[string]any, error) {
	provider := strArg(args, "provider", "aws")
	profile := strArg(args, "profile", "default")
	services := strArg(args, "services", "")
	severity := strArg(args, "severity", "")

	argv := []string{"prowler", provider}
	if provider == "aws" {
		argv = append(argv, "-p", profile)
	}
	if services != "" {
		argv = append(argv, "-s", services)
	}
	if severity != "" {
		argv = append(argv, "--severity", severity)
	}
	argv = append(argv, "-M", "json")

	c.policy.LogExecution("prowler", provider+":"+profile, map[string]any{"services": services, "severity": severity}, "", "executed")
	res := c.run(ctx, argv, 30*time.Minute)
	if res.Err != nil {
		return failure("prowler", provider, res.Err), nil
	}

	return map[string]any{
		"tool":             "prowler",
		"provider":         provider,
		"success":          res.Success,
		"output":           res.Stdout,
		"errors":           res.Stderr,
		"duration_seconds": res.Duration.Seconds(),
	}, nil
}

func (c *Catalog) scoutsuiteScan(ctx context.Context, args map[string]any) (map[string]any, error) {
	provider := strArg(args, "provider", "aws")
	profile := strArg(args, "profile", "default")
	services := strArg(args, "services", "")

	argv := []string{
		"scout",
		provider,
		"--profile", profile,
		"--report-dir", filepath.Join(os.TempDir(), "scoutsuite"),
		"--no-browser",
	}
	if services != "" {
		argv = append(argv, "--services", services)
	}

	c.policy.LogExecution("scoutsuite", provider+":"+profile, map[string]any{"services": services}, "", "executed")
	res := c.run(ctx, argv, 30*time.Minute)
	if res.Err != nil {
		return failure("scoutsuite", provider, res.Err), nil
	}

	return map[string]any{
		"tool":             "scoutsuite",
		"provider":         provider,
		"success":          res.Success,
		"output":           res.Stdout,
		"errors":           res.Stderr,
		"duration_seconds": res.Duration.Seconds(),
	}, nil
}
