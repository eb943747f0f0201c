package tools

import (
	"context"
	"strconv"
	"time"

	"github.com/crieger/scopegw/internal/mcp"
)

func (c *Catalog) binaryTools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "strings_analyze",
			Description: "Extract printable strings from binary files.",
			InputSchema: objSchema([]string{"file_path"}, map[string]any{
				"file_path":  strProp("Path to binary file"),
				"min_length": intProp("Minimum string length", 4),
				"encoding":   strProp("Encoding (s=7-bit, S=8-bit, b=16-bit, l=32-bit)"),
			}),
			TargetParam: "file_path",
			Handler:     c.stringsAnalyze,
		},
		{
			Name:        "binwalk_analyze",
			Description: "Firmware analysis and extraction with binwalk.",
			InputSchema: objSchema([]string{"file_path"}, map[string]any{
				"file_path": strProp("Path to firmware file"),
				"extract":   boolProp("Extract discovered files", false),
				"signature": boolProp("Scan for signatures", true),
			}),
			TargetParam: "file_path",
			Handler:     c.binwalkAnalyze,
		},
		{
			Name:        "radare2_analyze",
			Description: "Binary analysis with radare2 in batch mode.",
			InputSchema: objSchema([]string{"file_path"}, map[string]any{
				"file_path": strProp("Path to binary file"),
				"command":   strProp("Radare2 commands to execute"),
			}),
			TargetParam: "file_path",
			Handler:     c.radare2Analyze,
		},
	}
}

// Binary analysis operates on local files, so there is no network target to
// authorize; file paths still pass through command argument screening.

func (c *Catalog) stringsAnalyze(ctx context.Context, args map[string]any) (map[string]any, error) {
	filePath := strArg(args, "file_path", "")
	minLength := intArg(args, "min_length", 4)
	encoding := strArg(args, "encoding", "s")

	if err := c.policy.ValidateCommandArgs([]string{filePath}); err != nil {
		return failure("strings", filePath, err), nil
	}

	argv := []string{"strings", "-" + encoding, "-n", strconv.Itoa(minLength), filePath}

	c.policy.LogExecution("strings", filePath, map[string]any{"min_length": minLength, "encoding": encoding}, "", "executed")
	res := c.run(ctx, argv, 2*time.Minute)
	if res.Err != nil {
		return failure("strings", filePath, res.Err), nil
	}

	return map[string]any{
		"tool":             "strings",
		"file":             filePath,
		"success":          res.Success,
		"output":           res.Stdout,
		"errors":           res.Stderr,
		"duration_seconds": res.Duration.Seconds(),
	}, nil
}

func (c *Catalog) binwalkAnalyze(ctx context.Context, args map[string]any) (map[string]any, error) {
	filePath := strArg(args, "file_path", "")
	extract := boolArg(args, "extract", false)
	signature := boolArg(args, "signature", true)

	if err := c.policy.ValidateCommandArgs([]string{filePath}); err != nil {
		return failure("binwalk", filePath, err), nil
	}

	argv := []string{"binwalk"}
	if extract {
		argv = append(argv, "-e")
	}
	if signature {
		argv = append(argv, "-B")
	}
	argv = append(argv, filePath)

	c.policy.LogExecution("binwalk", filePath, map[string]any{"extract": extract, "signature": signature}, "", "executed")
	res := c.run(ctx, argv, 5*time.Minute)
	if res.Err != nil {
		return failure("binwalk", filePath, res.Err), nil
	}

	return map[string]any{
		"tool":             "binwalk",
		"file":             filePath,
		"success":          res.Success,
		"output":           res.Stdout,
		"errors":           res.Stderr,
		"duration_seconds": res.Duration.Seconds(),
	}, nil
}

func (c *Catalog) radare2Analyze(ctx context.Context, args map[string]any) (map[string]any, error) {
	filePath := strArg(args, "file_path", "")
	command := strArg(args, "command", "aaa;pdf")

	if err := c.policy.ValidateCommandArgs([]string{filePath}); err != nil {
		return failure("radare2", filePath, err), nil
	}

	argv := []string{"r2", "-q", "-c", command, filePath}

	c.policy.LogExecution("radare2", filePath, map[string]any{"command": command}, "", "executed")
	res := c.run(ctx, argv, 5*time.Minute)
	if res.Err != nil {
		return failure("radare2", filePath, res.Err), nil
	}

	return map[string]any{
		"tool":             "radare2",
		"file":             filePath,
		"command":          command,
		"success":          res.Success,
		"output":           res.Stdout,
		"errors":           res.Stderr,
		"duration_seconds": res.Duration.Seconds(),
	}, nil
}
