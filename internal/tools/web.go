package tools

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crieger/scopegw/internal/mcp"
)

const defaultWordlist = "/usr/share/seclists/Discovery/Web-Content/raft-medium-directories.txt"
const fallbackWordlist = "/usr/share/dirb/wordlists/common.txt"

func (c *Catalog) webTools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "gobuster_scan",
			Description: "Directory and file brute-forcing with gobuster.",
			InputSchema: objSchema([]string{"url"}, map[string]any{
				"url":                    strProp("Target URL"),
				"wordlist":               strProp("Path to wordlist file"),
				"extensions":             strProp("File extensions, e.g. \"php,html,txt\""),
				"threads":                intProp("Concurrent threads", 10),
				"exclude_length":         strProp("Comma-separated response lengths to exclude"),
				"status_codes_blacklist": strProp("Comma-separated status codes to exclude"),
			}),
			TargetParam: "url",
			Handler:     c.gobusterScan,
		},
		{
			Name:        "nikto_scan",
			Description: "Web server vulnerability scanning with nikto.",
			InputSchema: objSchema([]string{"target"}, map[string]any{
				"target": strProp("Target URL, e.g. https://example.com"),
			}),
			Handler: c.niktoScan,
		},
		{
			Name:        "sqlmap_scan",
			Description: "SQL injection detection with sqlmap.",
			InputSchema: objSchema([]string{"url"}, map[string]any{
				"url":    strProp("Target URL"),
				"data":   strProp("POST data"),
				"cookie": strProp("HTTP Cookie header value"),
				"level":  intProp("Level of tests (1-5)", 1),
				"risk":   intProp("Risk of tests (1-3)", 1),
			}),
			TargetParam: "url",
			Handler:     c.sqlmapScan,
		},
		{
			Name:        "wpscan_scan",
			Description: "WordPress security scanning with wpscan.",
			InputSchema: objSchema([]string{"url"}, map[string]any{
				"url":       strProp("Target WordPress URL"),
				"enumerate": strProp("What to enumerate (vp, vt, u)"),
				"api_token": strProp("WPScan API token for vulnerability data"),
			}),
			TargetParam: "url",
			Handler:     c.wpscanScan,
		},
		{
			Name:        "ffuf_scan",
			Description: "Fast web fuzzing with ffuf. The URL must contain the FUZZ keyword.",
			InputSchema: objSchema([]string{"url"}, map[string]any{
				"url":         strProp("Target URL with FUZZ keyword, e.g. http://example.com/FUZZ"),
				"wordlist":    strProp("Path to wordlist"),
				"extensions":  strProp("File extensions to fuzz"),
				"match_codes": strProp("HTTP status codes to match"),
			}),
			TargetParam: "url",
			Handler:     c.ffufScan,
		},
		{
			Name:        "httpx_probe",
			Description: "Fast HTTP probing and technology detection with httpx.",
			InputSchema: objSchema([]string{"target"}, map[string]any{
				"target":           strProp("Target URL or domain"),
				"follow_redirects": boolProp("Follow HTTP redirects", true),
				"tech_detect":      boolProp("Detect web technologies", true),
			}),
			Handler: c.httpxProbe,
		},
		{
			Name:        "wafw00f_scan",
			Description: "Web application firewall detection with wafw00f.",
			InputSchema: objSchema([]string{"url"}, map[string]any{
				"url": strProp("Target URL"),
			}),
			TargetParam: "url",
			Handler:     c.wafw00fScan,
		},
		{
			Name:        "gospider_scan",
			Description: "Web crawling with gospider: discovers URLs, forms, subdomains and JavaScript resources.",
			InputSchema: objSchema([]string{"target"}, map[string]any{
				"target":       strProp("Target URL to crawl"),
				"depth":        intProp("Maximum crawl depth", 1),
				"concurrent":   intProp("Concurrent requests", 5),
				"timeout":      intProp("Per-request timeout in seconds", 5),
				"include_subs": boolProp("Include subdomains", false),
				"other_source": boolProp("Use third-party sources (Archive, CommonCrawl, ...)", false),
			}),
			Handler: c.gospiderScan,
		},
		{
			Name:        "http_request",
			Description: "HTTP client for fetching web content, downloading files and testing endpoints. Supports GET, POST, PUT, DELETE with custom headers and body.",
			InputSchema: objSchema([]string{"url"}, map[string]any{
				"url":     strProp("Target URL to request"),
				"method":  strProp("HTTP method (GET, POST, PUT, DELETE, ...)"),
				"headers": strProp("JSON object of request headers"),
				"body":    strProp("Request body for POST/PUT/PATCH"),
				"timeout": intProp("Request timeout in seconds", 30),
			}),
			TargetParam: "url",
			Handler:     c.httpRequest,
		},
	}
}

func (c *Catalog) gobusterScan(ctx context.Context, args map[string]any) (map[string]any, error) {
	url := strArg(args, "url", "")
	wordlist := strArg(args, "wordlist", defaultWordlist)
	extensions := strArg(args, "extensions", "")
	threads := intArg(args, "threads", 10)
	excludeLength := strArg(args, "exclude_length", "")
	statusBlacklist := strArg(args, "status_codes_blacklist", "")

	if err := c.policy.ValidateTarget(url); err != nil {
		return failure("gobuster", url, err), nil
	}

	if _, err := os.Stat(wordlist); err != nil {
		if _, ferr := os.Stat(fallbackWordlist); ferr == nil {
			c.logger.Warn("wordlist missing, using fallback", "wordlist", wordlist, "fallback", fallbackWordlist)
			wordlist = fallbackWordlist
		} else {
			return failure("gobuster", url, err), nil
		}
	}

	outputFile := filepath.Join(os.TempDir(), "gobuster_"+uuid.NewString()+".txt")
	defer os.Remove(outputFile)

	argv := []string{
		"gobuster", "dir",
		"--url", url,
		"--wordlist", wordlist,
		"--output", outputFile,
		"--threads", strconv.Itoa(threads),
		"--no-error",
	}
	if extensions != "" {
		argv = append(argv, "--extensions", extensions)
	}
	if excludeLength != "" {
		argv = append(argv, "--exclude-length", excludeLength)
	}
	if statusBlacklist != "" {
		argv = append(argv, "--status-codes-blacklist", statusBlacklist)
	}

	c.policy.LogExecution("gobuster", url, map[string]any{"wordlist": wordlist, "extensions": extensions, "threads": threads}, "", "executed")
	res := c.run(ctx, argv, 10*time.Minute)
	if res.Err != nil {
		return failure("gobuster", url, res.Err), nil
	}

	findings := readLines(outputFile)

	return map[string]any{
		"tool":             "gobuster",
		"target":           url,
		"success":          res.Success,
		"findings":         findings,
		"findings_count":   len(findings),
		"errors":           res.Stderr,
		"duration_seconds": res.Duration.Seconds(),
	}, nil
}

func (c *Catalog) niktoScan(ctx context.Context, args map[string]any) (map[string]any, error) {
	target := strArg(args, "target", "")

	if err := c.policy.ValidateTarget(target); err != nil {
		return failure("nikto", target, err), nil
	}

	outputFile := filepath.Join(os.TempDir(), "nikto_"+uuid.NewString()+".json")
	defer os.Remove(outputFile)

	// maxtime keeps nikto inside the overall timeout with room to flush its
	// JSON report.
	argv := []string{"nikto", "-h", target, "-maxtime", "1500", "-F", "json", "-o", outputFile}

	c.policy.LogExecution("nikto", target, map[string]any{"maxtime": 1500}, "", "executed")
	res := c.run(ctx, argv, 30*time.Minute)
	if res.Err != nil {
		return failure("nikto", target, res.Err), nil
	}

	findings := []map[string]any{}
	vulnerabilities := []any{}
	if data, err := os.ReadFile(outputFile); err == nil && len(data) > 0 {
		var report map[string]any
		if err := json.Unmarshal(data, &report); err == nil {
			findings = append(findings, report)
			if vulns, ok := report["vulnerabilities"].([]any); ok {
				vulnerabilities = vulns
			}
		}
	}

	return map[string]any{
		"tool":                  "nikto",
		"target":                target,
		"success":               res.Success,
		"findings":              findings,
		"vulnerabilities":       vulnerabilities,
		"vulnerabilities_count": len(vulnerabilities),
		"errors":                res.Stderr,
		"duration_seconds":      res.Duration.Seconds(),
	}, nil
}

func (c *Catalog) sqlmapScan(ctx context.Context, args map[string]any) (map[string]any, error) {
	url := strArg(args, "url", "")
	data := strArg(args, "data", "")
	cookie := strArg(args, "cookie", "")
	level := intArg(args, "level", 1)
	risk := intArg(args, "risk", 1)

	if err := c.policy.ValidateTarget(url); err != nil {
		return failure("sqlmap", url, err), nil
	}

	argv := []string{
		"sqlmap",
		"-u", url,
		"--batch",
		"--level", strconv.Itoa(level),
		"--risk", strconv.Itoa(risk),
		"--output-dir", filepath.Join(os.TempDir(), "sqlmap"),
	}
	if data != "" {
		argv = append(argv, "--data", data)
	}
	if cookie != "" {
		argv = append(argv, "--cookie", cookie)
	}

	c.policy.LogExecution("sqlmap", url, map[string]any{"data": data, "cookie": cookie, "level": level, "risk": risk}, "", "executed")
	res := c.run(ctx, argv, 15*time.Minute)
	if res.Err != nil {
		return failure("sqlmap", url, res.Err), nil
	}

	return map[string]any{
		"tool":             "sqlmap",
		"target":           url,
		"success":          res.Success,
		"output":           res.Stdout,
		"errors":           res.Stderr,
		"duration_seconds": res.Duration.Seconds(),
	}, nil
}

func (c *Catalog) wpscanScan(ctx context.Context, args map[string]any) (map[string]any, error) {
	url := strArg(args, "url", "")
	enumerate := strArg(args, "enumerate", "vp,vt,u")
	apiToken := strArg(args, "api_token", "")

	if err := c.policy.ValidateTarget(url); err != nil {
		return failure("wpscan", url, err), nil
	}

	argv := []string{"wpscan", "--url", url, "--enumerate", enumerate, "--format", "json"}
	if apiToken != "" {
		argv = append(argv, "--api-token", apiToken)
	}

	c.policy.LogExecution("wpscan", url, map[string]any{"enumerate": enumerate}, "", "executed")
	res := c.run(ctx, argv, 10*time.Minute)
	if res.Err != nil {
		return failure("wpscan", url, res.Err), nil
	}

	return map[string]any{
		"tool":             "wpscan",
		"target":           url,
		"success":          res.Success,
		"output":           res.Stdout,
		"errors":           res.Stderr,
		"duration_seconds": res.Duration.Seconds(),
	}, nil
}

func (c *Catalog) ffufScan(ctx context.Context, args map[string]any) (map[string]any, error) {
	url := strArg(args, "url", "")
	wordlist := strArg(args, "wordlist", fallbackWordlist)
	extensions := strArg(args, "extensions", "")
	matchCodes := strArg(args, "match_codes", "200,204,301,302,307,401,403")

	// Validate the URL with the fuzz keyword removed.
	baseURL := strings.ReplaceAll(url, "FUZZ", "")
	if err := c.policy.ValidateTarget(baseURL); err != nil {
		return failure("ffuf", url, err), nil
	}

	outputFile := filepath.Join(os.TempDir(), "ffuf_"+uuid.NewString()+".json")
	defer os.Remove(outputFile)

	argv := []string{
		"ffuf",
		"-u", url,
		"-w", wordlist,
		"-mc", matchCodes,
		"-of", "json",
		"-o", outputFile,
	}
	if extensions != "" {
		argv = append(argv, "-e", extensions)
	}

	c.policy.LogExecution("ffuf", url, map[string]any{"wordlist": wordlist, "extensions": extensions}, "", "executed")
	res := c.run(ctx, argv, 10*time.Minute)
	if res.Err != nil {
		return failure("ffuf", url, res.Err), nil
	}

	output := res.Stdout
	if data, err := os.ReadFile(outputFile); err == nil {
		output = string(data)
	}

	return map[string]any{
		"tool":             "ffuf",
		"target":           url,
		"success":          res.Success,
		"output":           output,
		"errors":           res.Stderr,
		"duration_seconds": res.Duration.Seconds(),
	}, nil
}

func (c *Catalog) httpxProbe(ctx context.Context, args map[string]any) (map[string]any, error) {
	target := strArg(args, "target", "")
	followRedirects := boolArg(args, "follow_redirects", true)
	techDetect := boolArg(args, "tech_detect", true)

	if err := c.policy.ValidateTarget(target); err != nil {
		return failure("httpx", target, err), nil
	}

	argv := []string{"httpx", "-u", target, "-json"}
	if followRedirects {
		argv = append(argv, "-follow-redirects")
	}
	if techDetect {
		argv = append(argv, "-tech-detect")
	}

	c.policy.LogExecution("httpx", target, map[string]any{"follow_redirects": followRedirects, "tech_detect": techDetect}, "", "executed")
	res := c.run(ctx, argv, 5*time.Minute)
	if res.Err != nil {
		return failure("httpx", target, res.Err), nil
	}

	return map[string]any{
		"tool":             "httpx",
		"target":           target,
		"success":          res.Success,
		"output":           res.Stdout,
		"errors":           res.Stderr,
		"duration_seconds": res.Duration.Seconds(),
	}, nil
}

func (c *Catalog) wafw00fScan(ctx context.Context, args map[string]any) (map[string]any, error) {
	url := strArg(args, "url", "")

	if err := c.policy.ValidateTarget(url); err != nil {
		return failure("wafw00f", url, err), nil
	}

	outputFile := filepath.Join(os.TempDir(), "wafw00f_"+uuid.NewString()+".json")
	defer os.Remove(outputFile)

	argv := []string{"wafw00f", url, "-o", outputFile}

	c.policy.LogExecution("wafw00f", url, map[string]any{}, "", "executed")
	res := c.run(ctx, argv, 2*time.Minute)
	if res.Err != nil {
		return failure("wafw00f", url, res.Err), nil
	}

	output := res.Stdout
	if data, err := os.ReadFile(outputFile); err == nil {
		output = string(data)
	}

	return map[string]any{
		"tool":             "wafw00f",
		"target":           url,
		"success":          res.Success,
		"output":           output,
		"errors":           res.Stderr,
		"duration_seconds": res.Duration.Seconds(),
	}, nil
}

func (c *Catalog) gospiderScan(ctx context.Context, args map[string]any) (map[string]any, error) {
	target := strArg(args, "target", "")
	depth := intArg(args, "depth", 1)
	concurrent := intArg(args, "concurrent", 5)
	reqTimeout := intArg(args, "timeout", 5)
	includeSubs := boolArg(args, "include_subs", false)
	otherSource := boolArg(args, "other_source", false)

	if err := c.policy.ValidateTarget(target); err != nil {
		return failure("gospider", target, err), nil
	}

	argv := []string{
		"gospider",
		"-s", target,
		"-d", strconv.Itoa(depth),
		"-c", strconv.Itoa(concurrent),
		"-t", strconv.Itoa(reqTimeout),
		"--json",
	}
	if includeSubs {
		argv = append(argv, "--include-subs")
	}
	if otherSource {
		argv = append(argv, "--other-source")
	}

	c.policy.LogExecution("gospider", target, map[string]any{"depth": depth, "concurrent": concurrent, "include_subs": includeSubs}, "", "executed")
	res := c.run(ctx, argv, 5*time.Minute)
	if res.Err != nil {
		return failure("gospider", target, res.Err), nil
	}

	// JSON Lines on stdout, one finding per line.
	findings := []map[string]any{}
	urls := map[string]struct{}{}
	counts := map[string]int{}
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		findings = append(findings, entry)
		if out, ok := entry["output"].(string); ok {
			urls[out] = struct{}{}
		}
		if typ, ok := entry["type"].(string); ok {
			counts[typ]++
		}
	}

	return map[string]any{
		"tool":           "gospider",
		"target":         target,
		"success":        res.Success,
		"findings":       findings,
		"findings_count": len(findings),
		"unique_urls":    len(urls),
		"categorized": map[string]any{
			"urls_count":       counts["url"],
			"forms_count":      counts["form"],
			"subdomains_count": counts["subdomain"],
			"js_count":         counts["javascript"],
			"aws_count":        counts["aws"],
			"linkfinder_count": counts["linkfinder"],
		},
		"scan_info":        res.Stderr,
		"duration_seconds": res.Duration.Seconds(),
	}, nil
}

func (c *Catalog) httpRequest(ctx context.Context, args map[string]any) (map[string]any, error) {
	url := strArg(args, "url", "")
	method := strings.ToUpper(strArg(args, "method", "GET"))
	headersJSON := strArg(args, "headers", "")
	body := strArg(args, "body", "")
	timeoutSec := intArg(args, "timeout", 30)

	if err := c.policy.ValidateTarget(url); err != nil {
		return failure("http_request", url, err), nil
	}

	headers := map[string]string{}
	if headersJSON != "" {
		if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
			c.logger.Warn("invalid headers json ignored", "error", err)
			headers = map[string]string{}
		}
	}

	c.policy.LogExecution("http_request", url, map[string]any{"method": method}, "", "executed")

	var reqBody io.Reader
	if body != "" && (method == http.MethodPost || method == http.MethodPut || method == "PATCH") {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return failure("http_request", url, err), nil
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	// Self-signed certs are common on assessment targets.
	client := &http.Client{
		Timeout: time.Duration(timeoutSec) * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return failure("http_request", url, err), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return failure("http_request", url, err), nil
	}
	content := string(raw)
	duration := time.Since(start).Seconds()

	respHeaders := map[string]string{}
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	isJSON := strings.Contains(contentType, "application/json")
	isJavascript := strings.Contains(contentType, "javascript") || strings.Contains(contentType, "ecmascript")
	isHTML := strings.Contains(contentType, "text/html")

	var parsed any
	if isJSON {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			parsed = nil
		}
	}

	if len(content) > 50000 {
		content = content[:50000]
	}

	return map[string]any{
		"tool":             "http_request",
		"url":              url,
		"method":           method,
		"success":          true,
		"status_code":      resp.StatusCode,
		"headers":          respHeaders,
		"content":          content,
		"content_length":   len(raw),
		"content_type":     contentType,
		"is_json":          isJSON,
		"is_javascript":    isJavascript,
		"is_html":          isHTML,
		"parsed_json":      parsed,
		"duration_seconds": duration,
	}, nil
}

// readLines returns the non-empty lines of a file, or an empty slice if the
// file is unreadable.
func readLines(path string) []string {
	lines := []string{}
	data, err := os.ReadFile(path)
	if err != nil {
		return lines
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
