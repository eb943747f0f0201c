package api

// ScanStartRequest is the JSON body for POST /scans/start.
type ScanStartRequest struct {
	Tool       string         `json:"tool"`
	Target     string         `json:"target"`
	Arguments  map[string]any `json:"arguments,omitempty"`
	WebhookURL string         `json:"webhook_url,omitempty"`
}

// ScanStartResponse is returned on successful job creation.
type ScanStartResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ScanCancelResponse is returned by POST /scans/{job_id}/cancel.
type ScanCancelResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	ToolsLoaded   int    `json:"tools_loaded"`
	ActiveJobs    int    `json:"active_jobs"`
}

// RootResponse is the unauthenticated service summary at GET /.
type RootResponse struct {
	Service   string   `json:"service"`
	Version   string   `json:"version"`
	Transport string   `json:"transport"`
	Endpoints []string `json:"endpoints"`
}
