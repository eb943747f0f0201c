package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/crieger/scopegw/internal/mcp"
	"github.com/crieger/scopegw/internal/scan"
)

// handleRoot handles GET / (no auth): a service summary for discovery.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, RootResponse{
		Service:   s.config.ServerName,
		Version:   s.config.Version,
		Transport: "streamable-http",
		Endpoints: []string{
			"/healthz", "/tools", "/messages", "/scans/start", "/scans",
			"/scans/{job_id}/status", "/scans/{job_id}/results",
			"/scans/{job_id}/cancel", "/events", "/openapi.json",
		},
	})
}

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	running := s.manager.ListJobs(scan.StatusRunning, "", 0)
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		ToolsLoaded:   s.registry.Len(),
		ActiveJobs:    len(running),
	})
}

// handleListTools handles GET /tools: the REST view of the tool catalog.
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	tools := s.registry.List()
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"inputSchema": t.InputSchema,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"tools": out, "count": len(out)})
}

// handleMessages handles POST /messages: one JSON-RPC request per call.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	var req mcp.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, mcp.Response{
			JSONRPC: "2.0",
			Error:   &mcp.RPCError{Code: mcp.CodeInternalError, Message: "invalid JSON body"},
		})
		return
	}

	resp := s.dispatcher.Dispatch(r.Context(), req)
	respondJSON(w, http.StatusOK, resp)
}

// handleMessagesInfo handles GET /messages: transport discovery info.
func (s *Server) handleMessagesInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.dispatcher.ServerInfo())
}

// handleOpenAPI handles GET /openapi.json.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc(s.registry.List()))
}

// handleScanStart handles POST /scans/start: creates and launches a
// background job for a registered tool.
func (s *Server) handleScanStart(w http.ResponseWriter, r *http.Request) {
	var req ScanStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Tool == "" {
		s.writeError(w, http.StatusBadRequest, "tool is required")
		return
	}
	if req.Target == "" {
		s.writeError(w, http.StatusBadRequest, "target is required")
		return
	}

	tool, ok := s.registry.Get(req.Tool)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown tool: "+req.Tool)
		return
	}

	// Merge the target into the tool's argument map under the parameter name
	// the tool expects.
	args := make(map[string]any, len(req.Arguments)+1)
	for k, v := range req.Arguments {
		args[k] = v
	}
	args[tool.TargetParam] = req.Target

	jobID := s.manager.CreateJob(req.Tool, req.Target, args, req.WebhookURL)
	if err := s.manager.StartJob(jobID, scan.Handler(tool.Handler)); err != nil {
		s.logger.Error("failed to start scan job", "job_id", jobID, "tool", req.Tool, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to start job")
		return
	}

	respondJSON(w, http.StatusAccepted, ScanStartResponse{
		JobID:   jobID,
		Status:  string(scan.StatusPending),
		Message: "Scan job created",
	})
}

// handleScanList handles GET /scans with optional status, tool and limit
// query filters.
func (s *Server) handleScanList(w http.ResponseWriter, r *http.Request) {
	var status scan.Status
	if v := r.URL.Query().Get("status"); v != "" {
		parsed, err := scan.ParseStatus(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = parsed
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	jobs := s.manager.ListJobs(status, r.URL.Query().Get("tool"), limit)
	respondJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

// handleScanStatus handles GET /scans/{jobID}/status.
func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	summary, err := s.manager.GetJobStatus(jobID)
	if err != nil {
		if errors.Is(err, scan.ErrJobNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// handleScanResults handles GET /scans/{jobID}/results.
func (s *Server) handleScanResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	detail, err := s.manager.GetJobResults(jobID)
	if err != nil {
		if errors.Is(err, scan.ErrJobNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// handleScanCancel handles POST /scans/{jobID}/cancel. Cancelling a job that
// is already terminal is a conflict; an unknown ID is not found.
func (s *Server) handleScanCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if s.manager.CancelJob(jobID) {
		respondJSON(w, http.StatusOK, ScanCancelResponse{
			JobID:   jobID,
			Status:  string(scan.StatusCancelled),
			Message: "Scan job cancelled",
		})
		return
	}

	if _, err := s.manager.GetJobStatus(jobID); errors.Is(err, scan.ErrJobNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeError(w, http.StatusConflict, "job is not cancellable")
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
