package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ssePayload is the data line of one /events frame. The job fields are
// flattened into the envelope so shell clients can filter with a single jq
// expression.
type ssePayload struct {
	At     string `json:"at"`
	JobID  string `json:"job_id"`
	Tool   string `json:"tool"`
	Target string `json:"target"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// handleEvents streams scan lifecycle events as SSE. Clients resume after a
// dropped connection by sending Last-Event-ID; anything still inside the
// hub's replay window is re-delivered before live events start.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, ev := range s.events.Replay(resumeCursor(r)) {
		if _, err := fmt.Fprint(w, sseFrame(ev)); err != nil {
			return
		}
	}
	flusher.Flush()

	ch, cancel := s.events.Subscribe()
	defer cancel()

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if _, err := fmt.Fprint(w, sseFrame(ev)); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			// Comment line; keeps proxies from idling out the stream.
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// resumeCursor reads the Last-Event-ID header. Absent or malformed values
// mean "replay everything available".
func resumeCursor(r *http.Request) int64 {
	v := r.Header.Get("Last-Event-ID")
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// sseFrame renders one event as an SSE frame: id, event (the lifecycle
// kind), and a single-line JSON data payload.
func sseFrame(ev Event) string {
	payload := ssePayload{
		At:     ev.At.Format(time.RFC3339Nano),
		JobID:  ev.Job.JobID,
		Tool:   ev.Job.Tool,
		Target: ev.Job.Target,
		Status: string(ev.Job.Status),
		Error:  ev.Job.Error,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "id: %d\n", ev.ID)
	if ev.Kind != "" {
		fmt.Fprintf(&b, "event: %s\n", ev.Kind)
	}
	fmt.Fprintf(&b, "data: %s\n\n", data)
	return b.String()
}
