package watch

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Event is one SSE frame from the gateway's /events stream.
type Event struct {
	ID   int64
	Type string
	At   time.Time
	Data []byte
}

// --- Message types ---

type eventMsg Event

type healthMsg struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	ToolsLoaded   int    `json:"tools_loaded"`
	ActiveJobs    int    `json:"active_jobs"`
}

// jobRow mirrors the job summary from GET /scans.
type jobRow struct {
	JobID           string   `json:"job_id"`
	Tool            string   `json:"tool_name"`
	Target          string   `json:"target"`
	Status          string   `json:"status"`
	CreatedAt       string   `json:"created_at"`
	DurationSeconds *float64 `json:"duration_seconds"`
}

type jobsMsg []jobRow

type tickMsg time.Time

type errMsg error

type sseDisconnectedMsg struct{}
type reconnectMsg struct{}

// --- Commands ---

// subscribeToEvents connects to the SSE /events endpoint and feeds events
// into the provided channel. Returns sseDisconnectedMsg when the connection
// drops.
func subscribeToEvents(apiURL, apiKey string, ch chan<- Event) tea.Cmd {
	return func() tea.Msg {
		client := &http.Client{}
		req, err := http.NewRequest("GET", apiURL+"/events", nil)
		if err != nil {
			return errMsg(err)
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)

		resp, err := client.Do(req)
		if err != nil {
			return sseDisconnectedMsg{}
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		var current Event

		for scanner.Scan() {
			line := scanner.Text()

			if line == "" {
				if len(current.Data) > 0 {
					current.At = time.Now()
					ch <- current
					current = Event{}
				}
				continue
			}

			if strings.HasPrefix(line, "id: ") {
				if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
					current.ID = id
				}
			} else if strings.HasPrefix(line, "event: ") {
				current.Type = line[7:]
			} else if strings.HasPrefix(line, "data: ") {
				current.Data = []byte(line[6:])
			}
		}

		return sseDisconnectedMsg{}
	}
}

// receiveNextEvent waits for the next event from the channel.
func receiveNextEvent(ch <-chan Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

// fetchHealth queries the /healthz endpoint.
func fetchHealth(apiURL, apiKey string) tea.Msg {
	client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequest("GET", apiURL+"/healthz", nil)
	if err != nil {
		return errMsg(err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var h healthMsg
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return errMsg(err)
	}
	return h
}

// fetchJobs queries GET /scans for the job table.
func fetchJobs(apiURL, apiKey string) tea.Msg {
	client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequest("GET", apiURL+"/scans?limit=50", nil)
	if err != nil {
		return errMsg(err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var body struct {
		Jobs []jobRow `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return errMsg(err)
	}
	return jobsMsg(body.Jobs)
}
