package scan

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a scan job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return Status(s), nil
	}
	return "", errors.New("invalid status: " + s)
}

// ErrJobNotFound is returned for operations on unknown or expired job IDs.
var ErrJobNotFound = errors.New("job not found")

// Handler executes one tool invocation with named arguments and returns a
// structured result containing at least a "success" key. Handlers perform
// their own target validation before spawning anything.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Job is one tracked background tool invocation. All fields are owned by the
// Manager and mutated only under its lock.
type Job struct {
	ID          string
	Tool        string
	Target      string
	Arguments   map[string]any
	WebhookURL  string
	Status      Status
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Result      map[string]any
	Error       string

	// cancel aborts the running handler's context; done is closed when the
	// handler goroutine has fully returned (process dead, result recorded).
	cancel context.CancelFunc
	done   chan struct{}
}

// Summary is the lightweight job view returned by status and list calls.
type Summary struct {
	JobID           string         `json:"job_id"`
	Tool            string         `json:"tool_name"`
	Target          string         `json:"target"`
	Arguments       map[string]any `json:"arguments"`
	Status          Status         `json:"status"`
	CreatedAt       string         `json:"created_at"`
	StartedAt       *string        `json:"started_at"`
	CompletedAt     *string        `json:"completed_at"`
	DurationSeconds *float64       `json:"duration_seconds"`
	Error           string         `json:"error,omitempty"`
	HasResults      bool           `json:"has_results,omitempty"`
}

// Detail is the full job view including the result payload.
type Detail struct {
	JobID           string         `json:"job_id"`
	Status          Status         `json:"status"`
	Tool            string         `json:"tool"`
	Target          string         `json:"target"`
	CompletedAt     *string        `json:"completed_at,omitempty"`
	DurationSeconds *float64       `json:"duration_seconds,omitempty"`
	Results         map[string]any `json:"results,omitempty"`
	Message         string         `json:"message,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// summaryLocked builds a Summary; caller holds the manager lock.
func (j *Job) summaryLocked() Summary {
	s := Summary{
		JobID:      j.ID,
		Tool:       j.Tool,
		Target:     j.Target,
		Arguments:  j.Arguments,
		Status:     j.Status,
		CreatedAt:  j.CreatedAt.UTC().Format(time.RFC3339Nano),
		Error:      j.Error,
		HasResults: j.Result != nil,
	}
	if j.StartedAt != nil {
		t := j.StartedAt.UTC().Format(time.RFC3339Nano)
		s.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := j.CompletedAt.UTC().Format(time.RFC3339Nano)
		s.CompletedAt = &t
	}
	if d := j.durationLocked(); d != nil {
		s.DurationSeconds = d
	}
	return s
}

func (j *Job) durationLocked() *float64 {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return nil
	}
	d := j.CompletedAt.Sub(*j.StartedAt).Seconds()
	return &d
}
