package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crieger/scopegw/internal/config"
	"github.com/crieger/scopegw/internal/log"
)

// JobEvent is the payload of one job lifecycle transition as streamed to
// event subscribers.
type JobEvent struct {
	JobID  string `json:"job_id"`
	Tool   string `json:"tool"`
	Target string `json:"target"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// EventSink receives job lifecycle notifications. *api.EventHub satisfies it.
type EventSink interface {
	PublishJob(kind string, ev JobEvent)
}

// Manager tracks background scan jobs: creation, execution, cancellation,
// result retrieval and retention cleanup. Job state lives in memory; result
// payloads are additionally persisted as one JSON file per job so they
// survive manager restarts within the retention window.
type Manager struct {
	mu   sync.RWMutex
	jobs map[string]*Job

	resultsDir string
	notifier   *Notifier
	events     EventSink
	logger     *slog.Logger
}

// NewManager creates a manager writing result files under cfg.ResultsDir.
// events may be nil.
func NewManager(cfg config.ScansConfig, events EventSink) (*Manager, error) {
	if err := os.MkdirAll(cfg.ResultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &Manager{
		jobs:       make(map[string]*Job),
		resultsDir: cfg.ResultsDir,
		notifier:   NewNotifier(cfg.WebhookTimeout),
		events:     events,
		logger:     log.WithComponent("scan"),
	}, nil
}

// CreateJob registers a new pending job and returns its ID.
func (m *Manager) CreateJob(tool, target string, args map[string]any, webhookURL string) string {
	job := &Job{
		ID:         uuid.NewString(),
		Tool:       tool,
		Target:     target,
		Arguments:  args,
		WebhookURL: webhookURL,
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
		done:       make(chan struct{}),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.logger.Info("job created", "job_id", job.ID, "tool", tool, "target", target)
	m.publish("job.created", JobEvent{JobID: job.ID, Tool: tool, Target: target, Status: StatusPending})
	return job.ID
}

// StartJob transitions a pending job to running and launches handler in its
// own goroutine. The handler's context is cancelled by CancelJob.
func (m *Manager) StartJob(jobID string, handler Handler) error {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("start job %s: %w", jobID, ErrJobNotFound)
	}
	if job.Status != StatusPending {
		m.mu.Unlock()
		return fmt.Errorf("start job %s: status is %s, want %s", jobID, job.Status, StatusPending)
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now().UTC()
	job.Status = StatusRunning
	job.StartedAt = &now
	job.cancel = cancel
	args := job.Arguments
	m.mu.Unlock()

	m.logger.Info("job started", "job_id", jobID, "tool", job.Tool)
	m.publish("job.started", JobEvent{JobID: jobID, Tool: job.Tool, Target: job.Target, Status: StatusRunning})

	go func() {
		defer close(job.done)
		defer cancel()
		result, err := handler(ctx, args)
		m.complete(job, result, err)
	}()
	return nil
}

// complete records the handler outcome unless the job was already moved to a
// terminal state (cancellation wins any race with completion).
func (m *Manager) complete(job *Job, result map[string]any, err error) {
	now := time.Now().UTC()

	m.mu.Lock()
	if job.Status != StatusRunning {
		m.mu.Unlock()
		return
	}
	job.CompletedAt = &now
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
	} else {
		job.Status = StatusCompleted
		job.Result = result
	}
	status := job.Status
	errMsg := job.Error
	snap := m.snapshotLocked(job)
	m.mu.Unlock()

	if status == StatusCompleted {
		if werr := m.writeResultFile(job.ID, result); werr != nil {
			m.logger.Warn("result file write failed", "job_id", job.ID, "error", werr)
		}
		m.logger.Info("job completed", "job_id", job.ID, "tool", job.Tool)
	} else {
		m.logger.Warn("job failed", "job_id", job.ID, "tool", job.Tool, "error", err)
	}
	m.publish("job."+string(status), JobEvent{JobID: job.ID, Tool: job.Tool, Target: job.Target, Status: status, Error: errMsg})

	if snap.WebhookURL != "" {
		go m.notifier.Notify(snap)
	}
}

// CancelJob cancels a pending or running job. For running jobs it does not
// return until the underlying process has been reaped, so a true return
// means no tool is still executing for this ID. Returns false for unknown
// IDs and jobs already in a terminal state.
func (m *Manager) CancelJob(jobID string) bool {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status.Terminal() {
		m.mu.Unlock()
		return false
	}
	wasRunning := job.Status == StatusRunning
	now := time.Now().UTC()
	job.Status = StatusCancelled
	job.CompletedAt = &now
	cancel := job.cancel
	m.mu.Unlock()

	if wasRunning {
		cancel()
		<-job.done
	}

	m.logger.Info("job cancelled", "job_id", jobID, "tool", job.Tool)
	m.publish("job.cancelled", JobEvent{JobID: jobID, Tool: job.Tool, Target: job.Target, Status: StatusCancelled})
	return true
}

// GetJobStatus returns the summary view of one job.
func (m *Manager) GetJobStatus(jobID string) (Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return Summary{}, ErrJobNotFound
	}
	return job.summaryLocked(), nil
}

// GetJobResults returns the full result payload for a completed job, or a
// placeholder detail describing the current state for jobs still underway.
// The persisted result file is preferred over the in-memory copy.
func (m *Manager) GetJobResults(jobID string) (Detail, error) {
	m.mu.RLock()
	job, ok := m.jobs[jobID]
	if !ok {
		m.mu.RUnlock()
		return Detail{}, ErrJobNotFound
	}
	d := Detail{
		JobID:  job.ID,
		Status: job.Status,
		Tool:   job.Tool,
		Target: job.Target,
		Error:  job.Error,
	}
	if job.CompletedAt != nil {
		t := job.CompletedAt.UTC().Format(time.RFC3339Nano)
		d.CompletedAt = &t
	}
	d.DurationSeconds = job.durationLocked()
	memResult := job.Result
	m.mu.RUnlock()

	if d.Status != StatusCompleted {
		d.Message = fmt.Sprintf("job is %s; results are available once it completes", d.Status)
		return d, nil
	}

	if fileResult, err := m.readResultFile(jobID); err == nil {
		d.Results = fileResult
	} else {
		d.Results = memResult
	}
	return d, nil
}

// ListJobs returns job summaries newest first, optionally filtered by status
// and tool name. limit <= 0 means the default page size of 50.
func (m *Manager) ListJobs(status Status, tool string, limit int) []Summary {
	if limit <= 0 {
		limit = 50
	}

	type entry struct {
		created time.Time
		summary Summary
	}

	m.mu.RLock()
	entries := make([]entry, 0, len(m.jobs))
	for _, job := range m.jobs {
		if status != "" && job.Status != status {
			continue
		}
		if tool != "" && job.Tool != tool {
			continue
		}
		entries = append(entries, entry{created: job.CreatedAt, summary: job.summaryLocked()})
	}
	m.mu.RUnlock()

	// Sort on the time values, not the formatted strings: RFC3339Nano drops
	// trailing zeros, so string order diverges from chronological order for
	// timestamps with zero fractional seconds.
	sort.Slice(entries, func(i, j int) bool { return entries[i].created.After(entries[j].created) })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]Summary, len(entries))
	for i, e := range entries {
		out[i] = e.summary
	}
	return out
}

// CleanupOldJobs removes terminal jobs whose completion is older than maxAge,
// deleting their result files. Pending and running jobs are never touched.
// Returns the number of jobs removed.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	m.mu.Lock()
	var expired []string
	for id, job := range m.jobs {
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(m.jobs, id)
	}
	m.mu.Unlock()

	for _, id := range expired {
		if err := os.Remove(m.resultPath(id)); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("result file cleanup failed", "job_id", id, "error", err)
		}
	}
	if len(expired) > 0 {
		m.logger.Info("expired jobs removed", "count", len(expired))
	}
	return len(expired)
}

// RunCleanupLoop periodically expires old jobs until ctx is done.
func (m *Manager) RunCleanupLoop(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupOldJobs(maxAge)
		}
	}
}

func (m *Manager) publish(kind string, ev JobEvent) {
	if m.events == nil {
		return
	}
	m.events.PublishJob(kind, ev)
}

func (m *Manager) resultPath(jobID string) string {
	return filepath.Join(m.resultsDir, jobID+".json")
}

func (m *Manager) writeResultFile(jobID string, result map[string]any) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return os.WriteFile(m.resultPath(jobID), data, 0o644)
}

func (m *Manager) readResultFile(jobID string) (map[string]any, error) {
	data, err := os.ReadFile(m.resultPath(jobID))
	if err != nil {
		return nil, err
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode result file: %w", err)
	}
	return result, nil
}

// snapshotLocked captures the webhook payload fields; caller holds the lock.
func (m *Manager) snapshotLocked(job *Job) webhookPayload {
	p := webhookPayload{
		JobID:      job.ID,
		Tool:       job.Tool,
		Target:     job.Target,
		Status:     job.Status,
		WebhookURL: job.WebhookURL,
		Results:    job.Result,
	}
	if job.CompletedAt != nil {
		t := job.CompletedAt.UTC().Format(time.RFC3339Nano)
		p.CompletedAt = &t
	}
	p.DurationSeconds = job.durationLocked()
	return p
}
