package scan

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/crieger/scopegw/internal/log"
)

type webhookPayload struct {
	JobID           string         `json:"job_id"`
	Tool            string         `json:"tool"`
	Target          string         `json:"target"`
	Status          Status         `json:"status"`
	CompletedAt     *string        `json:"completed_at"`
	DurationSeconds *float64       `json:"duration_seconds"`
	Results         map[string]any `json:"results"`

	WebhookURL string `json:"-"`
}

// Notifier posts job completion payloads to caller-supplied webhook URLs.
// Delivery is best effort: failures are logged and never retried, and never
// affect the job's recorded outcome.
type Notifier struct {
	client *http.Client
}

func NewNotifier(timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Notifier{client: &http.Client{Timeout: timeout}}
}

func (n *Notifier) Notify(p webhookPayload) {
	logger := log.WithScan(p.JobID, p.Tool).With("component", "webhook")

	body, err := json.Marshal(p)
	if err != nil {
		logger.Warn("webhook payload marshal failed", "error", err)
		return
	}

	resp, err := n.client.Post(p.WebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Warn("webhook delivery failed", "url", p.WebhookURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logger.Warn("webhook rejected", "url", p.WebhookURL, "status", resp.StatusCode)
		return
	}
	logger.Debug("webhook delivered", "url", p.WebhookURL)
}
