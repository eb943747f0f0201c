package api

import (
	"sync"
	"time"

	"github.com/crieger/scopegw/internal/scan"
)

// Event is one numbered scan lifecycle notification. IDs grow monotonically
// from 1 for the life of the gateway process and double as SSE event IDs, so
// a reconnecting client can resume with Last-Event-ID.
type Event struct {
	ID   int64
	Kind string // job.created, job.started, job.completed, job.failed, job.cancelled
	At   time.Time
	Job  scan.JobEvent
}

// EventHub fans scan lifecycle events out to /events subscribers. It keeps a
// bounded replay window of recent events so clients that connect late, or
// reconnect after a drop, can catch up without polling the job list.
type EventHub struct {
	mu sync.Mutex

	lastID int64
	window []Event // replay window, oldest first
	cap    int

	subs      map[int]chan Event
	nextSubID int
}

// NewEventHub creates a hub whose replay window holds up to capacity events.
func NewEventHub(capacity int) *EventHub {
	if capacity <= 0 {
		capacity = 1
	}
	return &EventHub{
		window: make([]Event, 0, capacity),
		cap:    capacity,
		subs:   make(map[int]chan Event),
	}
}

// PublishJob assigns the next event ID, records the event in the replay
// window, and delivers it to all live subscribers. Subscribers that cannot
// keep up are skipped rather than blocking the scan manager; they can
// recover the gap from the replay window on reconnect.
func (h *EventHub) PublishJob(kind string, job scan.JobEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	ev := Event{
		ID:   h.lastID,
		Kind: kind,
		At:   time.Now().UTC(),
		Job:  job,
	}

	if len(h.window) == h.cap {
		copy(h.window, h.window[1:])
		h.window = h.window[:h.cap-1]
	}
	h.window = append(h.window, ev)

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a live event channel. The returned cancel must be
// called when the subscriber disconnects.
func (h *EventHub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Event, 32)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

// Replay returns the buffered events with ID > afterID, oldest first. With
// afterID 0 the whole window is returned.
func (h *EventHub) Replay(afterID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, len(h.window))
	for _, ev := range h.window {
		if ev.ID > afterID {
			out = append(out, ev)
		}
	}
	return out
}
