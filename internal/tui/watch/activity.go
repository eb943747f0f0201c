package watch

import (
	"strings"
	"time"
)

// pulseWidth is the number of activity dots shown in the header.
const pulseWidth = 5

// Heartbeat rotates a glyph once per UI tick. A frozen event loop is
// visible at a glance because the glyph stops turning.
type Heartbeat struct {
	frames []string
	index  int
}

func NewHeartbeat() Heartbeat {
	return Heartbeat{frames: []string{"◐", "◓", "◑", "◒"}}
}

func (h *Heartbeat) Advance() {
	h.index = (h.index + 1) % len(h.frames)
}

func (h Heartbeat) Frame() string {
	return h.frames[h.index]
}

// EventPulse lights a row of dots when a scan lifecycle event arrives and
// fades as the stream goes quiet. The lit count is derived from the time of
// the last event at render, losing one dot per two seconds of silence.
type EventPulse struct {
	lastEvent time.Time
	now       func() time.Time
}

func NewEventPulse() EventPulse {
	return EventPulse{now: time.Now}
}

// Observe records a lifecycle event arrival.
func (p *EventPulse) Observe() {
	p.lastEvent = p.now()
}

func (p EventPulse) level() int {
	if p.lastEvent.IsZero() {
		return 0
	}
	faded := int(p.now().Sub(p.lastEvent) / (2 * time.Second))
	if faded >= pulseWidth {
		return 0
	}
	return pulseWidth - faded
}

func (p EventPulse) Render(theme Theme) string {
	lit := p.level()
	var b strings.Builder
	for i := 0; i < pulseWidth; i++ {
		if i < lit {
			b.WriteString(theme.PulseActive.Render("●"))
		} else {
			b.WriteString(theme.PulseIdle.Render("○"))
		}
	}
	return b.String()
}

func (p EventPulse) LastEvent() time.Time {
	return p.lastEvent
}
