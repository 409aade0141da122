package fx

import (
	"log/slog"
	"time"

	"midifx/event"
	"midifx/param"
	"midifx/pipeline"
)

// Monitor is a pass-through tap that logs every message crossing it.
// With an override channel set, the logged copy reports that channel
// while the forwarded message stays untouched, so several chains can
// monitor into one log and stay distinguishable.
type Monitor struct {
	log             *slog.Logger
	overrideChannel int // -1 means keep the original channel
}

var _ pipeline.Effect = (*Monitor)(nil)

// NewMonitor creates a monitor tap. overrideChannel -1 keeps original
// channels in the log output.
func NewMonitor(log *slog.Logger, overrideChannel int) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{log: log, overrideChannel: overrideChannel}
}

func (m *Monitor) Name() string { return "monitor" }

func (m *Monitor) Controls() []param.Control { return nil }

func (m *Monitor) Transform(msg event.Message, now time.Time) []event.Message {
	if msg == nil {
		return nil
	}
	m.log.Info("event", "event", m.render(msg).String())
	return []event.Message{msg}
}

func (m *Monitor) render(msg event.Message) event.Message {
	if m.overrideChannel < 0 {
		return msg
	}
	ch := uint8(m.overrideChannel)
	switch v := msg.(type) {
	case event.Note:
		v.Channel = ch
		return v
	case event.NoteOn:
		v.Channel = ch
		return v
	case event.NoteOff:
		v.Channel = ch
		return v
	case event.ControlChange:
		v.Channel = ch
		return v
	}
	return msg
}
