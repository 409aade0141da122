package fx

import (
	"log/slog"
	"sort"
	"time"

	"midifx/event"
	"midifx/param"
	"midifx/pipeline"
)

// BufferDelay records everything it receives and replays the whole
// buffer once a trigger control change arrives: the recorded phrase is
// shifted so it restarts a controllable gap after the trigger, then
// drains in release-time order like any deferred effect. Feeding a
// chain's output back into a BufferDelay loops phrases indefinitely.
//
// The trigger message itself is recorded before it is checked, so a
// replayed phrase carries its own end marker. The buffer is unbounded
// while recording.
type BufferDelay struct {
	trigger    param.Address
	triggerVal uint8
	gap        *param.Value // seconds

	recording []event.Message
	pending   []release
	log       *slog.Logger
}

var (
	_ pipeline.Effect    = (*BufferDelay)(nil)
	_ pipeline.Flusher   = (*BufferDelay)(nil)
	_ pipeline.Scheduler = (*BufferDelay)(nil)
)

// NewBufferDelay creates a buffer delay triggered by a control change
// with the given address and value. gap is in seconds; nil means no
// gap.
func NewBufferDelay(trigger param.Address, triggerVal uint8, gap *param.Value) *BufferDelay {
	if gap == nil {
		gap = param.Const(0)
	}
	return &BufferDelay{
		trigger:    trigger,
		triggerVal: triggerVal,
		gap:        gap,
		log:        slog.Default(),
	}
}

func (b *BufferDelay) Name() string { return "bufferdelay" }

func (b *BufferDelay) Controls() []param.Control { return []param.Control{b.gap} }

func (b *BufferDelay) Transform(msg event.Message, now time.Time) []event.Message {
	out := b.drain(now)
	if msg == nil {
		return out
	}
	if n := len(b.recording); n > 0 && msg.Time().Before(b.recording[n-1].Time()) {
		b.log.Warn("buffer received message with non-monotonic time", "event", msg.String())
	}
	b.recording = append(b.recording, msg)
	if cc, ok := msg.(event.ControlChange); ok &&
		cc.Controller == b.trigger.Controller &&
		cc.Channel == b.trigger.Channel &&
		cc.Value == b.triggerVal {
		b.schedule(cc.At)
	}
	return out
}

// schedule moves the recorded phrase into the pending buffer, shifted
// so it begins gap seconds after the trigger.
func (b *BufferDelay) schedule(triggerAt time.Time) {
	if len(b.recording) == 0 {
		return
	}
	gap := time.Duration(b.gap.Float() * float64(time.Second))
	shift := triggerAt.Sub(b.recording[0].Time()) + gap
	for _, msg := range b.recording {
		b.pending = append(b.pending, release{at: msg.Time().Add(shift), msg: shiftMessage(msg, shift)})
	}
	b.recording = nil
	// A re-trigger while a replay is still pending may interleave the
	// two phrases; keep the drain order by release time, FIFO on ties.
	// Shifted messages carry their release time as their own timestamp.
	sort.SliceStable(b.pending, func(i, j int) bool {
		return event.Less(b.pending[i].msg, b.pending[j].msg)
	})
}

// Flush abandons the current recording and releases anything already
// scheduled, in order.
func (b *BufferDelay) Flush(now time.Time) []event.Message {
	b.recording = nil
	out := make([]event.Message, len(b.pending))
	for i, r := range b.pending {
		out[i] = r.msg
	}
	b.pending = nil
	return out
}

func (b *BufferDelay) NextRelease() (time.Time, bool) {
	if len(b.pending) == 0 {
		return time.Time{}, false
	}
	return b.pending[0].at, true
}

func (b *BufferDelay) drain(now time.Time) []event.Message {
	var out []event.Message
	for len(b.pending) > 0 && !b.pending[0].at.After(now) {
		out = append(out, b.pending[0].msg)
		b.pending = b.pending[1:]
	}
	return out
}

// shiftMessage clones a message with its timestamp moved by d.
func shiftMessage(msg event.Message, d time.Duration) event.Message {
	switch m := msg.(type) {
	case event.Note:
		m.Start = m.Start.Add(d)
		return m
	case event.NoteOn:
		m.At = m.At.Add(d)
		return m
	case event.NoteOff:
		m.At = m.At.Add(d)
		return m
	case event.ControlChange:
		m.At = m.At.Add(d)
		return m
	}
	return msg
}
