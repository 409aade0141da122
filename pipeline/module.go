package pipeline

import (
	"log/slog"
	"time"

	"midifx/event"
	"midifx/param"
)

// Effect is the one thing a custom pipeline stage implements: a
// transform over single events, plus the params it wants serviced. The
// surrounding Module supplies everything shared (control interception,
// the on/off gate, note assembly), so an Effect only ever sees closed
// notes and unconsumed control changes.
type Effect interface {
	Name() string
	// Transform maps zero-or-one input event to zero-or-more outputs
	// for this tick, FIFO ordered. msg is nil on synthetic ticks that
	// exist only to let time-deferred effects drain; effects without
	// private buffers return nil for those.
	Transform(msg event.Message, now time.Time) []event.Message
	// Controls lists the effect's params in declared order; control
	// changes are offered to them in exactly this order.
	Controls() []param.Control
}

// Flusher is implemented by effects holding private buffers that must
// drain at end-of-stream or chain stop.
type Flusher interface {
	Flush(now time.Time) []event.Message
}

// Scheduler is implemented by time-deferred effects. The chain uses the
// earliest reported release to arm a wakeup timer, so buffered events
// fire on time even when the input is quiet.
type Scheduler interface {
	NextRelease() (time.Time, bool)
}

type noteKey struct {
	pitch   uint8
	channel uint8
}

type openNote struct {
	at       time.Time
	velocity uint8
}

// Module is one stage in a chain: an Effect wrapped with the shared
// machinery every stage needs. It owns its effect's params and its
// note-assembly state exclusively; nothing outside the chain's single
// logical thread may touch either. If ticks are ever distributed across
// OS threads, control mutation and Process for one Module must stay
// mutually exclusive.
type Module struct {
	effect Effect
	on     *param.Switch
	open   map[noteKey]openNote
	log    *slog.Logger
}

// ModuleOption configures a Module.
type ModuleOption func(*Module)

// WithGate wires an on/off switch around the module. While off, events
// pass through unmodified, but the module keeps servicing its param
// bindings so a disabled effect stays remotely controllable.
func WithGate(sw *param.Switch) ModuleOption {
	return func(m *Module) { m.on = sw }
}

// NewModule wraps an effect into a chain stage. Without WithGate the
// module is always on.
func NewModule(e Effect, opts ...ModuleOption) *Module {
	m := &Module{
		effect: e,
		open:   make(map[noteKey]openNote),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the wrapped effect's name.
func (m *Module) Name() string { return m.effect.Name() }

// Controls lists the gate switch (if any) followed by the effect's
// params, in declared order.
func (m *Module) Controls() []param.Control {
	var cs []param.Control
	if m.on != nil {
		cs = append(cs, m.on)
	}
	return append(cs, m.effect.Controls()...)
}

func (m *Module) setLogger(l *slog.Logger) {
	m.log = l.With("module", m.effect.Name())
}

func (m *Module) enabled() bool { return m.on == nil || m.on.Bool() }

// Process runs one tick's work for this module: zero-or-one input event
// in, zero-or-more events out, all synchronously. in is nil on
// synthetic ticks driven by a deferred-release timer.
func (m *Module) Process(in event.Message, now time.Time) []event.Message {
	if in == nil {
		if !m.enabled() {
			return nil
		}
		return m.effect.Transform(nil, now)
	}

	switch msg := in.(type) {
	case event.ControlChange:
		// Params are serviced even while gated off, and a consumed
		// control change leaves the stream.
		for _, c := range m.Controls() {
			if c.OnControl(msg) {
				m.log.Debug("control consumed", "control", c.Name(), "value", msg.Value)
				return nil
			}
		}
		if !m.enabled() {
			return []event.Message{in}
		}
		return m.effect.Transform(in, now)

	case event.EndOfStream:
		out := m.Flush(now)
		return append(out, in)
	}

	if !m.enabled() {
		return []event.Message{in}
	}

	switch msg := in.(type) {
	case event.NoteOn:
		k := noteKey{msg.Pitch, msg.Channel}
		if _, retrigger := m.open[k]; retrigger {
			// Second begin before the first closed: re-trigger. The
			// previous open note is dropped without emission.
			m.log.Debug("re-trigger replaces open note", "pitch", msg.Pitch, "channel", msg.Channel)
		}
		m.open[k] = openNote{at: msg.At, velocity: msg.Velocity}
		return nil

	case event.NoteOff:
		k := noteKey{msg.Pitch, msg.Channel}
		on, ok := m.open[k]
		if !ok {
			// A stray release cannot close a note that never opened.
			m.log.Debug("note off without note on", "pitch", msg.Pitch, "channel", msg.Channel)
			return nil
		}
		delete(m.open, k)
		note := event.Note{
			Start:    on.at,
			Pitch:    msg.Pitch,
			Velocity: on.velocity,
			Channel:  msg.Channel,
			Duration: msg.At.Sub(on.at),
		}
		return m.effect.Transform(note, now)
	}

	return m.effect.Transform(in, now)
}

// Flush tears down per-stream state: still-open notes are discarded
// (they never produce output) and a buffering effect drains. Runs
// regardless of the gate, since accumulated state must not outlive the
// stream.
func (m *Module) Flush(now time.Time) []event.Message {
	for k := range m.open {
		m.log.Debug("discarding open note at flush", "pitch", k.pitch, "channel", k.channel)
		delete(m.open, k)
	}
	if f, ok := m.effect.(Flusher); ok {
		return f.Flush(now)
	}
	return nil
}

// NextRelease reports the effect's earliest pending release, if the
// effect defers events and is currently enabled.
func (m *Module) NextRelease() (time.Time, bool) {
	s, ok := m.effect.(Scheduler)
	if !ok || !m.enabled() {
		return time.Time{}, false
	}
	return s.NextRelease()
}
