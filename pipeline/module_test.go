package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midifx/event"
	"midifx/param"
)

var base = time.Unix(0, 0)

// passEffect forwards everything; the minimal effect for exercising
// the module machinery around it.
type passEffect struct {
	controls []param.Control
}

func (e *passEffect) Name() string              { return "pass" }
func (e *passEffect) Controls() []param.Control { return e.controls }

func (e *passEffect) Transform(msg event.Message, now time.Time) []event.Message {
	if msg == nil {
		return nil
	}
	return []event.Message{msg}
}

// flushEffect drains a canned message, standing in for a buffering
// effect.
type flushEffect struct {
	passEffect
	flushed []event.Message
}

func (e *flushEffect) Flush(now time.Time) []event.Message { return e.flushed }

func noteOn(at time.Time, pitch uint8) event.NoteOn {
	return event.NoteOn{At: at, Pitch: pitch, Velocity: 100}
}

func noteOff(at time.Time, pitch uint8) event.NoteOff {
	return event.NoteOff{At: at, Pitch: pitch}
}

func TestNoteAssembly(t *testing.T) {
	t.Run("duration is end minus begin", func(t *testing.T) {
		m := NewModule(&passEffect{})

		out := m.Process(noteOn(base, 60), base)
		assert.Empty(t, out, "nothing emitted while the note is open")

		end := base.Add(1500 * time.Millisecond)
		out = m.Process(noteOff(end, 60), end)
		require.Len(t, out, 1)
		note := out[0].(event.Note)
		assert.Equal(t, base, note.Start)
		assert.Equal(t, 1500*time.Millisecond, note.Duration)
		assert.Equal(t, uint8(100), note.Velocity)
	})

	t.Run("stray end is a no-op", func(t *testing.T) {
		m := NewModule(&passEffect{})
		out := m.Process(noteOff(base, 60), base)
		assert.Empty(t, out)
	})

	t.Run("second begin re-triggers", func(t *testing.T) {
		m := NewModule(&passEffect{})
		m.Process(noteOn(base, 60), base)
		m.Process(noteOn(base.Add(time.Second), 60), base.Add(time.Second))

		end := base.Add(3 * time.Second)
		out := m.Process(noteOff(end, 60), end)
		require.Len(t, out, 1, "the replaced note is discarded, not emitted")
		note := out[0].(event.Note)
		assert.Equal(t, base.Add(time.Second), note.Start, "onset comes from the re-trigger")
		assert.Equal(t, 2*time.Second, note.Duration)
	})

	t.Run("keys are per pitch and channel", func(t *testing.T) {
		m := NewModule(&passEffect{})
		m.Process(event.NoteOn{At: base, Pitch: 60, Velocity: 90, Channel: 0}, base)
		m.Process(event.NoteOn{At: base, Pitch: 60, Velocity: 70, Channel: 1}, base)

		end := base.Add(time.Second)
		out := m.Process(event.NoteOff{At: end, Pitch: 60, Channel: 1}, end)
		require.Len(t, out, 1)
		assert.Equal(t, uint8(70), out[0].(event.Note).Velocity)
	})

	t.Run("closed notes flow straight to the effect", func(t *testing.T) {
		m := NewModule(&passEffect{})
		note := event.Note{Start: base, Pitch: 60, Velocity: 100, Duration: time.Second}
		out := m.Process(note, base.Add(time.Second))
		assert.Equal(t, []event.Message{note}, out)
	})
}

func TestControlInterception(t *testing.T) {
	t.Run("matching control change is consumed", func(t *testing.T) {
		v := param.NewValue("amount", 0, 0, 1).Bind(7, 0)
		m := NewModule(&passEffect{controls: []param.Control{v}})

		out := m.Process(event.ControlChange{At: base, Controller: 7, Value: 127}, base)
		assert.Empty(t, out, "consumed messages leave the stream")
		assert.Equal(t, 1.0, v.Float())
	})

	t.Run("non-matching control change passes through", func(t *testing.T) {
		v := param.NewValue("amount", 0.5, 0, 1).Bind(7, 0)
		m := NewModule(&passEffect{controls: []param.Control{v}})

		cc := event.ControlChange{At: base, Controller: 8, Value: 127}
		out := m.Process(cc, base)
		assert.Equal(t, []event.Message{cc}, out)
		assert.Equal(t, 0.5, v.Float())
	})

	t.Run("params serviced while gated off", func(t *testing.T) {
		v := param.NewValue("amount", 0, 0, 1).Bind(7, 0)
		gate := param.ConstSwitch(false)
		m := NewModule(&passEffect{controls: []param.Control{v}}, WithGate(gate))

		out := m.Process(event.ControlChange{At: base, Controller: 7, Value: 127}, base)
		assert.Empty(t, out)
		assert.Equal(t, 1.0, v.Float(), "a disabled effect stays remotely controllable")
	})
}

func TestGate(t *testing.T) {
	t.Run("off passes events through unmodified", func(t *testing.T) {
		gate := param.NewSwitch("on", true).Bind(64, 0)
		m := NewModule(&passEffect{}, WithGate(gate))

		// Toggle off via its own binding.
		out := m.Process(event.ControlChange{At: base, Controller: 64, Value: 0}, base)
		assert.Empty(t, out)
		require.False(t, gate.Bool())

		on := noteOn(base, 60)
		out = m.Process(on, base)
		assert.Equal(t, []event.Message{event.Message(on)}, out, "begin signal passes through untouched")

		off := noteOff(base.Add(time.Second), 60)
		out = m.Process(off, base.Add(time.Second))
		assert.Equal(t, []event.Message{event.Message(off)}, out)
	})

	t.Run("open state survives an off/on cycle", func(t *testing.T) {
		gate := param.NewSwitch("on", true).Bind(64, 0)
		m := NewModule(&passEffect{}, WithGate(gate))

		m.Process(noteOn(base, 60), base)

		m.Process(event.ControlChange{At: base, Controller: 64, Value: 0}, base)
		m.Process(event.ControlChange{At: base, Controller: 64, Value: 127}, base)

		end := base.Add(2 * time.Second)
		out := m.Process(noteOff(end, 60), end)
		require.Len(t, out, 1, "the note opened before the toggle closes exactly once")
		assert.Equal(t, 2*time.Second, out[0].(event.Note).Duration)
	})
}

func TestEndOfStream(t *testing.T) {
	t.Run("open notes are discarded, marker forwarded", func(t *testing.T) {
		m := NewModule(&passEffect{})
		m.Process(noteOn(base, 60), base)

		eos := event.EndOfStream{At: base.Add(time.Second)}
		out := m.Process(eos, eos.At)
		assert.Equal(t, []event.Message{event.Message(eos)}, out)

		// The discarded note cannot be closed afterwards.
		out = m.Process(noteOff(base.Add(2*time.Second), 60), base.Add(2*time.Second))
		assert.Empty(t, out)
	})

	t.Run("buffering effect drains before the marker", func(t *testing.T) {
		held := event.Note{Start: base, Pitch: 72, Velocity: 80, Duration: time.Second}
		m := NewModule(&flushEffect{flushed: []event.Message{held}})

		eos := event.EndOfStream{At: base}
		out := m.Process(eos, base)
		require.Len(t, out, 2)
		assert.Equal(t, event.Message(held), out[0])
		assert.Equal(t, event.Message(eos), out[1])
	})
}

func TestSyntheticTick(t *testing.T) {
	m := NewModule(&passEffect{})
	assert.Empty(t, m.Process(nil, base), "effects without buffers have nothing to drain")
}
