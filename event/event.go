package event

import (
	"fmt"
	"time"
)

// Range limits of the MIDI value space
const (
	MaxKey     uint8 = 127
	MaxVelo    uint8 = 127
	MaxControl uint8 = 127
	MaxChannel uint8 = 15
)

// Message is one unit flowing through the pipeline: a begin/end note
// signal, an assembled note, a control change, or the end-of-stream
// marker. Messages are immutable values; modules that want to alter one
// work on a copy.
type Message interface {
	// Time is the instant the message refers to: onset for notes and
	// note-on signals, release for note-off signals, arrival for
	// control changes.
	Time() time.Time
	fmt.Stringer
}

// NoteOn is the begin signal for a note. Downstream consumers never see
// it directly: the first enabled module absorbs it into its assembly
// state and emits a Note once the matching NoteOff arrives.
type NoteOn struct {
	At       time.Time
	Pitch    uint8
	Velocity uint8
	Channel  uint8
}

// NoteOff is the end signal for a note.
type NoteOff struct {
	At      time.Time
	Pitch   uint8
	Channel uint8
}

// Note is a fully assembled ("closed") note: both onset and duration
// are known, so it is ready for downstream emission.
type Note struct {
	Start    time.Time
	Pitch    uint8
	Velocity uint8
	Channel  uint8
	Duration time.Duration
}

// ControlChange carries a controller update, e.g. a knob or pedal move.
type ControlChange struct {
	At         time.Time
	Controller uint8
	Value      uint8
	Channel    uint8
}

// EndOfStream marks a clean end of input. It travels through the chain
// like any other message so every module gets a chance to flush.
type EndOfStream struct {
	At time.Time
}

func (n NoteOn) Time() time.Time        { return n.At }
func (n NoteOff) Time() time.Time       { return n.At }
func (n Note) Time() time.Time          { return n.Start }
func (c ControlChange) Time() time.Time { return c.At }
func (e EndOfStream) Time() time.Time   { return e.At }

// End is the release instant of a closed note.
func (n Note) End() time.Time { return n.Start.Add(n.Duration) }

func (n NoteOn) String() string {
	return fmt.Sprintf("NoteOn(pitch=%d, velocity=%d, channel=%d, at=%s)",
		n.Pitch, n.Velocity, n.Channel, stamp(n.At))
}

func (n NoteOff) String() string {
	return fmt.Sprintf("NoteOff(pitch=%d, channel=%d, at=%s)", n.Pitch, n.Channel, stamp(n.At))
}

func (n Note) String() string {
	return fmt.Sprintf("Note(pitch=%d, velocity=%d, channel=%d, start=%s, duration=%s)",
		n.Pitch, n.Velocity, n.Channel, stamp(n.Start), n.Duration)
}

func (c ControlChange) String() string {
	return fmt.Sprintf("ControlChange(controller=%d, value=%d, channel=%d, at=%s)",
		c.Controller, c.Value, c.Channel, stamp(c.At))
}

func (e EndOfStream) String() string { return "EndOfStream()" }

func stamp(t time.Time) string { return t.Format("15:04:05.000") }

// Less orders messages by timestamp. Equal timestamps compare false
// both ways, so callers that need a tiebreak fall back to arrival
// (FIFO) order.
func Less(a, b Message) bool { return a.Time().Before(b.Time()) }

// ValidationError reports a message field outside its MIDI range.
type ValidationError struct {
	Field string
	Value int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s out of range: %d", e.Field, e.Value)
}

// NewNoteOn builds a validated begin signal.
func NewNoteOn(at time.Time, pitch, velocity, channel uint8) (NoteOn, error) {
	if err := checkNote(pitch, velocity, channel); err != nil {
		return NoteOn{}, err
	}
	return NoteOn{At: at, Pitch: pitch, Velocity: velocity, Channel: channel}, nil
}

// NewNoteOff builds a validated end signal.
func NewNoteOff(at time.Time, pitch, channel uint8) (NoteOff, error) {
	if err := checkNote(pitch, 0, channel); err != nil {
		return NoteOff{}, err
	}
	return NoteOff{At: at, Pitch: pitch, Channel: channel}, nil
}

// NewNote builds a validated closed note.
func NewNote(start time.Time, pitch, velocity, channel uint8, duration time.Duration) (Note, error) {
	if err := checkNote(pitch, velocity, channel); err != nil {
		return Note{}, err
	}
	if duration < 0 {
		return Note{}, &ValidationError{Field: "duration", Value: int(duration)}
	}
	return Note{Start: start, Pitch: pitch, Velocity: velocity, Channel: channel, Duration: duration}, nil
}

// NewControlChange builds a validated control change.
func NewControlChange(at time.Time, controller, value, channel uint8) (ControlChange, error) {
	if controller > MaxControl {
		return ControlChange{}, &ValidationError{Field: "controller", Value: int(controller)}
	}
	if value > MaxControl {
		return ControlChange{}, &ValidationError{Field: "value", Value: int(value)}
	}
	if channel > MaxChannel {
		return ControlChange{}, &ValidationError{Field: "channel", Value: int(channel)}
	}
	return ControlChange{At: at, Controller: controller, Value: value, Channel: channel}, nil
}

// Validate re-checks a message built without a constructor. The chain
// runs it on every source event so malformed input is dropped at the
// boundary instead of leaking downstream.
func Validate(msg Message) error {
	switch m := msg.(type) {
	case NoteOn:
		return checkNote(m.Pitch, m.Velocity, m.Channel)
	case NoteOff:
		return checkNote(m.Pitch, 0, m.Channel)
	case Note:
		if m.Duration < 0 {
			return &ValidationError{Field: "duration", Value: int(m.Duration)}
		}
		return checkNote(m.Pitch, m.Velocity, m.Channel)
	case ControlChange:
		_, err := NewControlChange(m.At, m.Controller, m.Value, m.Channel)
		return err
	case EndOfStream:
		return nil
	case nil:
		return &ValidationError{Field: "message", Value: 0}
	}
	return nil
}

func checkNote(pitch, velocity, channel uint8) error {
	if pitch > MaxKey {
		return &ValidationError{Field: "pitch", Value: int(pitch)}
	}
	if velocity > MaxVelo {
		return &ValidationError{Field: "velocity", Value: int(velocity)}
	}
	if channel > MaxChannel {
		return &ValidationError{Field: "channel", Value: int(channel)}
	}
	return nil
}
