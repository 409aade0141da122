package event

import (
	"time"

	"gitlab.com/gomidi/midi/v2"
)

// Timed pairs a raw MIDI message with the absolute instant it should
// hit the wire. It is the shape port-facing callers exchange with the
// pipeline; the transport itself lives outside this module.
type Timed struct {
	At  time.Time
	Msg midi.Message
}

// FromMIDI converts a raw MIDI message received at time at into a
// pipeline message. A note-on with velocity 0 is a note-off, per the
// MIDI convention. The second return is false for message kinds the
// pipeline does not model (aftertouch, sysex, ...).
func FromMIDI(msg midi.Message, at time.Time) (Message, bool) {
	var channel, key, velocity, controller, value uint8
	switch {
	case msg.GetNoteOn(&channel, &key, &velocity):
		if velocity == 0 {
			return NoteOff{At: at, Pitch: key, Channel: channel}, true
		}
		return NoteOn{At: at, Pitch: key, Velocity: velocity, Channel: channel}, true
	case msg.GetNoteOff(&channel, &key, &velocity):
		return NoteOff{At: at, Pitch: key, Channel: channel}, true
	case msg.GetControlChange(&channel, &controller, &value):
		return ControlChange{At: at, Controller: controller, Value: value, Channel: channel}, true
	}
	return nil, false
}

// MIDI renders a closed note as its timed note-on/note-off pair.
func (n Note) MIDI() []Timed {
	return []Timed{
		{At: n.Start, Msg: midi.NoteOn(n.Channel, n.Pitch, n.Velocity)},
		{At: n.End(), Msg: midi.NoteOff(n.Channel, n.Pitch)},
	}
}

// MIDI renders a control change as a single timed raw message.
func (c ControlChange) MIDI() []Timed {
	return []Timed{{At: c.At, Msg: midi.ControlChange(c.Channel, c.Controller, c.Value)}}
}
