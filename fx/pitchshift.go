package fx

import (
	"math"
	"time"

	"midifx/event"
	"midifx/param"
	"midifx/pipeline"
)

// PitchShift moves every closed note up or down by a controllable
// number of semitones, folding by octaves to stay inside the MIDI key
// range. It is the minimal illustration of the effect contract:
// stateless, one param, notes in, notes out.
type PitchShift struct {
	amount *param.Value // semitones
}

var _ pipeline.Effect = (*PitchShift)(nil)

// NewPitchShift creates a pitch shifter. nil amount means a fixed +2.
func NewPitchShift(amount *param.Value) *PitchShift {
	if amount == nil {
		amount = param.Const(2)
	}
	return &PitchShift{amount: amount}
}

func (p *PitchShift) Name() string { return "pitchshift" }

func (p *PitchShift) Controls() []param.Control { return []param.Control{p.amount} }

func (p *PitchShift) Transform(msg event.Message, now time.Time) []event.Message {
	if msg == nil {
		return nil
	}
	note, ok := msg.(event.Note)
	if !ok {
		return []event.Message{msg}
	}
	note.Pitch = foldPitch(int(note.Pitch) + int(math.Round(p.amount.Float())))
	return []event.Message{note}
}

// foldPitch brings a pitch back into 0..126 by whole octaves, keeping
// the note name intact.
func foldPitch(pitch int) uint8 {
	for pitch >= int(event.MaxKey) {
		pitch -= 12
	}
	for pitch < 0 {
		pitch += 12
	}
	return uint8(pitch)
}
