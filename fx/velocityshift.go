package fx

import (
	"time"

	"midifx/event"
	"midifx/param"
	"midifx/pipeline"
)

// VelocityShift moves every closed note's velocity a controllable
// fraction of the way toward an extreme: a positive amount in (0, 1)
// closes part of the gap to maximum, a negative amount in (-1, 0)
// scales toward silence. Zero leaves velocities alone.
type VelocityShift struct {
	amount *param.Value // fraction, -1..1 exclusive
}

var _ pipeline.Effect = (*VelocityShift)(nil)

// NewVelocityShift creates a velocity shifter. nil amount means a
// fixed +0.2.
func NewVelocityShift(amount *param.Value) *VelocityShift {
	if amount == nil {
		amount = param.Const(0.2)
	}
	return &VelocityShift{amount: amount}
}

func (v *VelocityShift) Name() string { return "velocityshift" }

func (v *VelocityShift) Controls() []param.Control { return []param.Control{v.amount} }

func (v *VelocityShift) Transform(msg event.Message, now time.Time) []event.Message {
	if msg == nil {
		return nil
	}
	note, ok := msg.(event.Note)
	if !ok {
		return []event.Message{msg}
	}
	amount := v.amount.Float()
	var shift int
	if amount > 0 {
		shift = int(amount * float64(int(event.MaxVelo)+1-int(note.Velocity)))
	} else {
		shift = int(amount * float64(note.Velocity))
	}
	note.Velocity = uint8(int(note.Velocity) + shift)
	return []event.Message{note}
}
