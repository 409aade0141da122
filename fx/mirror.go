package fx

import (
	"math"
	"time"

	"midifx/event"
	"midifx/param"
	"midifx/pipeline"
)

// Mirror reflects every closed note's pitch around a controllable
// center pitch, folding by octaves when the reflection leaves the key
// range. Melodic runs come out inverted.
type Mirror struct {
	center *param.Value // pitch
}

var _ pipeline.Effect = (*Mirror)(nil)

// NewMirror creates a mirror effect. nil center means A4 (69),
// adjustable an octave either way once bound.
func NewMirror(center *param.Value) *Mirror {
	if center == nil {
		center = param.NewValue("center", 69, 57, 81)
	}
	return &Mirror{center: center}
}

func (m *Mirror) Name() string { return "mirror" }

func (m *Mirror) Controls() []param.Control { return []param.Control{m.center} }

func (m *Mirror) Transform(msg event.Message, now time.Time) []event.Message {
	if msg == nil {
		return nil
	}
	note, ok := msg.(event.Note)
	if !ok {
		return []event.Message{msg}
	}
	center := int(math.Round(m.center.Float()))
	note.Pitch = foldPitch(2*center - int(note.Pitch))
	return []event.Message{note}
}
