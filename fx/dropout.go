package fx

import (
	"time"

	"midifx/event"
	"midifx/param"
	"midifx/pipeline"
)

// Dropout randomly thins the note stream: each closed note is dropped
// with a controllable probability. Draws come from the shared param
// random source so runs are reproducible under param.Seed.
type Dropout struct {
	amount *param.Value // drop probability, 0..1
}

var _ pipeline.Effect = (*Dropout)(nil)

// NewDropout creates a dropout effect. nil amount means a fixed 0.5.
func NewDropout(amount *param.Value) *Dropout {
	if amount == nil {
		amount = param.Const(0.5)
	}
	return &Dropout{amount: amount}
}

func (d *Dropout) Name() string { return "dropout" }

func (d *Dropout) Controls() []param.Control { return []param.Control{d.amount} }

func (d *Dropout) Transform(msg event.Message, now time.Time) []event.Message {
	if msg == nil {
		return nil
	}
	if _, ok := msg.(event.Note); ok && param.Random().Float64() < d.amount.Float() {
		return nil
	}
	return []event.Message{msg}
}
