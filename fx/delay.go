// Package fx provides the built-in pipeline effects. Each effect
// implements pipeline.Effect and leaves control interception, gating
// and note assembly to the Module that wraps it.
package fx

import (
	"time"

	"midifx/event"
	"midifx/param"
	"midifx/pipeline"
)

// Delay re-emits every closed note a controllable amount of seconds
// late. Incoming notes are cloned, shifted, and held in a private
// buffer ordered by release time (FIFO among equal times); anything
// else passes straight through. The amount is fixed per note at
// insertion: changing it later never moves an already-buffered entry.
//
// The buffer is unbounded by design. Under sustained input above the
// drain rate it grows without backpressure; bounding it is the
// caller's concern.
type Delay struct {
	amount *param.Value // seconds
	buf    []release
}

type release struct {
	at  time.Time
	msg event.Message
}

var (
	_ pipeline.Effect    = (*Delay)(nil)
	_ pipeline.Flusher   = (*Delay)(nil)
	_ pipeline.Scheduler = (*Delay)(nil)
)

// NewDelay creates a delay effect. amount is in seconds; nil means a
// fixed 2.0s, the classic default.
func NewDelay(amount *param.Value) *Delay {
	if amount == nil {
		amount = param.Const(2.0)
	}
	return &Delay{amount: amount}
}

func (d *Delay) Name() string { return "delay" }

func (d *Delay) Controls() []param.Control { return []param.Control{d.amount} }

func (d *Delay) Transform(msg event.Message, now time.Time) []event.Message {
	out := d.drain(now)
	if msg == nil {
		return out
	}
	note, ok := msg.(event.Note)
	if !ok {
		return append(out, msg)
	}
	amount := time.Duration(d.amount.Float() * float64(time.Second))
	shifted := note
	shifted.Start = note.Start.Add(amount)
	d.insert(release{at: note.End().Add(amount), msg: shifted})
	return out
}

// Flush releases everything still buffered, in release order,
// regardless of due time.
func (d *Delay) Flush(now time.Time) []event.Message {
	out := make([]event.Message, len(d.buf))
	for i, r := range d.buf {
		out[i] = r.msg
	}
	d.buf = nil
	return out
}

// NextRelease reports the buffer head's due time.
func (d *Delay) NextRelease() (time.Time, bool) {
	if len(d.buf) == 0 {
		return time.Time{}, false
	}
	return d.buf[0].at, true
}

func (d *Delay) drain(now time.Time) []event.Message {
	var out []event.Message
	for len(d.buf) > 0 && !d.buf[0].at.After(now) {
		out = append(out, d.buf[0].msg)
		d.buf = d.buf[1:]
	}
	return out
}

// insert keeps the buffer ordered by release time, placing equal times
// after existing ones so ties drain FIFO.
func (d *Delay) insert(r release) {
	i := len(d.buf)
	for i > 0 && d.buf[i-1].at.After(r.at) {
		i--
	}
	d.buf = append(d.buf, release{})
	copy(d.buf[i+1:], d.buf[i:])
	d.buf[i] = r
}
