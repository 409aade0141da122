package pipeline

import (
	"context"
	"sync"
	"time"

	"midifx/clock"
	"midifx/event"
)

// Source produces the chain's input. Next blocks until an event is
// available (or ctx is cancelled) and returns ErrExhausted after the
// final event. Timestamps must be monotonic.
type Source interface {
	Next(ctx context.Context) (event.Message, error)
}

// Sink consumes the chain's output. An emit failure is non-fatal to the
// pipeline: the chain logs it and the tick continues, unless the chain
// was built with WithStrictSink.
type Sink interface {
	Emit(msg event.Message) error
}

// SliceSource replays a fixed schedule of messages, releasing each one
// at its own timestamp on the given clock. Covers recorded input in
// tests and demos; real port listeners live outside this module.
type SliceSource struct {
	clk  clock.Clock
	msgs []event.Message
	next int
}

// NewSliceSource builds a source over the given messages, which must be
// ordered by timestamp.
func NewSliceSource(clk clock.Clock, msgs ...event.Message) *SliceSource {
	return &SliceSource{clk: clk, msgs: msgs}
}

func (s *SliceSource) Next(ctx context.Context) (event.Message, error) {
	if s.next >= len(s.msgs) {
		return nil, ErrExhausted
	}
	msg := s.msgs[s.next]
	if wait := msg.Time().Sub(s.clk.Now()); wait > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.clk.After(wait):
		}
	}
	s.next++
	return msg, nil
}

// PulseSource emits a fixed note once per inter-onset interval: a
// metronome for exercising chains without recorded material.
type PulseSource struct {
	clk      clock.Clock
	ioi      time.Duration
	pitch    uint8
	velocity uint8
	duration time.Duration
	count    int // 0 means unbounded

	emitted int
	at      time.Time
}

// NewPulseSource creates a pulse source. count limits the number of
// notes; 0 keeps pulsing forever.
func NewPulseSource(clk clock.Clock, ioi time.Duration, pitch, velocity uint8, duration time.Duration, count int) *PulseSource {
	return &PulseSource{clk: clk, ioi: ioi, pitch: pitch, velocity: velocity, duration: duration, count: count}
}

func (p *PulseSource) Next(ctx context.Context) (event.Message, error) {
	if p.count > 0 && p.emitted >= p.count {
		return nil, ErrExhausted
	}
	if p.at.IsZero() {
		p.at = p.clk.Now().Add(p.ioi)
	} else {
		p.at = p.at.Add(p.ioi)
	}
	if wait := p.at.Sub(p.clk.Now()); wait > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.clk.After(wait):
		}
	}
	p.emitted++
	return event.Note{
		Start:    p.at,
		Pitch:    p.pitch,
		Velocity: p.velocity,
		Duration: p.duration,
	}, nil
}

// CollectSink accumulates every emitted message (the end-of-stream
// marker excepted) together with its emission instant on the chain
// clock. With a limit set, it requests a graceful chain stop once the
// limit is reached.
type CollectSink struct {
	mu    sync.Mutex
	clk   clock.Clock
	limit int
	got   []Emitted
}

// Emitted is one sink delivery: the message and when it left the chain.
type Emitted struct {
	At  time.Time
	Msg event.Message
}

// NewCollectSink creates a collecting sink; limit 0 collects without
// bound.
func NewCollectSink(clk clock.Clock, limit int) *CollectSink {
	return &CollectSink{clk: clk, limit: limit}
}

func (c *CollectSink) Emit(msg event.Message) error {
	if _, eos := msg.(event.EndOfStream); eos {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, Emitted{At: c.clk.Now(), Msg: msg})
	if c.limit > 0 && len(c.got) >= c.limit {
		return ErrStop
	}
	return nil
}

// Messages returns the collected messages in emission order.
func (c *CollectSink) Messages() []event.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]event.Message, len(c.got))
	for i, e := range c.got {
		out[i] = e.Msg
	}
	return out
}

// Emissions returns the collected deliveries with their timestamps.
func (c *CollectSink) Emissions() []Emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Emitted(nil), c.got...)
}

// FuncSink adapts a plain function into a Sink, for callers bridging
// chain output to a port writer or recorder.
type FuncSink func(msg event.Message) error

func (f FuncSink) Emit(msg event.Message) error { return f(msg) }
