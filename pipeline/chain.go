// Package pipeline implements the event pipeline core: modules wired
// in sequence, driven one tick at a time by a chain. Each tick carries
// zero-or-one input event through every module in order, so per-event
// order is preserved end to end; a module may suppress events (note
// assembly in flight) or emit events that arrived on an earlier tick
// (time-deferred effects).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"midifx/clock"
	"midifx/event"
	"midifx/param"
)

// Stage is one slot in a chain: a Source, a *Module, or a Sink.
type Stage = any

// Chain owns an ordered sequence of modules between one source and one
// sink and drives the scheduling loop. It holds no mutable state beyond
// the sequence and its stop flag; all event state lives inside the
// modules. A chain runs on a single logical thread: module processing
// and param mutation are never concurrent.
type Chain struct {
	source  Source
	modules []*Module
	sink    Sink

	clk        clock.Clock
	log        *slog.Logger
	onError    func(error)
	strictSink bool

	stopCh   chan struct{}
	stopOnce sync.Once
	fatal    error
}

// Option configures a chain at build time.
type Option func(*Chain)

// WithClock injects the chain's time source. Tests use clock.Virtual.
func WithClock(clk clock.Clock) Option {
	return func(c *Chain) { c.clk = clk }
}

// WithLogger sets the structured logger; slog.Default otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(c *Chain) { c.log = l }
}

// WithErrorHandler registers a callback for recoverable errors
// (dropped invalid events, sink failures). Without one they are only
// logged.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Chain) { c.onError = fn }
}

// WithStrictSink makes sink emit failures fatal instead of logged.
func WithStrictSink() Option {
	return func(c *Chain) { c.strictSink = true }
}

// NewChain builds and validates a chain from its ordered stages: a
// Source first, then modules, then optionally a Sink (without one,
// output is discarded). Misplaced or duplicate sources and sinks, and
// two params bound to the same control address, are ConfigErrors.
func NewChain(stages []Stage, opts ...Option) (*Chain, error) {
	c := &Chain{
		clk:    clock.System(),
		log:    slog.Default(),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	for i, st := range stages {
		switch s := st.(type) {
		case *Module:
			c.modules = append(c.modules, s)
		case Source:
			if c.source != nil {
				return nil, configErrorf("more than one source")
			}
			if i != 0 {
				return nil, configErrorf("source must be the first stage")
			}
			c.source = s
		case Sink:
			if c.sink != nil {
				return nil, configErrorf("more than one sink")
			}
			if i != len(stages)-1 {
				return nil, configErrorf("sink must be the last stage")
			}
			c.sink = s
		default:
			return nil, configErrorf("stage %d: %T is not a source, module or sink", i, st)
		}
	}
	if c.source == nil {
		return nil, configErrorf("a chain needs a source")
	}
	// One address, one owner: a control change must have an
	// unambiguous destination.
	owners := make(map[param.Address]string)
	for _, m := range c.modules {
		for _, ctl := range m.Controls() {
			addr, bound := ctl.Binding()
			if !bound {
				continue
			}
			name := m.Name() + "/" + ctl.Name()
			if owner, dup := owners[addr]; dup {
				return nil, configErrorf("address %s bound by both %s and %s", addr, owner, name)
			}
			owners[addr] = name
		}
	}
	for _, m := range c.modules {
		m.setLogger(c.log)
	}
	return c, nil
}

// Run drives the scheduling loop until the source is exhausted (and
// all deferred events have drained), Stop is called, the context is
// cancelled, or a fatal error occurs. On every exit path the modules
// flush in order and the flushed events drain through the rest of the
// chain before Run returns.
func (c *Chain) Run(ctx context.Context) error {
	events := make(chan event.Message, 16)
	pullCtx, cancelPull := context.WithCancel(ctx)
	defer cancelPull()
	go c.pull(pullCtx, events)

loop:
	for {
		select {
		case <-c.stopCh:
			break loop
		default:
		}

		var timer <-chan time.Time
		if release, ok := c.nextRelease(); ok {
			wait := release.Sub(c.clk.Now())
			if wait < 0 {
				wait = 0
			}
			timer = c.clk.After(wait)
		}
		if events == nil && timer == nil {
			break loop
		}

		select {
		case <-ctx.Done():
			c.finish()
			return ctx.Err()
		case <-c.stopCh:
			break loop
		case msg, ok := <-events:
			if !ok {
				// Source exhausted: keep ticking until deferred
				// buffers have drained.
				events = nil
				continue
			}
			if _, eos := msg.(event.EndOfStream); eos {
				c.tick(msg)
				return c.fatal
			}
			if err := event.Validate(msg); err != nil {
				c.report(fmt.Errorf("dropping invalid event: %w", err))
				continue
			}
			c.tick(msg)
		case <-timer:
			c.tick(nil)
		}
	}

	c.finish()
	return c.fatal
}

// Stop requests a graceful shutdown. It is cooperative: the chain
// observes it at the next tick boundary, so in-flight tick work always
// completes first.
func (c *Chain) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Chain) pull(ctx context.Context, events chan<- event.Message) {
	defer close(events)
	for {
		msg, err := c.source.Next(ctx)
		if err != nil {
			if !errors.Is(err, ErrExhausted) && !errors.Is(err, context.Canceled) {
				c.report(fmt.Errorf("source: %w", err))
			}
			return
		}
		select {
		case events <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// tick threads one unit of input (or nil, on a deferred-release
// wakeup) through every module in chain order and routes the outputs
// to the sink. All per-tick work is synchronous.
func (c *Chain) tick(in event.Message) {
	now := c.clk.Now()
	var batch []event.Message
	if in != nil {
		batch = append(batch, in)
	}
	for _, m := range c.modules {
		var next []event.Message
		if len(batch) == 0 {
			// No events reach this module this tick, but it still
			// gets a chance to drain a due deferred release.
			next = m.Process(nil, now)
		} else {
			for _, msg := range batch {
				next = append(next, m.Process(msg, now)...)
			}
		}
		batch = next
	}
	for _, msg := range batch {
		c.emit(msg)
	}
}

func (c *Chain) emit(msg event.Message) {
	if c.sink == nil {
		c.log.Debug("no sink, dropping", "event", msg.String())
		return
	}
	err := c.sink.Emit(msg)
	if err == nil {
		return
	}
	if errors.Is(err, ErrStop) {
		c.log.Info("sink requested stop")
		c.Stop()
		return
	}
	serr := &SinkError{Err: err}
	if c.strictSink {
		c.fatal = serr
		c.Stop()
		return
	}
	c.log.Warn("sink emit failed", "event", msg.String(), "error", err)
	c.report(serr)
}

// finish pushes an end-of-stream marker through the chain so every
// module flushes, in order, before the sink is released.
func (c *Chain) finish() {
	c.tick(event.EndOfStream{At: c.clk.Now()})
}

// nextRelease is the earliest pending release over all time-deferred
// modules.
func (c *Chain) nextRelease() (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, m := range c.modules {
		at, ok := m.NextRelease()
		if !ok {
			continue
		}
		if !found || at.Before(earliest) {
			earliest = at
			found = true
		}
	}
	return earliest, found
}

func (c *Chain) report(err error) {
	if c.onError != nil {
		c.onError(err)
		return
	}
	c.log.Warn("pipeline error", "error", err)
}
