// Package clock abstracts the chain's time source so tests can advance
// virtual time deterministically instead of depending on wall-clock
// latency. One clock is injected per chain; there is no hidden global.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock is the time source a chain and its sources share.
type Clock interface {
	Now() time.Time
	// After behaves like time.After on this clock's timeline.
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// System returns the wall-clock implementation.
func System() Clock { return systemClock{} }

// Virtual is a manually advanced clock for tests. Advance moves time
// forward and fires due timers in deadline order, stepping Now to each
// deadline as it fires so waiters observe the exact instant they asked
// for.
type Virtual struct {
	mu     sync.Mutex
	now    time.Time
	timers []*vtimer
}

type vtimer struct {
	at time.Time
	ch chan time.Time
}

// NewVirtual creates a virtual clock starting at the given instant.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) After(d time.Duration) <-chan time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	t := &vtimer{at: v.now.Add(d), ch: make(chan time.Time, 1)}
	if d <= 0 {
		t.ch <- v.now
		return t.ch
	}
	v.timers = append(v.timers, t)
	return t.ch
}

// Advance moves the clock forward by d, firing every timer that falls
// due along the way, earliest first.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	target := v.now.Add(d)
	for {
		next := v.dueBefore(target)
		if next == nil {
			break
		}
		v.now = next.at
		next.ch <- next.at
	}
	v.now = target
}

// dueBefore pops the earliest timer with a deadline at or before
// target, or nil. Callers hold v.mu.
func (v *Virtual) dueBefore(target time.Time) *vtimer {
	sort.SliceStable(v.timers, func(i, j int) bool {
		return v.timers[i].at.Before(v.timers[j].at)
	})
	if len(v.timers) == 0 || v.timers[0].at.After(target) {
		return nil
	}
	t := v.timers[0]
	v.timers = v.timers[1:]
	return t
}
