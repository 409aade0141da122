// Package param provides the mutable cells that make module options
// controllable at run time. A Value (float) or Switch (bool) can be
// bound to a control-change address; the owning module offers every
// incoming control change to its declared params, and a matching one
// updates the cell and is consumed.
//
// Params are owned by exactly one module and are mutated only from the
// chain's single logical thread: control updates and reads never run
// concurrently for one module. Implementations rely on this and take no
// locks.
package param

import (
	"fmt"

	"midifx/event"
)

// Address is the (controller, channel) pair a control listens on. It
// must be unique per bound control within one running chain; the chain
// rejects duplicates at build time.
type Address struct {
	Controller uint8 // 0..127
	Channel    uint8 // 0..15
}

func (a Address) String() string {
	return fmt.Sprintf("cc%d/ch%d", a.Controller, a.Channel)
}

// Control is the capability modules use to service their params. A
// control change is offered to each declared control in order; the
// first match consumes it.
type Control interface {
	Name() string
	// Binding reports the listening address, false when the control is
	// a plain constant.
	Binding() (Address, bool)
	// OnControl consumes a matching control change by updating the
	// cell, and ignores everything else. Non-matching messages must be
	// forwarded by the caller: listening never removes them from the
	// stream.
	OnControl(cc event.ControlChange) bool
}

// Value is a controllable float cell. On a matching control change the
// 0..127 control value is mapped linearly onto [min, max]; with a Drift
// attached, the literal control value is ignored and a pseudo-random
// step within [min, max] is taken instead.
type Value struct {
	name     string
	current  float64
	min, max float64
	addr     Address
	bound    bool
	drift    Drift
}

// NewValue creates an unbound value cell. Use Bind to attach it to a
// control address and WithDrift to make it evolve randomly.
func NewValue(name string, initial, min, max float64) *Value {
	return &Value{name: name, current: clamp(initial, min, max), min: min, max: max}
}

// Const wraps a fixed float so call sites can treat fixed and
// controllable options uniformly. It ignores all control messages.
func Const(x float64) *Value {
	return &Value{name: "const", current: x, min: x, max: x}
}

// Bind registers the listening address. A value listens on one address
// only; binding again replaces the previous one.
func (v *Value) Bind(controller, channel uint8) *Value {
	v.addr = Address{Controller: controller, Channel: channel}
	v.bound = true
	return v
}

// WithDrift attaches a drift strategy, making the value re-roll within
// its range whenever its trigger controller fires.
func (v *Value) WithDrift(d Drift) *Value {
	v.drift = d
	return v
}

func (v *Value) Name() string { return v.name }

func (v *Value) Binding() (Address, bool) { return v.addr, v.bound }

// Float returns the current value.
func (v *Value) Float() float64 { return v.current }

func (v *Value) OnControl(cc event.ControlChange) bool {
	if !v.bound || cc.Controller != v.addr.Controller || cc.Channel != v.addr.Channel {
		return false
	}
	if v.drift != nil {
		// Control value 0 marks a phrase boundary, not a re-roll.
		if cc.Value != 0 {
			v.current = clamp(v.drift.Step(rng, v.min, v.max), v.min, v.max)
		}
		return true
	}
	v.current = v.min + float64(cc.Value)/float64(event.MaxControl)*(v.max-v.min)
	return true
}

// Switch is a controllable bool cell. A matching control change with
// value >= 64 turns it on, lower values turn it off.
type Switch struct {
	name  string
	on    bool
	addr  Address
	bound bool
	drift Drift
}

// NewSwitch creates an unbound switch cell.
func NewSwitch(name string, initial bool) *Switch {
	return &Switch{name: name, on: initial}
}

// ConstSwitch wraps a fixed bool; it ignores all control messages.
func ConstSwitch(on bool) *Switch {
	return &Switch{name: "const", on: on}
}

// Bind registers the listening address.
func (s *Switch) Bind(controller, channel uint8) *Switch {
	s.addr = Address{Controller: controller, Channel: channel}
	s.bound = true
	return s
}

// WithDrift attaches a drift strategy; CoinDrift is the usual choice
// for a randomly toggling switch.
func (s *Switch) WithDrift(d Drift) *Switch {
	s.drift = d
	return s
}

func (s *Switch) Name() string { return s.name }

func (s *Switch) Binding() (Address, bool) { return s.addr, s.bound }

// Bool returns the current state.
func (s *Switch) Bool() bool { return s.on }

func (s *Switch) OnControl(cc event.ControlChange) bool {
	if !s.bound || cc.Controller != s.addr.Controller || cc.Channel != s.addr.Channel {
		return false
	}
	const threshold = 64
	if s.drift != nil {
		if cc.Value != 0 {
			s.on = s.drift.Step(rng, 0, float64(event.MaxControl)) >= threshold
		}
		return true
	}
	s.on = cc.Value >= threshold
	return true
}

func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
