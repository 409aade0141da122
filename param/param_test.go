package param

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midifx/event"
)

func cc(controller, value, channel uint8) event.ControlChange {
	return event.ControlChange{At: time.Unix(0, 0), Controller: controller, Value: value, Channel: channel}
}

func TestValueLinearMapping(t *testing.T) {
	v := NewValue("level", 0, 0.0, 1.0).Bind(7, 0)

	require.True(t, v.OnControl(cc(7, 127, 0)))
	assert.Equal(t, 1.0, v.Float())

	require.True(t, v.OnControl(cc(7, 0, 0)))
	assert.Equal(t, 0.0, v.Float())

	require.True(t, v.OnControl(cc(7, 64, 0)))
	assert.InDelta(t, 64.0/127.0, v.Float(), 1e-9)
}

func TestValueIgnoresOtherAddresses(t *testing.T) {
	v := NewValue("level", 0.25, 0.0, 1.0).Bind(7, 0)

	assert.False(t, v.OnControl(cc(8, 127, 0)), "other controller")
	assert.False(t, v.OnControl(cc(7, 127, 1)), "other channel")
	assert.Equal(t, 0.25, v.Float(), "non-matching messages leave the value unchanged")
}

func TestConstIgnoresEverything(t *testing.T) {
	v := Const(3.5)
	_, bound := v.Binding()
	assert.False(t, bound)
	assert.False(t, v.OnControl(cc(7, 127, 0)))
	assert.Equal(t, 3.5, v.Float())
}

func TestValueInitialClamped(t *testing.T) {
	v := NewValue("amount", 9.0, -5, 5)
	assert.Equal(t, 5.0, v.Float())
}

func TestSwitchThreshold(t *testing.T) {
	s := NewSwitch("mute", false).Bind(64, 0)

	require.True(t, s.OnControl(cc(64, 64, 0)))
	assert.True(t, s.Bool())

	require.True(t, s.OnControl(cc(64, 63, 0)))
	assert.False(t, s.Bool())

	assert.False(t, s.OnControl(cc(65, 127, 0)))
	assert.False(t, s.Bool())
}

func TestConstSwitch(t *testing.T) {
	s := ConstSwitch(true)
	assert.False(t, s.OnControl(cc(64, 0, 0)))
	assert.True(t, s.Bool())
}

func TestBindingReported(t *testing.T) {
	v := NewValue("gap", 0, 0, 8).Bind(4, 2)
	addr, bound := v.Binding()
	require.True(t, bound)
	assert.Equal(t, Address{Controller: 4, Channel: 2}, addr)
	assert.Equal(t, "cc4/ch2", addr.String())
}
