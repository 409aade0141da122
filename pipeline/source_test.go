package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midifx/clock"
	"midifx/event"
)

func TestSliceSource(t *testing.T) {
	vc := clock.NewVirtual(base)
	first := event.NoteOn{At: base, Pitch: 60, Velocity: 100}
	second := event.NoteOff{At: base.Add(time.Second), Pitch: 60}
	src := NewSliceSource(vc, first, second)

	ctx := context.Background()

	msg, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, event.Message(first), msg, "an already-due message returns without waiting")

	done := make(chan event.Message, 1)
	go func() {
		msg, _ := src.Next(ctx)
		done <- msg
	}()

	time.Sleep(10 * time.Millisecond) // let Next arm its timer
	vc.Advance(time.Second)
	select {
	case msg := <-done:
		assert.Equal(t, event.Message(second), msg)
	case <-time.After(2 * time.Second):
		t.Fatal("source did not release the second message")
	}

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestSliceSourceCancel(t *testing.T) {
	vc := clock.NewVirtual(base)
	src := NewSliceSource(vc, event.NoteOn{At: base.Add(time.Hour), Pitch: 60})

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := src.Next(ctx)
		errs <- err
	}()
	cancel()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not observe cancellation")
	}
}

func TestPulseSource(t *testing.T) {
	vc := clock.NewVirtual(base)
	src := NewPulseSource(vc, time.Second, 69, 64, 100*time.Millisecond, 2)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		done := make(chan event.Message, 1)
		go func() {
			msg, _ := src.Next(ctx)
			done <- msg
		}()
		time.Sleep(10 * time.Millisecond) // let Next arm its timer
		vc.Advance(time.Second)
		select {
		case msg := <-done:
			note := msg.(event.Note)
			assert.Equal(t, uint8(69), note.Pitch)
			assert.Equal(t, base.Add(time.Duration(i)*time.Second), note.Start)
		case <-time.After(2 * time.Second):
			t.Fatalf("pulse %d did not fire", i)
		}
	}

	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestCollectSink(t *testing.T) {
	vc := clock.NewVirtual(base)
	sink := NewCollectSink(vc, 2)

	note := event.Note{Start: base, Pitch: 60, Velocity: 100, Duration: time.Second}
	require.NoError(t, sink.Emit(note))
	require.NoError(t, sink.Emit(event.EndOfStream{At: base}), "the marker is not collected")
	assert.ErrorIs(t, sink.Emit(note), ErrStop, "hitting the limit requests a stop")

	assert.Len(t, sink.Messages(), 2)
	for _, e := range sink.Emissions() {
		assert.Equal(t, base, e.At)
	}
}
