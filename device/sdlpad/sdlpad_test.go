package sdlpad

import (
	"context"
	"testing"
	"time"

	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/joyrelay/device"
	"github.com/Alia5/joyrelay/event"
	"github.com/Alia5/joyrelay/relayerr"
)

type fakePad struct {
	pressed   map[sdl.GamepadButton]bool
	connected bool
	closed    bool
}

func (p *fakePad) Button(b sdl.GamepadButton) bool { return p.pressed[b] }
func (p *fakePad) Connected() bool                 { return p.connected }
func (p *fakePad) Close()                          { p.closed = true }

func connected(pad *fakePad, buttons int) *Source {
	return &Source{
		opts:    device.Options{PollInterval: time.Millisecond},
		pad:     pad,
		update:  func() {},
		buttons: make([]bool, buttons),
	}
}

func TestPollReportsTransitions(t *testing.T) {
	pad := &fakePad{pressed: map[sdl.GamepadButton]bool{}, connected: true}
	s := connected(pad, 8)

	pad.pressed[3] = true
	got, err := s.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []event.RawEvent{{Kind: event.KindButtonDown, Button: 3}}, got)

	delete(pad.pressed, 3)
	got, err = s.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []event.RawEvent{{Kind: event.KindButtonUp, Button: 3}}, got)
}

func TestPollUnpluggedGamepad(t *testing.T) {
	pad := &fakePad{pressed: map[sdl.GamepadButton]bool{1: true}, connected: true}
	s := connected(pad, 8)
	_, err := s.Poll(context.Background())
	require.NoError(t, err)

	pad.connected = false
	_, err = s.Poll(context.Background())
	assert.ErrorIs(t, err, relayerr.ErrDeviceNotFound)
	assert.True(t, pad.closed)

	_, err = s.Poll(context.Background())
	assert.ErrorIs(t, err, relayerr.ErrDeviceNotFound)
}
