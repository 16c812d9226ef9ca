// Package sdlpad implements device.Source for SDL3 gamepads, using the SDL
// library embedded by go-sdl3 so no system install is required.
package sdlpad

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Zyko0/go-sdl3/bin/binsdl"
	"github.com/Zyko0/go-sdl3/sdl"

	"github.com/Alia5/joyrelay/device"
	"github.com/Alia5/joyrelay/event"
	"github.com/Alia5/joyrelay/relayerr"
)

func init() {
	device.Register("sdl", func(o device.Options) device.Source { return New(o) })
}

var (
	libOnce sync.Once
	libErr  error
)

// loadSDL loads and initialises the gamepad subsystem once per process.
func loadSDL() error {
	libOnce.Do(func() {
		binsdl.Load()
		if err := sdl.Init(sdl.INIT_GAMEPAD); err != nil {
			libErr = fmt.Errorf("sdl init: %w", err)
		}
	})
	return libErr
}

// gamepad is the part of *sdl.Gamepad a Source reads.
type gamepad interface {
	Button(button sdl.GamepadButton) bool
	Connected() bool
	Close()
}

// Source reads button state from the Index-th SDL gamepad.
type Source struct {
	opts    device.Options
	pad     gamepad
	update  func()
	buttons []bool
}

// New returns an unconnected SDL gamepad source.
func New(o device.Options) *Source {
	return &Source{opts: o, update: sdl.UpdateGamepads}
}

func (s *Source) Connect(ctx context.Context) error {
	if err := loadSDL(); err != nil {
		return relayerr.DeviceNotFound("connect", err)
	}
	if s.pad != nil {
		_ = s.Close()
	}
	sdl.UpdateGamepads()
	ids, err := sdl.GetGamepads()
	if err != nil {
		return relayerr.DeviceNotFound("list gamepads", err)
	}
	if s.opts.Index < 0 || s.opts.Index >= len(ids) {
		return relayerr.DeviceNotFound("connect", fmt.Errorf("%d gamepads attached, wanted index %d", len(ids), s.opts.Index))
	}
	pad, err := ids[s.opts.Index].OpenGamepad()
	if err != nil {
		return relayerr.DeviceNotFound("open gamepad", err)
	}
	if pad == nil {
		return relayerr.DeviceNotFound("open gamepad", errors.New("no gamepad handle"))
	}
	s.pad = pad
	s.buttons = make([]bool, int(sdl.GAMEPAD_BUTTON_COUNT))
	return nil
}

func (s *Source) ButtonCount() int { return len(s.buttons) }

func (s *Source) Name() string { return fmt.Sprintf("SDL gamepad %d", s.opts.Index) }

func (s *Source) Poll(ctx context.Context) ([]event.RawEvent, error) {
	if s.pad == nil {
		return nil, relayerr.DeviceNotFound("poll", nil)
	}
	if err := device.Wait(ctx, s.opts.Interval()); err != nil {
		return nil, err
	}
	s.update()
	if !s.pad.Connected() {
		_ = s.Close()
		return nil, relayerr.DeviceNotFound("poll", errors.New("gamepad disconnected"))
	}
	cur := make([]bool, len(s.buttons))
	for i := range cur {
		cur[i] = s.pad.Button(sdl.GamepadButton(i))
	}
	out := device.DiffButtons(s.buttons, cur)
	s.buttons = cur
	return out, nil
}

func (s *Source) Close() error {
	if s.pad == nil {
		return nil
	}
	s.pad.Close()
	s.pad = nil
	return nil
}
