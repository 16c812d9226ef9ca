//go:build linux

// Package evdev implements device.Source by reading Linux input events
// directly from /dev/input/event*.
//
// Button indices are the positions of the device's joystick and gamepad BTN
// codes in ascending code order, which matches the numbering used by the
// kernel joydev driver.
package evdev

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	ev "github.com/holoplot/go-evdev"

	"github.com/Alia5/joyrelay/device"
	"github.com/Alia5/joyrelay/event"
	"github.com/Alia5/joyrelay/relayerr"
)

// Linux input codes (input-event-codes.h).
const (
	btnMisc          ev.EvCode = 0x100
	btnDigi          ev.EvCode = 0x140
	btnTriggerHappy  ev.EvCode = 0x2c0
	btnTriggerHappy4 ev.EvCode = 0x2e7
	absHat0X         ev.EvCode = 0x10
	absHat3Y         ev.EvCode = 0x17
)

// Key values reported with EV_KEY.
const (
	keyUp   = 0
	keyDown = 1
)

func init() {
	device.Register("evdev", func(o device.Options) device.Source { return New(o) })
}

// Source reads one evdev node in a background goroutine and hands the
// collected events out per Poll.
type Source struct {
	opts    device.Options
	dev     *ev.InputDevice
	name    string
	index   map[ev.EvCode]int
	events  chan ev.InputEvent
	readErr chan error
	done    chan struct{}
}

// New returns an unconnected evdev source.
func New(o device.Options) *Source {
	return &Source{opts: o}
}

func isJoystickButton(c ev.EvCode) bool {
	return (c >= btnMisc && c < btnDigi) || (c >= btnTriggerHappy && c <= btnTriggerHappy4)
}

func joystickButtons(dev *ev.InputDevice) []ev.EvCode {
	var out []ev.EvCode
	for _, c := range dev.CapableEvents(ev.EV_KEY) {
		if isJoystickButton(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// find opens opts.Path, or the Index-th input device exposing joystick buttons.
func (s *Source) find() (*ev.InputDevice, error) {
	if s.opts.Path != "" {
		return ev.Open(s.opts.Path)
	}
	paths, err := ev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}
	seen := 0
	for _, p := range paths {
		dev, err := ev.Open(p.Path)
		if err != nil {
			continue
		}
		if len(joystickButtons(dev)) == 0 {
			_ = dev.Close()
			continue
		}
		if seen == s.opts.Index {
			return dev, nil
		}
		seen++
		_ = dev.Close()
	}
	return nil, errors.New("no joystick or gamepad input device found")
}

func (s *Source) Connect(ctx context.Context) error {
	if s.dev != nil {
		_ = s.Close()
	}
	dev, err := s.find()
	if err != nil {
		return relayerr.DeviceNotFound("connect", err)
	}
	codes := joystickButtons(dev)
	if len(codes) == 0 {
		_ = dev.Close()
		return relayerr.DeviceNotFound("connect", fmt.Errorf("%s exposes no joystick buttons", s.opts.Path))
	}

	s.index = make(map[ev.EvCode]int, len(codes))
	for i, c := range codes {
		s.index[c] = i
	}
	s.name, _ = dev.Name()
	s.dev = dev
	s.events = make(chan ev.InputEvent, 256)
	s.readErr = make(chan error, 1)
	s.done = make(chan struct{})
	go s.read(dev, s.events, s.readErr, s.done)
	return nil
}

func (s *Source) read(dev *ev.InputDevice, events chan<- ev.InputEvent, errs chan<- error, done <-chan struct{}) {
	for {
		e, err := dev.ReadOne()
		if err != nil {
			errs <- err
			return
		}
		select {
		case events <- *e:
		case <-done:
			return
		}
	}
}

func (s *Source) ButtonCount() int { return len(s.index) }

func (s *Source) Name() string { return s.name }

func (s *Source) Poll(ctx context.Context) ([]event.RawEvent, error) {
	if s.dev == nil {
		return nil, relayerr.DeviceNotFound("poll", nil)
	}

	var out []event.RawEvent
	timer := time.NewTimer(s.opts.Interval())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-s.readErr:
		return nil, relayerr.DeviceNotFound("read input event", err)
	case e := <-s.events:
		out = s.append(out, e)
	case <-timer.C:
		return out, nil
	}

	for {
		select {
		case e := <-s.events:
			out = s.append(out, e)
		default:
			return out, nil
		}
	}
}

func (s *Source) append(out []event.RawEvent, e ev.InputEvent) []event.RawEvent {
	switch e.Type {
	case ev.EV_KEY:
		i, ok := s.index[e.Code]
		if !ok {
			return out
		}
		switch e.Value {
		case keyDown:
			return append(out, event.RawEvent{Kind: event.KindButtonDown, Button: i})
		case keyUp:
			return append(out, event.RawEvent{Kind: event.KindButtonUp, Button: i})
		}
	case ev.EV_ABS:
		kind := event.KindAxisMotion
		if e.Code >= absHat0X && e.Code <= absHat3Y {
			kind = event.KindHatMotion
		}
		return append(out, event.RawEvent{Kind: kind, Axis: int(e.Code), Value: float64(e.Value)})
	}
	return out
}

func (s *Source) Close() error {
	if s.dev == nil {
		return nil
	}
	close(s.done)
	err := s.dev.Close()
	s.dev = nil
	return err
}
