// Package joystick implements device.Source on top of the OS joystick API
// (/dev/input/js* on Linux, winmm on Windows).
package joystick

import (
	"context"
	"fmt"

	js "github.com/0xcafed00d/joystick"

	"github.com/Alia5/joyrelay/device"
	"github.com/Alia5/joyrelay/event"
	"github.com/Alia5/joyrelay/relayerr"
)

// maxButtons is the width of the button bitmask reported by the driver.
const maxButtons = 32

func init() {
	device.Register("joystick", func(o device.Options) device.Source { return New(o) })
}

// Source polls the joystick state and reports changes as raw events.
type Source struct {
	opts    device.Options
	js      js.Joystick
	name    string
	buttons []bool
	axes    []int
}

// New returns an unconnected joystick source.
func New(o device.Options) *Source {
	return &Source{opts: o}
}

func (s *Source) Connect(ctx context.Context) error {
	if s.js != nil {
		_ = s.Close()
	}
	j, err := js.Open(s.opts.Index)
	if err != nil {
		return relayerr.DeviceNotFound(fmt.Sprintf("open joystick %d", s.opts.Index), err)
	}
	s.js = j
	s.name = j.Name()
	s.buttons = make([]bool, min(j.ButtonCount(), maxButtons))
	s.axes = nil
	return nil
}

func (s *Source) ButtonCount() int { return len(s.buttons) }

func (s *Source) Name() string { return s.name }

func (s *Source) Poll(ctx context.Context) ([]event.RawEvent, error) {
	if s.js == nil {
		return nil, relayerr.DeviceNotFound("poll", nil)
	}
	if err := device.Wait(ctx, s.opts.Interval()); err != nil {
		return nil, err
	}
	state, err := s.js.Read()
	if err != nil {
		return nil, relayerr.DeviceNotFound("read joystick", err)
	}

	cur := make([]bool, len(s.buttons))
	for i := range cur {
		cur[i] = state.Buttons&(1<<uint(i)) != 0
	}
	out := device.DiffButtons(s.buttons, cur)
	s.buttons = cur

	if s.axes != nil {
		for i, v := range state.AxisData {
			if i < len(s.axes) && s.axes[i] == v {
				continue
			}
			out = append(out, event.RawEvent{Kind: event.KindAxisMotion, Axis: i, Value: float64(v) / 32767})
		}
	}
	s.axes = append(s.axes[:0:0], state.AxisData...)
	return out, nil
}

func (s *Source) Close() error {
	if s.js == nil {
		return nil
	}
	s.js.Close()
	s.js = nil
	return nil
}
