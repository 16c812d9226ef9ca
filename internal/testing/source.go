package testing

import (
	"context"
	"sync"
	"time"

	"github.com/Alia5/joyrelay/event"
	"github.com/Alia5/joyrelay/relayerr"
)

// idleTick is how long Poll waits for a scripted tick before returning an
// empty one, so streaming loops keep producing frames.
const idleTick = 5 * time.Millisecond

// ScriptedSource is a device.Source double fed with poll ticks by the test.
type ScriptedSource struct {
	ticks chan []event.RawEvent

	mu        sync.Mutex
	buttons   int
	name      string
	present   bool
	pollErr   error
	connected bool
	connects  int
	closes    int
	onConnect func(attempt int)
}

// NewScriptedSource returns a present device reporting buttons buttons that
// yields the given ticks in order.
func NewScriptedSource(buttons int, ticks ...[]event.RawEvent) *ScriptedSource {
	s := &ScriptedSource{
		ticks:   make(chan []event.RawEvent, 1024),
		buttons: buttons,
		name:    "Scripted Pad",
		present: true,
	}
	for _, t := range ticks {
		s.ticks <- t
	}
	return s
}

// Push queues one poll tick.
func (s *ScriptedSource) Push(tick ...event.RawEvent) {
	s.ticks <- tick
}

// Press queues one tick holding a press of each button.
func (s *ScriptedSource) Press(buttons ...int) {
	tick := make([]event.RawEvent, 0, len(buttons))
	for _, b := range buttons {
		tick = append(tick, event.RawEvent{Kind: event.KindButtonDown, Button: b})
	}
	s.Push(tick...)
}

// SetPresent controls whether Connect finds the device.
func (s *ScriptedSource) SetPresent(present bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.present = present
}

// SetButtons changes the button count reported after the next Connect.
func (s *ScriptedSource) SetButtons(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buttons = n
}

// OnConnect registers a callback run at the start of every Connect.
func (s *ScriptedSource) OnConnect(fn func(attempt int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnect = fn
}

// Fail makes every following Poll return err until the next Connect.
func (s *ScriptedSource) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollErr = err
}

// Connects returns how often Connect was called.
func (s *ScriptedSource) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// Closes returns how often Close was called.
func (s *ScriptedSource) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func (s *ScriptedSource) Connect(ctx context.Context) error {
	s.mu.Lock()
	s.connects++
	attempt, fn := s.connects, s.onConnect
	s.mu.Unlock()
	if fn != nil {
		fn(attempt)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.present {
		return relayerr.DeviceNotFound("connect", nil)
	}
	s.connected = true
	s.pollErr = nil
	return nil
}

func (s *ScriptedSource) ButtonCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buttons
}

func (s *ScriptedSource) Name() string { return s.name }

func (s *ScriptedSource) Poll(ctx context.Context) ([]event.RawEvent, error) {
	s.mu.Lock()
	err, connected := s.pollErr, s.connected
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, relayerr.DeviceNotFound("poll", nil)
	}

	t := time.NewTimer(idleTick)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case tick := <-s.ticks:
		return tick, nil
	case <-t.C:
		return nil, nil
	}
}

func (s *ScriptedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	s.connected = false
	return nil
}
