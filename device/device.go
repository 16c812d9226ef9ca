// Package device provides the input-device capability polled by the relay
// server and the native teleoperation runtime, and a registry of backends.
package device

import (
	"context"
	"time"

	"github.com/Alia5/joyrelay/event"
)

// DefaultPollInterval is used by backends when Options.PollInterval is zero.
const DefaultPollInterval = 10 * time.Millisecond

// Source is a locally attached input device.
type Source interface {
	// Connect opens the device. It fails with relayerr.ErrDeviceNotFound when
	// no matching device is present. Connect may be called again after Close.
	Connect(ctx context.Context) error
	// ButtonCount is valid only after a successful Connect.
	ButtonCount() int
	// Name is the human readable device name.
	Name() string
	// Poll returns the raw events observed since the previous call. It waits
	// at most one poll interval and may return an empty slice.
	Poll(ctx context.Context) ([]event.RawEvent, error)
	// Close releases the device.
	Close() error
}

// Options select and tune a backend.
type Options struct {
	// Index selects the n-th device when several are attached.
	Index int
	// Path selects a device node directly (evdev only).
	Path string
	// PollInterval is the wait between two state reads.
	PollInterval time.Duration
}

// Interval returns the effective poll interval.
func (o Options) Interval() time.Duration {
	if o.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return o.PollInterval
}

// DiffButtons compares two button state snapshots and returns one
// ButtonDown/ButtonUp event per changed button in ascending index order.
// Buttons missing from prev are treated as released.
func DiffButtons(prev, cur []bool) []event.RawEvent {
	var out []event.RawEvent
	for i, pressed := range cur {
		was := i < len(prev) && prev[i]
		if pressed == was {
			continue
		}
		kind := event.KindButtonUp
		if pressed {
			kind = event.KindButtonDown
		}
		out = append(out, event.RawEvent{Kind: kind, Button: i})
	}
	return out
}

// Wait blocks for d or until ctx is done.
func Wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
