package teleop

import (
	"context"
	"fmt"

	"github.com/Alia5/joyrelay/device"
	"github.com/Alia5/joyrelay/event"
)

// Source feeds the dispatcher. *client.Client satisfies it for a remote
// device; FromDevice adapts a device attached to this machine.
type Source interface {
	// ButtonCount is fixed for the lifetime of the source.
	ButtonCount() int
	// Next blocks for the next batch of button events.
	Next(ctx context.Context) (event.Batch, error)
}

// LocalSource reads a device.Source in-process.
type LocalSource struct {
	dev     device.Source
	buttons int
}

// FromDevice connects dev and wraps it as a Source. Close releases dev.
func FromDevice(ctx context.Context, dev device.Source) (*LocalSource, error) {
	if err := dev.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect device: %w", err)
	}
	return &LocalSource{dev: dev, buttons: dev.ButtonCount()}, nil
}

func (s *LocalSource) ButtonCount() int { return s.buttons }

// Next polls the device once and keeps only button transitions.
func (s *LocalSource) Next(ctx context.Context) (event.Batch, error) {
	raw, err := s.dev.Poll(ctx)
	if err != nil {
		return nil, err
	}
	return event.Filter(raw), nil
}

// Name returns the device's name.
func (s *LocalSource) Name() string { return s.dev.Name() }

func (s *LocalSource) Close() error { return s.dev.Close() }
