package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Alia5/joyrelay/client"
	"github.com/Alia5/joyrelay/device"
	"github.com/Alia5/joyrelay/teleop"
)

// DeviceFlags select and tune a local device backend.
type DeviceFlags struct {
	Backend      string        `help:"Device backend; 'joyrelay devices' lists them" default:"joystick" env:"JOYRELAY_DEVICE_BACKEND"`
	Index        int           `help:"Which of the devices found by the backend to open" default:"0" env:"JOYRELAY_DEVICE_INDEX"`
	Path         string        `help:"Device node to open instead of searching (evdev backend)" env:"JOYRELAY_DEVICE_PATH"`
	PollInterval time.Duration `help:"Interval between device polls" default:"10ms" env:"JOYRELAY_POLL_INTERVAL"`
}

// Open creates the configured, unconnected device source.
func (f DeviceFlags) Open() (device.Source, error) {
	return device.Open(f.Backend, device.Options{
		Index:        f.Index,
		Path:         f.Path,
		PollInterval: f.PollInterval,
	})
}

// SourceFlags choose where button events come from: a device attached to
// this machine, or an event server relaying one from elsewhere.
type SourceFlags struct {
	Runtime     string        `help:"native reads a local device, wsl connects to an event server" enum:"native,wsl" default:"wsl" env:"JOYRELAY_RUNTIME"`
	ServerAddr  string        `help:"Event server address for the wsl runtime" default:"localhost:8001" env:"JOYRELAY_SERVER_ADDR"`
	DialTimeout time.Duration `help:"Timeout for connecting to the event server" default:"3s" env:"JOYRELAY_DIAL_TIMEOUT"`
	Device      DeviceFlags   `embed:"" prefix:"device."`
}

type source interface {
	teleop.Source
	Close() error
}

func (f *SourceFlags) open(ctx context.Context) (source, error) {
	switch f.Runtime {
	case "native":
		dev, err := f.Device.Open()
		if err != nil {
			return nil, err
		}
		local, err := teleop.FromDevice(ctx, dev)
		if err != nil {
			return nil, err
		}
		return local, nil
	case "wsl", "":
		cl, err := client.Dial(ctx, f.ServerAddr, &client.Config{
			DialTimeout:  f.DialTimeout,
			MaxFrameSize: 1 << 20,
		})
		if err != nil {
			return nil, err
		}
		return cl, nil
	}
	return nil, fmt.Errorf("unknown runtime %q", f.Runtime)
}

// openRetry keeps trying to open the source every interval until it
// succeeds or ctx ends. interval <= 0 means a single attempt.
func (f *SourceFlags) openRetry(ctx context.Context, logger *slog.Logger, interval time.Duration) (source, error) {
	for {
		src, err := f.open(ctx)
		if err == nil {
			logger.Info("Joystick source connected", "runtime", f.Runtime, "buttons", src.ButtonCount())
			return src, nil
		}
		if ctx.Err() != nil || interval <= 0 {
			return nil, err
		}
		logger.Warn("Joystick source unavailable, retrying", "runtime", f.Runtime, "error", err, "in", interval)
		if err := device.Wait(ctx, interval); err != nil {
			return nil, err
		}
	}
}
