package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alia5/joyrelay/relayerr"
	"github.com/Alia5/joyrelay/teleop"
)

type Teleop struct {
	Source            SourceFlags   `embed:""`
	ButtonConfig      string        `help:"Button configuration file (.json, .yaml or .toml)" default:"configurations/button_configuration.json" env:"JOYRELAY_BUTTON_CONFIG"`
	Load              bool          `help:"Load the button configuration on every (re)connect" env:"JOYRELAY_LOAD"`
	Configure         bool          `help:"Interactively assign a button to every handler on start"`
	ConfigureTimeout  time.Duration `help:"Give up configuring after this long and keep the previous mapping (0 waits forever)" default:"0s"`
	Save              bool          `help:"Save the mapping after configuring" default:"true" negatable:""`
	Watch             bool          `help:"Reload the button configuration when the file changes" env:"JOYRELAY_WATCH"`
	ReconnectInterval time.Duration `help:"Wait between reconnect attempts; 0 exits when the source is lost" default:"2s" env:"JOYRELAY_RECONNECT_INTERVAL"`
}

// demoHandlers are the handlers the teleop command dispatches to. They only
// print; embedding programs register their own through the teleop package.
func demoHandlers(out io.Writer) []teleop.Handler {
	say := func(msg string) func() {
		return func() { fmt.Fprintln(out, msg) }
	}
	return []teleop.Handler{
		teleop.NewHandler("jog", say("Jogging enabled")),
		teleop.NewHandler("capture_input", say("Input data captured")),
		teleop.NewHandler("capture_output", say("Output data captured")),
	}
}

// Run is called by Kong when the teleop command is executed.
func (t *Teleop) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return t.Start(ctx, logger, os.Stdout, demoHandlers(os.Stdout)...)
}

// Start connects the source, applies the startup options and dispatches
// until ctx ends. A lost source is reopened every ReconnectInterval with a
// fresh auto-assigned mapping.
func (t *Teleop) Start(ctx context.Context, logger *slog.Logger, out io.Writer, handlers ...teleop.Handler) error {
	src, err := t.Source.openRetry(ctx, logger, t.ReconnectInterval)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	d := teleop.New(src, logger, handlers...)
	printMapping(out, d.Mapping())

	if t.Watch {
		go func() {
			if err := d.WatchConfiguration(ctx, t.ButtonConfig); err != nil {
				logger.Error("Configuration watcher stopped", "error", err)
			}
		}()
	}

	first := true
	for {
		if err := t.prepare(ctx, d, first); err != nil {
			_ = src.Close()
			return err
		}
		first = false

		err := t.dispatch(ctx, d)
		_ = src.Close()
		if ctx.Err() != nil {
			return nil
		}
		if t.ReconnectInterval <= 0 {
			return err
		}
		logger.Warn("Joystick source lost, reconnecting", "error", err)

		src, err = t.Source.openRetry(ctx, logger, t.ReconnectInterval)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		d.Rebind(src)
	}
}

// prepare loads and, on the first connection, configures the mapping.
func (t *Teleop) prepare(ctx context.Context, d *teleop.Dispatcher, first bool) error {
	if t.Load {
		// A missing or broken file leaves the auto-assigned mapping in place.
		_ = d.LoadConfiguration(t.ButtonConfig)
	}
	if !first || !t.Configure {
		return nil
	}

	cctx := ctx
	if t.ConfigureTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, t.ConfigureTimeout)
		defer cancel()
	}
	err := d.Configure(cctx)
	switch {
	case err == nil:
		if t.Save {
			if err := d.SaveConfiguration(t.ButtonConfig); err != nil {
				return err
			}
		}
	case ctx.Err() != nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		// Timed out; keep going with the previous mapping.
	default:
		return err
	}
	return nil
}

// dispatch runs ticks until the source fails or ctx ends. Handler failures
// only end their own tick.
func (t *Teleop) dispatch(ctx context.Context, d *teleop.Dispatcher) error {
	for {
		err := d.Run(ctx)
		if err == nil || errors.Is(err, relayerr.ErrHandlerFailed) {
			continue
		}
		return err
	}
}
