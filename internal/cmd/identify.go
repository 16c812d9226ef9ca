package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Alia5/joyrelay/teleop"
)

type Identify struct {
	Source SourceFlags `embed:""`
}

// Run is called by Kong when the identify command is executed.
func (i *Identify) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return i.Start(ctx, logger, os.Stdout)
}

// Start prints the index of every pressed button until ctx ends.
func (i *Identify) Start(ctx context.Context, logger *slog.Logger, out io.Writer) error {
	src, err := i.Source.open(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	d := teleop.New(src, logger)
	return d.IdentifyButtons(ctx, func(button int) {
		fmt.Fprintf(out, "Button %d pressed\n", button)
	})
}
