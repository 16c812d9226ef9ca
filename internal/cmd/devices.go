package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Alia5/joyrelay/device"
)

type Devices struct {
	Probe        bool          `help:"Try to connect every backend and show what it finds"`
	Index        int           `help:"Device index used when probing" default:"0"`
	ProbeTimeout time.Duration `help:"Time allowed per backend when probing" default:"2s"`
}

// Run is called by Kong when the devices command is executed.
func (d *Devices) Run(logger *slog.Logger) error {
	return d.List(context.Background(), logger, os.Stdout)
}

// List writes the registered backends, and with Probe their devices, to out.
func (d *Devices) List(ctx context.Context, logger *slog.Logger, out io.Writer) error {
	headers := []string{"Backend"}
	if d.Probe {
		headers = append(headers, "Device", "Buttons")
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, name := range device.List() {
		if !d.Probe {
			t.Row(name)
			continue
		}
		t.Row(append([]string{name}, d.probe(ctx, logger, name)...)...)
	}
	_, err := fmt.Fprintln(out, t.Render())
	return err
}

func (d *Devices) probe(ctx context.Context, logger *slog.Logger, name string) []string {
	src, err := device.Open(name, device.Options{Index: d.Index})
	if err != nil {
		return []string{"-", "-"}
	}
	pctx := ctx
	if d.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, d.ProbeTimeout)
		defer cancel()
	}
	if err := src.Connect(pctx); err != nil {
		logger.Debug("Probe failed", "backend", name, "error", err)
		return []string{"not found", "-"}
	}
	defer src.Close()
	return []string{src.Name(), strconv.Itoa(src.ButtonCount())}
}
