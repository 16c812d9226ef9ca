package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// Install registers "joyrelay serve" as a system service. The serve flags
// given here are written into the service definition.
type Install struct {
	Serve  Serve `embed:""`
	DryRun bool  `help:"Print the service definition instead of installing it"`
}

// Uninstall removes the service created by Install.
type Uninstall struct{}

// Run is called by Kong when the install command is executed.
func (i *Install) Run(logger *slog.Logger) error {
	return i.run(logger, os.Stdout)
}

func (i *Install) run(logger *slog.Logger, out io.Writer) error {
	exePath, err := currentExecutable()
	if err != nil {
		return err
	}
	args := append([]string{"serve"}, i.Serve.Args()...)
	unit, err := serviceDefinition(exePath, args)
	if err != nil {
		return err
	}
	if i.DryRun {
		_, err := io.WriteString(out, unit)
		return err
	}
	return install(logger, exePath, unit)
}

// Run is called by Kong when the uninstall command is executed.
func (u *Uninstall) Run(logger *slog.Logger) error {
	return uninstall(logger)
}

// Args renders the serve flags as command line arguments.
func (s Serve) Args() []string {
	args := []string{
		"--addr=" + s.Relay.Addr,
		"--device-retry-interval=" + s.Relay.DeviceRetryInterval.String(),
		"--write-timeout=" + s.Relay.WriteTimeout.String(),
		"--device.backend=" + s.Device.Backend,
		"--device.index=" + strconv.Itoa(s.Device.Index),
		"--device.poll-interval=" + s.Device.PollInterval.String(),
	}
	if s.Device.Path != "" {
		args = append(args, "--device.path="+s.Device.Path)
	}
	return args
}

func currentExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	abs, err := filepath.Abs(exe)
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return abs, nil
}
