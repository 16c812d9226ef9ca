//go:build !linux

package cmd

import (
	"errors"
	"log/slog"
	"runtime"
)

func serviceDefinition(string, []string) (string, error) {
	return "", errors.New("service install is not supported on " + runtime.GOOS)
}

func install(*slog.Logger, string, string) error {
	return errors.New("service install is not supported on " + runtime.GOOS)
}

func uninstall(*slog.Logger) error {
	return errors.New("service uninstall is not supported on " + runtime.GOOS)
}
