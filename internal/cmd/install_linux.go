//go:build linux

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	serviceName = "joyrelay.service"
	servicePath = "/etc/systemd/system/joyrelay.service"
)

func serviceDefinition(exePath string, args []string) (string, error) {
	return systemdUnitContent(exePath, args), nil
}

func install(logger *slog.Logger, exePath, unit string) error {
	if err := os.WriteFile(servicePath, []byte(unit), 0o644); err != nil {
		return err
	}

	steps := [][]string{
		{"daemon-reload"},
		{"enable", serviceName},
		{"restart", serviceName},
	}

	for _, args := range steps {
		if err := runSystemctl(args...); err != nil {
			return err
		}
	}

	logger.Info("joyrelay systemd service installed", "path", servicePath, "exe", exePath)
	return nil
}

func uninstall(logger *slog.Logger) error {
	var errs []error

	if err := runSystemctl("stop", serviceName); err != nil {
		errs = append(errs, err)
	}
	if err := runSystemctl("disable", serviceName); err != nil {
		errs = append(errs, err)
	}

	if err := os.Remove(servicePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, err)
	}

	if err := runSystemctl("daemon-reload"); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logger.Info("joyrelay systemd service removed", "path", servicePath)
	return nil
}

// systemdUnitContent runs the event server from the binary's directory, so a
// serve.json next to the binary is picked up as configuration.
func systemdUnitContent(exePath string, args []string) string {
	words := make([]string, 0, len(args)+1)
	words = append(words, systemdQuote(exePath))
	for _, a := range args {
		words = append(words, systemdQuote(a))
	}
	return fmt.Sprintf(`[Unit]
Description=joyrelay joystick event server
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=%s
WorkingDirectory=%s
Restart=on-failure

[Install]
WantedBy=multi-user.target
`, strings.Join(words, " "), strings.ReplaceAll(filepath.Dir(exePath), "%", "%%"))
}

// systemdQuote escapes specifiers and variables, and quotes words systemd
// would otherwise split.
func systemdQuote(word string) string {
	word = strings.ReplaceAll(word, "%", "%%")
	word = strings.ReplaceAll(word, "$", "$$")
	if word == "" || strings.ContainsAny(word, " \t\"'\\;") {
		return strconv.Quote(word)
	}
	return word
}

func runSystemctl(args ...string) error {
	cmd := exec.Command("systemctl", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return nil
}
