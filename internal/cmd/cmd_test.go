package cmd_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/joyrelay/internal/cmd"
	"github.com/Alia5/joyrelay/internal/log"
	"github.com/Alia5/joyrelay/internal/server/relay"
	th "github.com/Alia5/joyrelay/internal/testing"
	"github.com/Alia5/joyrelay/teleop"
)

// calls collects handler invocations.
type calls chan string

func (c calls) handlers() []teleop.Handler {
	var hs []teleop.Handler
	for _, name := range []string{"jog", "capture_input", "capture_output"} {
		hs = append(hs, teleop.NewHandler(name, func() { c <- name }))
	}
	return hs
}

func (c calls) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-c:
		assert.Equal(t, want, got)
	case <-time.After(3 * time.Second):
		t.Fatalf("handler %q not called", want)
	}
}

func nativeFlags(backend string) cmd.SourceFlags {
	return cmd.SourceFlags{
		Runtime: "native",
		Device:  cmd.DeviceFlags{Backend: backend, PollInterval: time.Millisecond},
	}
}

func runAsync(fn func(ctx context.Context) error) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	return cancel, done
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("command did not return")
		return nil
	}
}

func TestTeleopOverRelay(t *testing.T) {
	dev := th.NewScriptedSource(8)
	srv := relay.New(relay.Config{Addr: "127.0.0.1:0"}, dev, log.Discard(), log.NewRaw(nil))
	go func() { _ = srv.ListenAndServe() }()
	t.Cleanup(func() { _ = srv.Close() })
	<-srv.Ready()

	tc := &cmd.Teleop{
		Source: cmd.SourceFlags{
			Runtime:     "wsl",
			ServerAddr:  srv.Addr().String(),
			DialTimeout: time.Second,
		},
		ButtonConfig: filepath.Join(t.TempDir(), "unused.json"),
	}
	c := make(calls, 8)
	cancel, done := runAsync(func(ctx context.Context) error {
		return tc.Start(ctx, log.Discard(), &bytes.Buffer{}, c.handlers()...)
	})

	dev.Press(5)
	c.expect(t, "capture_input")
	dev.Press(0, 4)
	c.expect(t, "jog")

	cancel()
	assert.NoError(t, wait(t, done))
}

func TestTeleopConfigureAndSave(t *testing.T) {
	dev := th.NewScriptedSource(10)
	th.RegisterScriptedBackend(t, "scripted-configure", dev)
	path := filepath.Join(t.TempDir(), "configurations", "buttons.json")

	dev.Press(2)
	dev.Press(3)
	dev.Press(1)
	dev.Press(3)

	tc := &cmd.Teleop{
		Source:       nativeFlags("scripted-configure"),
		ButtonConfig: path,
		Configure:    true,
		Save:         true,
	}
	c := make(calls, 8)
	cancel, done := runAsync(func(ctx context.Context) error {
		return tc.Start(ctx, log.Discard(), &bytes.Buffer{}, c.handlers()...)
	})
	c.expect(t, "capture_input")
	cancel()
	require.NoError(t, wait(t, done))

	cfg, err := teleop.ReadConfiguration(path, nil)
	require.NoError(t, err)
	require.Len(t, cfg, 10)
	assert.Equal(t, "jog", *cfg[2])
	assert.Equal(t, "capture_input", *cfg[3])
	assert.Equal(t, "capture_output", *cfg[1])
	assert.Nil(t, cfg[4])
}

func TestTeleopReconnectReloadsConfiguration(t *testing.T) {
	dev := th.NewScriptedSource(6)
	th.RegisterScriptedBackend(t, "scripted-reconnect", dev)
	path := filepath.Join(t.TempDir(), "buttons.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"0": "capture_output"}`), 0o644))

	tc := &cmd.Teleop{
		Source:            nativeFlags("scripted-reconnect"),
		ButtonConfig:      path,
		Load:              true,
		ReconnectInterval: 10 * time.Millisecond,
	}
	c := make(calls, 8)
	cancel, done := runAsync(func(ctx context.Context) error {
		return tc.Start(ctx, log.Discard(), &bytes.Buffer{}, c.handlers()...)
	})
	defer cancel()

	dev.Press(0)
	c.expect(t, "capture_output")

	dev.Fail(errors.New("unplugged"))
	assert.Eventually(t, func() bool { return dev.Connects() >= 2 }, 3*time.Second, 5*time.Millisecond)

	dev.Press(0)
	c.expect(t, "capture_output")

	cancel()
	assert.NoError(t, wait(t, done))
}

func TestTeleopSourceLostWithoutReconnect(t *testing.T) {
	dev := th.NewScriptedSource(6)
	th.RegisterScriptedBackend(t, "scripted-lost", dev)

	tc := &cmd.Teleop{Source: nativeFlags("scripted-lost")}
	c := make(calls, 8)
	_, done := runAsync(func(ctx context.Context) error {
		return tc.Start(ctx, log.Discard(), &bytes.Buffer{}, c.handlers()...)
	})
	dev.Press(4)
	c.expect(t, "jog")

	dev.Fail(errors.New("unplugged"))
	assert.ErrorContains(t, wait(t, done), "unplugged")
}

func TestTeleopNoServer(t *testing.T) {
	tc := &cmd.Teleop{
		Source: cmd.SourceFlags{Runtime: "wsl", ServerAddr: "127.0.0.1:1", DialTimeout: time.Second},
	}
	err := tc.Start(context.Background(), log.Discard(), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestIdentify(t *testing.T) {
	dev := th.NewScriptedSource(12)
	th.RegisterScriptedBackend(t, "scripted-identify", dev)
	dev.Press(3)
	dev.Press(11, 0)

	var out syncWriter
	id := &cmd.Identify{Source: nativeFlags("scripted-identify")}
	cancel, done := runAsync(func(ctx context.Context) error {
		return id.Start(ctx, log.Discard(), &out)
	})
	assert.Eventually(t, func() bool {
		return strings.Count(out.String(), "pressed") == 3
	}, 3*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, wait(t, done))

	assert.Equal(t, "Button 3 pressed\nButton 11 pressed\nButton 0 pressed\n", out.String())
}

func TestServeStartAndStop(t *testing.T) {
	dev := th.NewScriptedSource(4)
	th.RegisterScriptedBackend(t, "scripted-serve", dev)

	s := &cmd.Serve{
		Relay:  relay.Config{Addr: "127.0.0.1:0", DeviceRetryInterval: time.Second, WriteTimeout: time.Second},
		Device: cmd.DeviceFlags{Backend: "scripted-serve"},
	}
	cancel, done := runAsync(func(ctx context.Context) error {
		return s.StartServer(ctx, log.Discard(), log.NewRaw(nil))
	})
	assert.Eventually(t, func() bool { return dev.Connects() > 0 }, 3*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, wait(t, done))
	assert.Positive(t, dev.Closes())
}

func TestServeErrors(t *testing.T) {
	tests := []struct {
		name string
		s    cmd.Serve
	}{
		{
			name: "unknown backend",
			s:    cmd.Serve{Relay: relay.Config{Addr: "127.0.0.1:0"}, Device: cmd.DeviceFlags{Backend: "no-such-backend"}},
		},
		{
			name: "bad address",
			s:    cmd.Serve{Relay: relay.Config{Addr: "127.0.0.1:99999"}, Device: cmd.DeviceFlags{Backend: "scripted-serve-errors"}},
		},
	}
	th.RegisterScriptedBackend(t, "scripted-serve-errors", th.NewScriptedSource(4))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.StartServer(context.Background(), log.Discard(), log.NewRaw(nil))
			assert.Error(t, err)
		})
	}
}

func TestDevicesList(t *testing.T) {
	th.RegisterScriptedBackend(t, "scripted-list", th.NewScriptedSource(7))

	var out bytes.Buffer
	d := &cmd.Devices{Probe: true, ProbeTimeout: time.Second}
	require.NoError(t, d.List(context.Background(), log.Discard(), &out))
	assert.Contains(t, out.String(), "scripted-list")
	assert.Contains(t, out.String(), "Scripted Pad")
	assert.Contains(t, out.String(), "7")
}
