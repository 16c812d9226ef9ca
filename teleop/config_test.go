package teleop_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/joyrelay/internal/log"
	th "github.com/Alia5/joyrelay/internal/testing"
	"github.com/Alia5/joyrelay/relayerr"
	"github.com/Alia5/joyrelay/teleop"
)

func strp(s string) *string { return &s }

func TestWriteConfigurationJSONLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configurations", "button_configuration.json")
	cfg := teleop.Configuration{
		0:  nil,
		2:  strp("capture_input"),
		10: strp("jog"),
	}

	require.NoError(t, teleop.WriteConfiguration(path, cfg))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"0\": null,\n    \"2\": \"capture_input\",\n    \"10\": \"jog\"\n}\n", string(data))
}

func TestConfigurationFormats(t *testing.T) {
	cfg := teleop.Configuration{
		0: nil,
		4: strp("jog"),
		5: strp("capture_input"),
		6: nil,
	}
	for _, name := range []string{"mapping.json", "mapping.yaml", "mapping.yml", "mapping.toml", "mapping"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, teleop.WriteConfiguration(path, cfg))

			got, err := teleop.ReadConfiguration(path, nil)
			require.NoError(t, err)
			assert.Equal(t, cfg, got)
		})
	}
}

func TestFormat(t *testing.T) {
	tests := map[string]string{
		"a.json": "json",
		"a.YAML": "yaml",
		"a.yml":  "yaml",
		"a.toml": "toml",
		"a.txt":  "json",
		"a":      "json",
	}
	for path, want := range tests {
		assert.Equal(t, want, teleop.Format(path), path)
	}
}

func TestReadConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "not json", file: "c.json", content: "{not json"},
		{name: "not an object", file: "c.json", content: `["jog"]`},
		{name: "bad yaml", file: "c.yaml", content: "4: [jog\n"},
		{name: "bad toml", file: "c.toml", content: "4 = \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := teleop.ReadConfiguration(path, nil)
			assert.ErrorIs(t, err, relayerr.ErrIO)
		})
	}

	_, err := teleop.ReadConfiguration(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.ErrorIs(t, err, relayerr.ErrIO)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestReadConfigurationSkipsBadEntries(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    teleop.Configuration
		skipped []string
	}{
		{
			name:    "non integer key",
			file:    "c.json",
			content: `{"four": "jog", "5": "capture_input"}`,
			want:    teleop.Configuration{5: strp("capture_input")},
			skipped: []string{"four"},
		},
		{
			name:    "number as handler",
			file:    "c.json",
			content: `{"4": 7, "6": null}`,
			want:    teleop.Configuration{6: nil},
			skipped: []string{"4"},
		},
		{
			name:    "toml number as handler",
			file:    "c.toml",
			content: "4 = 7\n5 = \"jog\"\n",
			want:    teleop.Configuration{5: strp("jog")},
			skipped: []string{"4"},
		},
		{
			name:    "yaml list as handler",
			file:    "c.yaml",
			content: "4: [jog]\nx: jog\n7: null\n",
			want:    teleop.Configuration{7: nil},
			skipped: []string{"4", "x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			var skipped []string
			got, err := teleop.ReadConfiguration(path, func(key string, err error) {
				assert.Error(t, err)
				skipped = append(skipped, key)
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.skipped, skipped)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, ext := range []string{".json", ".yaml", ".toml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "config"+ext)

			d, src, _ := newDispatcher(t, 12)
			src.Press(0)
			src.Press(11)
			src.Press(7)
			require.NoError(t, d.Configure(context.Background()))
			require.NoError(t, d.SaveConfiguration(path))

			fresh, _, _ := newDispatcher(t, 12)
			require.NotEqual(t, d.Mapping(), fresh.Mapping())
			require.NoError(t, fresh.LoadConfiguration(path))
			assert.Equal(t, d.Mapping(), fresh.Mapping())
		})
	}
}

func TestLoadConfigurationPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"0": "capture_output",
		"5": "self_destruct",
		"6": null,
		"99": "jog"
	}`), 0o644))

	d, _, _ := newDispatcher(t, 12)
	require.NoError(t, d.LoadConfiguration(path))

	assert.Equal(t, []string{
		"capture_output", "", "", "",
		"jog", "capture_input", "",
		"", "", "", "", "",
	}, names(d))
}

func TestLoadConfigurationFailureChangesNothing(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"4": null, "0": "jog"`), 0o644))

	for _, path := range []string{filepath.Join(dir, "missing.json"), broken} {
		d, _, _ := newDispatcher(t, 12)
		before := d.Mapping()
		err := d.LoadConfiguration(path)
		assert.ErrorIs(t, err, relayerr.ErrIO, path)
		assert.Equal(t, before, d.Mapping(), path)
	}
}

func TestLoadConfigurationSkipsOnlyBadEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"0": "capture_output",
		"x": "jog",
		"4": 12,
		"5": null
	}`), 0o644))

	d, _, _ := newDispatcher(t, 12)
	require.NoError(t, d.LoadConfiguration(path))

	assert.Equal(t, "capture_output", d.HandlerFor(0).Name())
	assert.Equal(t, "jog", d.HandlerFor(4).Name())
	assert.True(t, d.HandlerFor(5).IsZero())
}

func TestSaveConfigurationFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	d, _, _ := newDispatcher(t, 12)
	err := d.SaveConfiguration(filepath.Join(blocker, "config.json"))
	assert.ErrorIs(t, err, relayerr.ErrIO)
}

func TestWatchConfiguration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.json")
	d, _, _ := newDispatcher(t, 12)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.WatchConfiguration(ctx, path) }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`{"1": "jog", "4": null}`), 0o644))
	assert.Eventually(t, func() bool {
		return d.HandlerFor(1).Name() == "jog" && d.HandlerFor(4).IsZero()
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchConfigurationDirectoryCreatedLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configurations", "button_configuration.json")
	d, _, _ := newDispatcher(t, 12)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.WatchConfiguration(ctx, path) }()
	time.Sleep(50 * time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("watcher stopped early: %v", err)
	default:
	}

	require.NoError(t, teleop.WriteConfiguration(path, teleop.Configuration{1: strp("jog")}))
	assert.Eventually(t, func() bool {
		return d.HandlerFor(1).Name() == "jog"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchConfigurationIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.json")
	src := th.NewBatchSource(12)
	d := teleop.New(src, log.Discard(), teleop.NewHandler("jog", func() {}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.WatchConfiguration(ctx, path) }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{"1": "jog"}`), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.True(t, d.HandlerFor(1).IsZero())
}
