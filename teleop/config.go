package teleop

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"github.com/Alia5/joyrelay/relayerr"
)

// DefaultConfigurationPath is where the button configuration lives unless
// told otherwise.
const DefaultConfigurationPath = "configurations/button_configuration.json"

// Configuration is the persisted button mapping: button index to handler
// name, nil for unbound.
type Configuration map[int]*string

// Buttons returns the configured button indices in ascending order.
func (c Configuration) Buttons() []int {
	out := make([]int, 0, len(c))
	for b := range c {
		out = append(out, b)
	}
	slices.Sort(out)
	return out
}

// Format names the file format used for path: "json", "yaml" or "toml".
func Format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

// ReadConfiguration loads a configuration file. A file that cannot be read
// or parsed matches relayerr.ErrIO. Entries whose key is not an integer or
// whose value is neither a name nor null are left out and reported to skip,
// which may be nil.
func ReadConfiguration(path string, skip func(key string, err error)) (Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, relayerr.IO("read configuration", err)
	}

	var raw map[string]any
	format := Format(path)
	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, &raw)
	case "toml":
		raw, err = decodeTOML(data)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, relayerr.IO("parse configuration "+path, err)
	}

	if skip == nil {
		skip = func(string, error) {}
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	cfg := make(Configuration, len(raw))
	for _, key := range keys {
		button, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			skip(key, fmt.Errorf("button key %q is not an integer", key))
			continue
		}
		switch v := raw[key].(type) {
		case nil:
			cfg[button] = nil
		case string:
			if v == "" && format == "toml" {
				cfg[button] = nil
				continue
			}
			cfg[button] = &v
		default:
			skip(key, fmt.Errorf("handler must be a name or null, got %T", v))
		}
	}
	return cfg, nil
}

// WriteConfiguration stores cfg at path, creating parent directories.
func WriteConfiguration(path string, cfg Configuration) error {
	var (
		data []byte
		err  error
	)
	switch Format(path) {
	case "yaml":
		data, err = yaml.Marshal(map[int]*string(cfg))
	case "toml":
		data, err = encodeTOML(cfg)
	default:
		data, err = encodeJSON(cfg)
	}
	if err != nil {
		return relayerr.IO("encode configuration", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return relayerr.IO("write configuration", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return relayerr.IO("write configuration", err)
	}
	return nil
}

// encodeJSON writes buttons in numeric order with four space indentation.
// encoding/json would order the keys as strings.
func encodeJSON(cfg Configuration) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, b := range cfg.Buttons() {
		if i > 0 {
			buf.WriteString(",")
		}
		v, err := json.Marshal(cfg[b])
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "\n    %q: %s", strconv.Itoa(b), v)
	}
	if len(cfg) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// TOML has no null, so unbound buttons are stored as "".
func encodeTOML(cfg Configuration) ([]byte, error) {
	m := make(map[string]interface{}, len(cfg))
	for b, name := range cfg {
		v := ""
		if name != nil {
			v = *name
		}
		m[strconv.Itoa(b)] = v
	}
	tree, err := toml.TreeFromMap(m)
	if err != nil {
		return nil, err
	}
	return tree.Marshal()
}

func decodeTOML(data []byte) (map[string]any, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, err
	}
	return tree.ToMap(), nil
}
