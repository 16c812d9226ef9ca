package testing

import (
	"testing"

	"github.com/Alia5/joyrelay/device"
)

// RegisterScriptedBackend makes device.Open(name, ...) return src, so code
// that resolves backends by name can run against a scripted device.
func RegisterScriptedBackend(t *testing.T, name string, src *ScriptedSource) {
	t.Helper()
	device.Register(name, func(device.Options) device.Source { return src })
}
