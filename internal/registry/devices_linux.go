package registry

import (
	_ "github.com/Alia5/joyrelay/device/evdev" // Register evdev backend
)
