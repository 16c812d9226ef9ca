package registry

import (
	_ "github.com/Alia5/joyrelay/device/joystick" // Register joystick backend
	_ "github.com/Alia5/joyrelay/device/sdlpad"   // Register SDL gamepad backend
)
