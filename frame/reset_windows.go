//go:build windows

package frame

import (
	"errors"

	"golang.org/x/sys/windows"
)

// Winsock reports resets with its own error numbers.
func isPlatformReset(err error) bool {
	return errors.Is(err, windows.WSAECONNRESET) || errors.Is(err, windows.WSAECONNABORTED)
}
