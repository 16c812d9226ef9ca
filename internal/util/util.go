//go:build !windows

package util

import "os"

// IsRunFromGUI reports whether the process was started by double-clicking
// it rather than from a shell. Only Windows can tell; elsewhere it is false.
func IsRunFromGUI() bool {
	return false
}

// WaitForKey blocks until a byte is read from stdin.
func WaitForKey() {
	b := make([]byte, 1)
	_, _ = os.Stdin.Read(b)
}
