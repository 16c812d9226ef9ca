//go:build unix

package relay

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// control marks the listening socket SO_REUSEADDR so a restarted server can
// rebind while the previous connection sits in TIME_WAIT.
func control(_, _ string, c syscall.RawConn) error {
	var serr error
	if err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	}); err != nil {
		return err
	}
	return serr
}
