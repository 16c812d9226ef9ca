//go:build !unix

package relay

import "syscall"

// control leaves non-unix sockets alone. On Windows SO_REUSEADDR lets another
// process bind the same port.
func control(_, _ string, _ syscall.RawConn) error { return nil }
