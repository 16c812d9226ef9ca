//go:build windows

package frame_test

import (
	"errors"
	"net"
	"os"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/windows"

	"github.com/Alia5/joyrelay/frame"
	"github.com/Alia5/joyrelay/relayerr"
)

func TestWinsockResetIsConnectionClosed(t *testing.T) {
	for _, errno := range []error{windows.WSAECONNRESET, windows.WSAECONNABORTED} {
		err := &net.OpError{Op: "wsarecv", Net: "tcp", Err: os.NewSyscallError("wsarecv", errno)}
		_, got := frame.NewReader(iotest.ErrReader(err)).Next()
		assert.True(t, errors.Is(got, relayerr.ErrConnectionClosed), errno.Error())
	}
}
