// Package relayerr defines the error kinds shared by the relay transport,
// device backends and the teleoperation dispatcher.
//
// Every failure surfaced by a public operation matches exactly one kind via
// errors.Is, so callers can branch on the kind without string matching.
package relayerr

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	// ErrConnectionClosed is returned when the peer closes the stream before a
	// frame (or the handshake) is complete.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrDeviceNotFound is returned when no input device is present.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrInvalidButton is returned when a button index is not part of the mapping.
	ErrInvalidButton = errors.New("invalid button")
	// ErrIO is returned when a configuration file cannot be read or written.
	ErrIO = errors.New("io error")
	// ErrUnresolvedHandler is returned when a handler name is not registered.
	ErrUnresolvedHandler = errors.New("unresolved handler name")
	// ErrFrameTooLarge is returned when a frame header declares a length above
	// the reader's limit.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrHandlerFailed is returned when a dispatched handler fails or panics.
	ErrHandlerFailed = errors.New("handler failed")
)

// Error attaches an operation and an optional cause to an error kind.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return e.Kind.Error()
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool { return e.Kind == target }

// New returns an *Error of the given kind.
func New(kind error, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// ConnectionClosed wraps cause as ErrConnectionClosed.
func ConnectionClosed(op string, cause error) error { return New(ErrConnectionClosed, op, cause) }

// DeviceNotFound wraps cause as ErrDeviceNotFound.
func DeviceNotFound(op string, cause error) error { return New(ErrDeviceNotFound, op, cause) }

// InvalidButton reports a button index outside the mapping.
func InvalidButton(button int) error {
	return New(ErrInvalidButton, "", fmt.Errorf("button %d does not exist on this joystick", button))
}

// IO wraps cause as ErrIO.
func IO(op string, cause error) error { return New(ErrIO, op, cause) }

// UnresolvedHandler reports an unknown handler name.
func UnresolvedHandler(name string) error {
	return New(ErrUnresolvedHandler, "", fmt.Errorf("%q not found", name))
}

var kinds = []error{
	ErrConnectionClosed,
	ErrDeviceNotFound,
	ErrInvalidButton,
	ErrIO,
	ErrUnresolvedHandler,
	ErrFrameTooLarge,
	ErrHandlerFailed,
}

// KindOf returns the kind err belongs to, or nil if it is not a relay error.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
