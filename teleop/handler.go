package teleop

import "fmt"

// Handler is a named action bound to a joystick button. The name is what the
// configuration file stores.
type Handler struct {
	name string
	fn   func() error
}

// NewHandler wraps fn under name.
func NewHandler(name string, fn func()) Handler {
	return Handler{name: name, fn: func() error { fn(); return nil }}
}

// NewHandlerE wraps a fallible fn under name. A returned error is logged by
// the dispatcher and ends the current tick.
func NewHandlerE(name string, fn func() error) Handler {
	return Handler{name: name, fn: fn}
}

func (h Handler) Name() string { return h.name }

// IsZero reports whether h is the unbound handler.
func (h Handler) IsZero() bool { return h.fn == nil }

func (h Handler) String() string {
	if h.IsZero() {
		return "None"
	}
	return h.name
}

// invoke runs the handler, turning a panic into an error.
func (h Handler) invoke() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.fn()
}
