// Package teleop dispatches joystick button presses to named handlers.
//
// A Dispatcher owns the button to handler mapping for one connected
// joystick. The mapping starts out auto-assigned: buttons below
// ButtonStartIndex stay unbound, the following buttons take the handlers in
// registration order. It can then be changed one button at a time (Remap),
// interactively (Configure) or from a configuration file
// (LoadConfiguration, WatchConfiguration).
package teleop

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"slices"
	"sync"

	"github.com/Alia5/joyrelay/relayerr"
)

// ButtonStartIndex is the first button that receives a handler by default.
// Buttons 0-3 sit next to the right stick and are easy to hit by accident.
const ButtonStartIndex = 4

// Binding is one row of the mapping. Handler is "" for unbound buttons.
type Binding struct {
	Button  int
	Handler string
}

type Dispatcher struct {
	logger   *slog.Logger
	handlers []Handler
	byName   map[string]Handler

	mu          sync.Mutex
	src         Source
	buttons     []Handler
	configuring bool
}

// New builds a dispatcher over src with the auto-assigned mapping. Handlers
// keep their order; with duplicate names the last one wins name lookups.
func New(src Source, logger *slog.Logger, handlers ...Handler) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		logger:   logger,
		handlers: slices.Clone(handlers),
		byName:   make(map[string]Handler, len(handlers)),
	}
	for _, h := range handlers {
		d.byName[h.Name()] = h
	}
	d.src = src
	d.buttons = d.autoAssign(src.ButtonCount())
	d.PrintButtonMapping()
	return d
}

func (d *Dispatcher) autoAssign(count int) []Handler {
	out := make([]Handler, max(count, 0))
	for i := range out {
		if j := i - ButtonStartIndex; i >= ButtonStartIndex && j < len(d.handlers) {
			out[i] = d.handlers[j]
		}
	}
	return out
}

// Rebind switches to a new source, e.g. after reconnecting, and rebuilds the
// auto-assigned mapping for its button count.
func (d *Dispatcher) Rebind(src Source) {
	d.mu.Lock()
	d.src = src
	d.buttons = d.autoAssign(src.ButtonCount())
	d.mu.Unlock()
	d.PrintButtonMapping()
}

func (d *Dispatcher) source() Source {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.src
}

// ButtonCount returns the number of buttons in the mapping.
func (d *Dispatcher) ButtonCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buttons)
}

// Handlers returns the registered handlers in registration order.
func (d *Dispatcher) Handlers() []Handler { return slices.Clone(d.handlers) }

// Handler returns the handler registered under name.
func (d *Dispatcher) Handler(name string) (Handler, bool) {
	h, ok := d.byName[name]
	return h, ok
}

// Mapping returns a snapshot of the mapping ordered by button.
func (d *Dispatcher) Mapping() []Binding {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Binding, len(d.buttons))
	for i, h := range d.buttons {
		out[i] = Binding{Button: i, Handler: h.Name()}
	}
	return out
}

// HandlerFor returns the handler bound to button, or the zero Handler.
func (d *Dispatcher) HandlerFor(button int) Handler {
	d.mu.Lock()
	defer d.mu.Unlock()
	if button < 0 || button >= len(d.buttons) {
		return Handler{}
	}
	return d.buttons[button]
}

// Run reads one batch and invokes the handler of every pressed button, in
// order. Releases and unbound buttons are ignored. A failing handler ends the
// tick; its error matches relayerr.ErrHandlerFailed.
func (d *Dispatcher) Run(ctx context.Context) error {
	batch, err := d.source().Next(ctx)
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Error("Error running joystick teleoperation", "error", err)
		}
		return err
	}
	for _, e := range batch {
		if !e.Pressed {
			continue
		}
		d.logger.Debug("Button pressed", "button", e.Button)
		h := d.HandlerFor(e.Button)
		if h.IsZero() {
			continue
		}
		if err := h.invoke(); err != nil {
			d.logger.Error("Handler failed", "handler", h.Name(), "button", e.Button, "error", err)
			return relayerr.New(relayerr.ErrHandlerFailed, h.Name(), err)
		}
	}
	return nil
}

// Remap binds h to button. The zero Handler unbinds it.
func (d *Dispatcher) Remap(button int, h Handler) error {
	d.mu.Lock()
	if button < 0 || button >= len(d.buttons) {
		d.mu.Unlock()
		d.logger.Warn("Button does not exist on this joystick", "button", button)
		return relayerr.InvalidButton(button)
	}
	d.buttons[button] = h
	d.mu.Unlock()

	d.logger.Info("Button remapped", "button", button, "handler", h.String())
	d.PrintButtonMapping()
	return nil
}

// RemapByName binds the handler registered as name to button.
func (d *Dispatcher) RemapByName(button int, name string) error {
	h, ok := d.byName[name]
	if !ok {
		d.logger.Warn("Handler not found", "handler", name)
		return relayerr.UnresolvedHandler(name)
	}
	return d.Remap(button, h)
}

// Configure builds a new mapping by asking for one button press per
// handler, in registration order, and replaces the whole mapping with it
// once every handler is bound. Buttons nobody pressed end up unbound.
// Presses of buttons outside the mapping are ignored. If ctx ends or the
// source fails first, the previous mapping stays and the error is returned.
// Configuration reloads are skipped while Configure runs. Configure must not
// run concurrently with Run, as both consume the source.
func (d *Dispatcher) Configure(ctx context.Context) error {
	d.mu.Lock()
	if d.configuring {
		d.mu.Unlock()
		return errors.New("configuration already in progress")
	}
	d.configuring = true
	next := make([]Handler, len(d.buttons))
	src := d.src
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.configuring = false
		d.mu.Unlock()
	}()

	d.logger.Info("Joystick configuration mode: press a button to assign it to each function")
	for _, h := range d.handlers {
		d.logger.Info("Press a button", "for", h.Name())
		button, err := d.waitPress(ctx, src, len(next))
		if err != nil {
			if ctx.Err() != nil {
				d.logger.Warn("Configuration aborted; previous mapping kept", "error", ctx.Err())
				return ctx.Err()
			}
			d.logger.Error("Configuration failed; previous mapping kept", "error", err)
			return err
		}
		if old := next[button]; !old.IsZero() {
			d.logger.Warn("Button was already assigned; rebinding", "button", button, "previous", old.Name())
		}
		next[button] = h
		d.logger.Info("Button mapped", "button", button, "handler", h.Name())
	}

	d.mu.Lock()
	d.buttons = next
	d.mu.Unlock()
	d.logger.Info("Configuration complete")
	d.PrintButtonMapping()
	return nil
}

// waitPress returns the first pressed button that is part of the mapping.
// The rest of that batch is dropped.
func (d *Dispatcher) waitPress(ctx context.Context, src Source, count int) (int, error) {
	for {
		batch, err := src.Next(ctx)
		if err != nil {
			return 0, err
		}
		for _, e := range batch {
			if !e.Pressed {
				continue
			}
			if e.Button < 0 || e.Button >= count {
				d.logger.Warn("Ignoring button outside the mapping", "button", e.Button)
				continue
			}
			return e.Button, nil
		}
	}
}

// IdentifyButtons calls report with the index of every pressed button until
// ctx ends, which returns nil. A nil report logs the index instead.
func (d *Dispatcher) IdentifyButtons(ctx context.Context, report func(button int)) error {
	if report == nil {
		report = func(button int) { d.logger.Info("Button pressed", "button", button) }
	}
	src := d.source()
	d.logger.Info("Click a button to identify")
	for {
		batch, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.logger.Error("Identifying buttons failed", "error", err)
			return err
		}
		for _, e := range batch.Pressed() {
			report(e)
		}
	}
}

// Configuration returns the mapping in its persisted form.
func (d *Dispatcher) Configuration() Configuration {
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg := make(Configuration, len(d.buttons))
	for i, h := range d.buttons {
		if h.IsZero() {
			cfg[i] = nil
			continue
		}
		name := h.Name()
		cfg[i] = &name
	}
	return cfg
}

// SaveConfiguration writes the mapping to path.
func (d *Dispatcher) SaveConfiguration(path string) error {
	if err := WriteConfiguration(path, d.Configuration()); err != nil {
		d.logger.Error("Error saving configuration", "path", path, "error", err)
		return err
	}
	d.logger.Info("Configuration saved", "path", path)
	return nil
}

// LoadConfiguration applies the configuration stored at path. Entries for
// unknown buttons or handlers, or that cannot be parsed, are skipped with a
// warning; a file that cannot be read or parsed changes nothing and returns
// an error matching relayerr.ErrIO. While Configure runs the file is not
// applied.
func (d *Dispatcher) LoadConfiguration(path string) error {
	cfg, err := ReadConfiguration(path, func(key string, err error) {
		d.logger.Warn("Skipping configuration entry", "path", path, "key", key, "error", err)
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			d.logger.Error("Configuration file not found", "path", path)
		} else {
			d.logger.Error("Error loading configuration", "path", path, "error", err)
		}
		return err
	}

	d.mu.Lock()
	if d.configuring {
		d.mu.Unlock()
		d.logger.Warn("Configuration in progress; not applying file", "path", path)
		return nil
	}
	for _, button := range cfg.Buttons() {
		name := cfg[button]
		if button < 0 || button >= len(d.buttons) {
			d.logger.Warn("Button does not exist on this joystick", "button", button)
			continue
		}
		if name == nil {
			d.buttons[button] = Handler{}
			continue
		}
		h, ok := d.byName[*name]
		if !ok {
			d.logger.Warn("Handler not found", "handler", *name, "button", button)
			continue
		}
		d.buttons[button] = h
	}
	d.mu.Unlock()

	d.logger.Info("Configuration loaded", "path", path)
	d.PrintButtonMapping()
	return nil
}

// PrintButtonMapping logs one line per button.
func (d *Dispatcher) PrintButtonMapping() {
	d.logger.Info("Button functions:")
	for _, b := range d.Mapping() {
		name := b.Handler
		if name == "" {
			name = "None"
		}
		d.logger.Info("Button", "button", b.Button, "handler", name)
	}
}
