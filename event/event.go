// Package event defines the records exchanged between a device, the relay
// server and the dispatcher, and their wire payloads.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TypeButton is the only record type sent on the wire.
const TypeButton = "button"

// ButtonEvent is a discrete press or release of one button.
type ButtonEvent struct {
	Type    string `json:"type"`
	Button  int    `json:"button"`
	Pressed bool   `json:"pressed"`
}

// Press returns a pressed ButtonEvent for button.
func Press(button int) ButtonEvent {
	return ButtonEvent{Type: TypeButton, Button: button, Pressed: true}
}

// Release returns a released ButtonEvent for button.
func Release(button int) ButtonEvent {
	return ButtonEvent{Type: TypeButton, Button: button, Pressed: false}
}

// Batch is the ordered set of button events produced by one poll tick.
type Batch []ButtonEvent

// Pressed returns the button indices pressed in b, in batch order.
func (b Batch) Pressed() []int {
	var out []int
	for _, e := range b {
		if e.Pressed {
			out = append(out, e.Button)
		}
	}
	return out
}

// RawKind classifies a RawEvent reported by a device backend.
type RawKind uint8

const (
	KindOther RawKind = iota
	KindButtonDown
	KindButtonUp
	KindAxisMotion
	KindHatMotion
)

func (k RawKind) String() string {
	switch k {
	case KindButtonDown:
		return "button_down"
	case KindButtonUp:
		return "button_up"
	case KindAxisMotion:
		return "axis_motion"
	case KindHatMotion:
		return "hat_motion"
	default:
		return "other"
	}
}

// RawEvent is an unfiltered device event.
// Button is meaningful for button kinds, Axis and Value for axis and hat kinds.
type RawEvent struct {
	Kind   RawKind
	Button int
	Axis   int
	Value  float64
}

// FromRaw maps a raw event to a ButtonEvent. Only press and release
// transitions map; everything else reports false.
func FromRaw(r RawEvent) (ButtonEvent, bool) {
	switch r.Kind {
	case KindButtonDown:
		return Press(r.Button), true
	case KindButtonUp:
		return Release(r.Button), true
	}
	return ButtonEvent{}, false
}

// Filter converts one poll tick of raw events into a Batch, dropping
// non-button events. The result is never nil.
func Filter(raw []RawEvent) Batch {
	out := make(Batch, 0, len(raw))
	for _, r := range raw {
		if e, ok := FromRaw(r); ok {
			out = append(out, e)
		}
	}
	return out
}

// MarshalBatch encodes b as the JSON array payload of one frame.
func MarshalBatch(b Batch) ([]byte, error) {
	if b == nil {
		b = Batch{}
	}
	return json.Marshal(b)
}

// UnmarshalBatch decodes a batch payload. Records of any type other than
// "button" are skipped.
func UnmarshalBatch(data []byte) (Batch, error) {
	var raw Batch
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	out := make(Batch, 0, len(raw))
	for _, e := range raw {
		if e.Type != TypeButton {
			continue
		}
		if e.Button < 0 {
			return nil, fmt.Errorf("decode batch: negative button index %d", e.Button)
		}
		out = append(out, e)
	}
	return out, nil
}

// MarshalButtonCount encodes the handshake payload.
func MarshalButtonCount(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative button count %d", n)
	}
	return json.Marshal(n)
}

// UnmarshalButtonCount decodes the handshake payload.
func UnmarshalButtonCount(data []byte) (int, error) {
	var n int
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&n); err != nil {
		return 0, fmt.Errorf("decode button count: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("decode button count: negative value %d", n)
	}
	return n, nil
}
