package log

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger records raw frame bytes crossing a relay socket.
type RawLogger interface {
	// Log records data. in=true means client->server, in=false server->client.
	Log(in bool, data []byte)
}

type rawLogger struct {
	w  io.Writer
	mu sync.Mutex
}

// NewRaw returns a RawLogger writing to w. A nil w yields a no-op logger.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w}
}

// Log writes one line with timestamp, direction, size and space separated hex.
func (r *rawLogger) Log(in bool, data []byte) {
	if r.w == nil || len(data) == 0 {
		return
	}
	dir := "S->C"
	if in {
		dir = "C->S"
	}

	dump := hex.EncodeToString(data)
	spaced := make([]byte, 0, len(dump)+len(data))
	for i := 0; i < len(dump); i += 2 {
		if i > 0 {
			spaced = append(spaced, ' ')
		}
		spaced = append(spaced, dump[i], dump[i+1])
	}

	line := fmt.Sprintf("%s %s frame: %d bytes, hex: %s\n",
		time.Now().Format("2006/01/02 15:04:05.000"), dir, len(data), spaced)

	r.mu.Lock()
	_, _ = io.WriteString(r.w, line)
	r.mu.Unlock()
}
