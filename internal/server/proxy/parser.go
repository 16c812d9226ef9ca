package proxy

import (
	"bytes"
	"encoding/binary"
	"log/slog"

	"github.com/Alia5/joyrelay/event"
	"github.com/Alia5/joyrelay/frame"
)

// maxBuffered bounds what the parser holds while waiting for a frame to
// complete. Larger frames are skipped.
const maxBuffered = 64 * 1024

// Parser reassembles relay frames from one direction of a proxied stream and
// logs them. The first server->client frame is the button count, every
// later one an event batch.
type Parser struct {
	logger    *slog.Logger
	buf       bytes.Buffer
	frames    int
	skip      int
	handshake bool
}

func NewParser(logger *slog.Logger) *Parser {
	return &Parser{
		logger: logger,
	}
}

// Parse consumes data and logs every frame it completes.
func (p *Parser) Parse(data []byte, clientToServer bool) {
	if p.skip > 0 {
		n := min(p.skip, len(data))
		p.skip -= n
		data = data[n:]
	}
	p.buf.Write(data)

	for p.buf.Len() >= frame.HeaderSize {
		peek := p.buf.Bytes()
		size := int(binary.BigEndian.Uint32(peek[:frame.HeaderSize]))

		if size > maxBuffered {
			p.logger.Warn("Frame too large to inspect, skipping",
				"dir", dirString(clientToServer), "size", size)
			p.buf.Next(frame.HeaderSize)
			n := min(size, p.buf.Len())
			p.buf.Next(n)
			p.skip = size - n
			p.frames++
			p.handshake = true
			continue
		}
		if p.buf.Len() < frame.HeaderSize+size {
			return
		}

		p.buf.Next(frame.HeaderSize)
		payload := p.buf.Next(size)
		p.logFrame(payload, clientToServer)
		p.frames++
	}
}

// Frames returns the number of frames seen so far.
func (p *Parser) Frames() int { return p.frames }

func (p *Parser) logFrame(payload []byte, clientToServer bool) {
	dir := dirString(clientToServer)
	if clientToServer {
		p.logger.Warn("Unexpected client frame", "dir", dir, "size", len(payload))
		return
	}

	if !p.handshake {
		p.handshake = true
		n, err := event.UnmarshalButtonCount(payload)
		if err != nil {
			p.logger.Warn("Malformed handshake", "dir", dir, "error", err)
			return
		}
		p.logger.Info("Relay frame", "dir", dir, "op", "BUTTON_COUNT", "buttons", n)
		return
	}

	batch, err := event.UnmarshalBatch(payload)
	if err != nil {
		p.logger.Warn("Malformed batch", "dir", dir, "size", len(payload), "error", err)
		return
	}
	if len(batch) == 0 {
		return
	}
	p.logger.Info("Relay frame", "dir", dir, "op", "BATCH", "events", len(batch), "pressed", batch.Pressed())
}

func dirString(clientToServer bool) string {
	if clientToServer {
		return "C->S"
	}
	return "S->C"
}
