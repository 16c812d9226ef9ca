// Package frame implements the length-prefixed framing used on the event
// relay socket.
//
// Every message on the wire is a 4-byte big-endian unsigned length followed
// by exactly that many payload bytes.
package frame

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"syscall"

	"github.com/Alia5/joyrelay/relayerr"
)

// HeaderSize is the size of the length prefix in bytes.
const HeaderSize = 4

// recvSize matches the chunk size the reader pulls from the socket per read.
const recvSize = 4096

// MaxPayload is the largest payload the length prefix can describe.
const MaxPayload = math.MaxUint32

// Encode prepends the big-endian length of payload. Payloads above
// MaxPayload cannot be described by the header; Write rejects them.
func Encode(payload []byte) []byte {
	out := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(out[:HeaderSize], uint32(len(payload)))
	copy(out[HeaderSize:], payload)
	return out
}

// Write sends payload as a single frame with one Write call.
func Write(w io.Writer, payload []byte) error {
	if err := checkSize(len(payload)); err != nil {
		return err
	}
	buf := Encode(payload)
	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("short write: wrote %d of %d", n, len(buf))
	}
	return nil
}

// Reader reassembles frames from a byte stream. Bytes received beyond the
// current frame stay buffered for the next call to Next.
//
// A Next interrupted by a transient error (a read deadline) keeps the bytes
// it already consumed, so calling Next again resumes the same frame.
type Reader struct {
	r *bufio.Reader
	// MaxSize rejects frames whose declared length exceeds it. 0 disables the check.
	MaxSize uint32

	hdr     [HeaderSize]byte
	hn      int
	payload []byte
	pn      int
}

// NewReader returns a Reader pulling from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, recvSize)}
}

// Next blocks until one complete frame has been read and returns its payload.
// If the stream ends before the header or the payload is complete the error
// matches relayerr.ErrConnectionClosed.
func (fr *Reader) Next() ([]byte, error) {
	if fr.payload == nil {
		n, err := io.ReadFull(fr.r, fr.hdr[fr.hn:])
		fr.hn += n
		if err != nil {
			return nil, closedOr("read header", err)
		}
		length := binary.BigEndian.Uint32(fr.hdr[:])
		if fr.MaxSize > 0 && length > fr.MaxSize {
			return nil, relayerr.New(relayerr.ErrFrameTooLarge, "read header",
				fmt.Errorf("declared %d bytes, limit %d", length, fr.MaxSize))
		}
		fr.payload = make([]byte, length)
		fr.pn = 0
	}

	n, err := io.ReadFull(fr.r, fr.payload[fr.pn:])
	fr.pn += n
	if err != nil {
		return nil, closedOr("read payload", err)
	}
	p := fr.payload
	fr.payload, fr.hn, fr.pn = nil, 0, 0
	return p, nil
}

// Buffered returns the number of bytes already received but not yet consumed.
func (fr *Reader) Buffered() int { return fr.r.Buffered() }

func checkSize(n int) error {
	if uint64(n) > MaxPayload {
		return relayerr.New(relayerr.ErrFrameTooLarge, "write",
			fmt.Errorf("payload of %d bytes exceeds %d", n, uint64(MaxPayload)))
	}
	return nil
}

func closedOr(op string, err error) error {
	if IsClosed(err) {
		return relayerr.ConnectionClosed(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsClosed reports whether err means the peer went away: end of stream, a
// closed socket, or a connection reset or aborted by either side.
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		isPlatformReset(err)
}
