package frame

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Delimited is the legacy framing: each message is its payload followed by one NUL byte.
//
// Reads pull at most chunkSize bytes at a time into a rolling buffer. Bytes that arrive
// after a terminator stay buffered for the next ReadFrame call.
type Delimited struct {
	rw      io.ReadWriter
	limits  Limits
	chunk   []byte
	buf     []byte
	scanned int
	readErr error
	err     error
}

func NewDelimited(rw io.ReadWriter, chunkSize int, limits Limits) *Delimited {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if limits.MaxPayloadBytes == 0 {
		limits = DefaultLimits()
	}
	return &Delimited{
		rw:     rw,
		limits: limits,
		chunk:  make([]byte, chunkSize),
	}
}

func (d *Delimited) ReadFrame() ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	for {
		if i := bytes.IndexByte(d.buf[d.scanned:], 0); i >= 0 {
			end := d.scanned + i
			msg := make([]byte, end)
			copy(msg, d.buf[:end])
			d.buf = append(d.buf[:0], d.buf[end+1:]...)
			d.scanned = 0
			return msg, nil
		}
		d.scanned = len(d.buf)
		if uint64(len(d.buf)) > d.limits.MaxPayloadBytes {
			return nil, d.fail(ErrPayloadTooLarge)
		}
		if d.readErr != nil {
			return nil, d.fail(closedErr(d.readErr))
		}

		n, err := d.rw.Read(d.chunk)
		if n == 0 {
			return nil, d.fail(closedErr(err))
		}
		d.buf = append(d.buf, d.chunk[:n]...)
		if err != nil {
			// deliver what arrived first, fail on the next empty scan
			d.readErr = err
		}
	}
}

// Buffered reports how many bytes are held for upcoming frames.
func (d *Delimited) Buffered() int {
	return len(d.buf)
}

func (d *Delimited) WriteFrame(payload []byte) error {
	if d.err != nil {
		return d.err
	}
	if bytes.IndexByte(payload, 0) >= 0 {
		return ErrEmbeddedNUL
	}
	if uint64(len(payload)) > d.limits.MaxPayloadBytes {
		return ErrPayloadTooLarge
	}
	out := make([]byte, len(payload)+1)
	copy(out, payload)
	if err := writeAll(d.rw, out); err != nil {
		return d.fail(closedErr(err))
	}
	return nil
}

func (d *Delimited) fail(err error) error {
	d.err = err
	return err
}

func closedErr(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return ErrTransportClosed
	}
	if errors.Is(err, ErrTransportClosed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransportClosed, err)
}
