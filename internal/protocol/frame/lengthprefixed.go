package frame

import (
	"encoding/binary"
	"io"
	"math"
)

const lengthHeaderLen = 4

// LengthPrefixed frames each message as a 4-byte big-endian length followed by the payload.
type LengthPrefixed struct {
	rw     io.ReadWriter
	limits Limits
	err    error
}

func NewLengthPrefixed(rw io.ReadWriter, limits Limits) *LengthPrefixed {
	if limits.MaxPayloadBytes == 0 {
		limits = DefaultLimits()
	}
	return &LengthPrefixed{rw: rw, limits: limits}
}

func (l *LengthPrefixed) ReadFrame() ([]byte, error) {
	if l.err != nil {
		return nil, l.err
	}
	var hdr [lengthHeaderLen]byte
	if n, err := readFull(l.rw, hdr[:]); err != nil {
		if n == 0 {
			return nil, l.fail(closedErr(err))
		}
		return nil, l.fail(ErrShortHeader)
	}
	size := binary.BigEndian.Uint32(hdr[:])
	if uint64(size) > l.limits.MaxPayloadBytes {
		return nil, l.fail(ErrPayloadTooLarge)
	}
	payload := make([]byte, size)
	if _, err := readFull(l.rw, payload); err != nil {
		return nil, l.fail(ErrShortPayload)
	}
	return payload, nil
}

func (l *LengthPrefixed) WriteFrame(payload []byte) error {
	if l.err != nil {
		return l.err
	}
	if uint64(len(payload)) > l.limits.MaxPayloadBytes || uint64(len(payload)) > math.MaxUint32 {
		return ErrPayloadTooLarge
	}
	out := make([]byte, lengthHeaderLen+len(payload))
	binary.BigEndian.PutUint32(out[:lengthHeaderLen], uint32(len(payload)))
	copy(out[lengthHeaderLen:], payload)
	if err := writeAll(l.rw, out); err != nil {
		return l.fail(closedErr(err))
	}
	return nil
}

func (l *LengthPrefixed) fail(err error) error {
	l.err = err
	return err
}

// readFull is io.ReadFull except that a read returning no bytes ends the stream.
func readFull(r io.Reader, buf []byte) (int, error) {
	var got int
	for got < len(buf) {
		n, err := r.Read(buf[got:])
		got += n
		if got == len(buf) {
			return got, nil
		}
		if err != nil {
			return got, err
		}
		if n == 0 {
			return got, io.ErrNoProgress
		}
	}
	return got, nil
}
