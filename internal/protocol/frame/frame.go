package frame

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Mode selects the byte-level framing policy used for a session's lifetime.
type Mode string

const (
	ModeDelimiter      Mode = "delimiter"
	ModeLengthPrefixed Mode = "length_prefixed"

	DefaultChunkSize = 4096
)

var (
	ErrTransportClosed = errors.New("frame: transport closed")
	ErrShortHeader     = errors.New("frame: short length header")
	ErrShortPayload    = errors.New("frame: short payload")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrEmbeddedNUL     = errors.New("frame: payload contains NUL byte")
	ErrUnknownMode     = errors.New("frame: unknown framing mode")
)

// Framer reads and writes whole messages over a byte stream.
type Framer interface {
	ReadFrame() ([]byte, error)
	WriteFrame(payload []byte) error
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 8 * 1024 * 1024,
	}
}

// Options configures New. Zero values fall back to defaults.
type Options struct {
	ChunkSize int
	Limits    Limits
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Limits.MaxPayloadBytes == 0 {
		o.Limits = DefaultLimits()
	}
	return o
}

// ParseMode accepts the config spellings of both framing policies.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "delimiter", "delimiterbyte", "nul":
		return ModeDelimiter, nil
	case "length_prefixed", "lengthprefixed", "length":
		return ModeLengthPrefixed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
	}
}

func New(mode Mode, rw io.ReadWriter, opts Options) (Framer, error) {
	opts = opts.withDefaults()
	switch mode {
	case ModeDelimiter:
		return NewDelimited(rw, opts.ChunkSize, opts.Limits), nil
	case ModeLengthPrefixed:
		return NewLengthPrefixed(rw, opts.Limits), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, string(mode))
	}
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}
