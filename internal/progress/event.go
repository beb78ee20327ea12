package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedEvent = errors.New("progress: malformed event")

type Kind uint8

const (
	// Step reports current/max with an optional message and filename.
	Step Kind = iota
	// Counters reports read/decompress/write counts against a total.
	Counters
	// Done is delivered once, after the last event of a finished run.
	Done
)

func (k Kind) String() string {
	switch k {
	case Step:
		return "step"
	case Counters:
		return "counters"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

type Level uint8

const (
	Info Level = iota
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Warn:
		return "warn"
	case Error:
		return "err"
	default:
		return "info"
	}
}

func parseLevel(raw string) Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "warn", "warning":
		return Warn
	case "err", "error":
		return Error
	default:
		return Info
	}
}

type Event struct {
	Kind     Kind
	Level    Level
	Message  string
	Current  int
	Max      int
	Filename string

	Read       int64
	Decompress int64
	Write      int64
	Total      int64
}

// Fraction is the completed share in [0,1], or -1 when unknown.
func (e Event) Fraction() float64 {
	switch e.Kind {
	case Step:
		if e.Max <= 0 {
			return -1
		}
		return clamp(float64(e.Current) / float64(e.Max))
	case Counters:
		if e.Total <= 0 {
			return -1
		}
		return clamp(float64(e.Write) / float64(e.Total))
	case Done:
		return 1
	default:
		return -1
	}
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

type wireEvent struct {
	Type     string `json:"type,omitempty"`
	Msg      string `json:"msg,omitempty"`
	Current  int    `json:"current"`
	Max      int    `json:"max"`
	Filename string `json:"filename,omitempty"`

	Read       *int64 `json:"read,omitempty"`
	Decompress *int64 `json:"decompress,omitempty"`
	Write      *int64 `json:"write,omitempty"`
	Total      *int64 `json:"total,omitempty"`
}

// Decode parses a progress param. A param carrying any of read/decompress/write
// is a Counters event; everything else is a Step event.
func Decode(raw json.RawMessage) (Event, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return Event{Kind: Step}, nil
	}
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	ev := Event{
		Level:   parseLevel(w.Type),
		Message: w.Msg,
	}
	if w.Read != nil || w.Decompress != nil || w.Write != nil {
		ev.Kind = Counters
		ev.Read = deref(w.Read)
		ev.Decompress = deref(w.Decompress)
		ev.Write = deref(w.Write)
		ev.Total = deref(w.Total)
		return ev, nil
	}
	ev.Kind = Step
	ev.Current = w.Current
	ev.Max = w.Max
	ev.Filename = w.Filename
	return ev, nil
}

// Encode renders ev in the wire shape Decode accepts. Done has no wire form.
func Encode(ev Event) (json.RawMessage, error) {
	w := wireEvent{Type: ev.Level.String(), Msg: ev.Message}
	switch ev.Kind {
	case Step:
		w.Current = ev.Current
		w.Max = ev.Max
		w.Filename = ev.Filename
	case Counters:
		w.Read = &ev.Read
		w.Decompress = &ev.Decompress
		w.Write = &ev.Write
		w.Total = &ev.Total
	default:
		return nil, fmt.Errorf("%w: %s has no wire form", ErrMalformedEvent, ev.Kind)
	}
	return json.Marshal(w)
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
