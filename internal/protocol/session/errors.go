package session

import (
	"errors"
	"fmt"

	"github.com/danmuck/lwctl/internal/filetree"
)

var (
	ErrTransportFailure = errors.New("session: transport failure")
	ErrHandshakeFailed  = errors.New("session: handshake failed")
	ErrEngineRejected   = errors.New("session: engine rejected request")
	ErrMalformedTree    = filetree.ErrMalformedTree
	ErrNoArchive        = errors.New("session: no archive open")
	ErrSessionClosed    = errors.New("session: closed")
	ErrInvalidConfig    = errors.New("session: invalid config")
)

// ErrProtocolViolation is fatal and matches ErrTransportFailure under errors.Is.
var ErrProtocolViolation = fmt.Errorf("%w: protocol violation", ErrTransportFailure)

// EngineRejectedError carries the engine's own message for a refused request.
// The session stays usable after one.
type EngineRejectedError struct {
	Op      string
	Tag     string
	Message string
}

func (e *EngineRejectedError) Error() string {
	return fmt.Sprintf("session: %s rejected by engine: %s", e.Op, e.Message)
}

func (e *EngineRejectedError) Unwrap() error {
	return ErrEngineRejected
}

func transportFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransportFailure, op, err)
}

func protocolViolation(op, tag string) error {
	return fmt.Errorf("%w: %s: unexpected %q", ErrProtocolViolation, op, tag)
}

func isRejected(err error) bool {
	return errors.Is(err, ErrEngineRejected)
}
