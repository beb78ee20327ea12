package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/lwctl/internal/filetree"
	"github.com/danmuck/lwctl/internal/observability"
	"github.com/danmuck/lwctl/internal/protocol"
	"github.com/danmuck/lwctl/internal/protocol/frame"
	"github.com/danmuck/lwctl/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Session is a half-duplex client for one engine process. Every exchange holds
// the request slot, so at most one request or extraction is outstanding.
type Session struct {
	id     string
	cfg    Config
	conn   transport.Transport
	framer frame.Framer
	logger zerolog.Logger

	// request slot
	mu sync.Mutex

	stateMu     sync.Mutex
	err         error
	done        chan struct{}
	archive     string
	archiveOpen bool
	connOnce    sync.Once
	closeOnce   sync.Once
}

// Dial opens the transport described by cfg and performs the handshake.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return New(ctx, cfg.Factory(), cfg)
}

// New opens a transport from factory and performs the handshake. The transport
// is closed when either step fails.
func New(ctx context.Context, factory transport.Factory, cfg Config) (*Session, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := factory.Open(ctx)
	if err != nil {
		observability.RecordSession("connect_failed")
		return nil, transportFailure("connect", err)
	}
	framer, err := frame.New(cfg.Framing, conn, cfg.FrameOptions())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	id := uuid.NewString()
	s := &Session{
		id:     id,
		cfg:    cfg,
		conn:   conn,
		framer: framer,
		done:   make(chan struct{}),
		logger: log.With().Str("session", id).Str("framing", string(cfg.Framing)).Logger(),
	}
	if err := s.Handshake(ctx); err != nil {
		s.closeConn()
		observability.RecordSession("handshake_failed")
		return nil, err
	}
	observability.RecordSession("opened")
	s.logger.Info().Str("endpoint", cfg.Endpoint.String()).Msg("session.New connected")
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

// Err returns the error that made the session unusable, or nil.
func (s *Session) Err() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.err
}

// ArchivePath returns the path of the open archive, if any.
func (s *Session) ArchivePath() (string, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.archive, s.archiveOpen
}

func (s *Session) setArchive(path string, open bool) {
	s.stateMu.Lock()
	s.archive, s.archiveOpen = path, open
	s.stateMu.Unlock()
}

func (s *Session) hasArchive() bool {
	_, open := s.ArchivePath()
	return open
}

// Handshake sends hello and expects hello back. Any other reply leaves the
// session unusable.
func (s *Session) Handshake(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	env, err := s.exchange(ctx, "handshake", protocol.KindHello, nil)
	if err != nil {
		observability.RecordRequest("handshake", "failed", time.Since(start))
		return err
	}
	if env.Kind != protocol.KindHello {
		err := fmt.Errorf("%w: peer replied %q", ErrHandshakeFailed, env.Tag)
		s.fail(err)
		observability.RecordRequest("handshake", "failed", time.Since(start))
		return err
	}
	observability.RecordRequest("handshake", "ok", time.Since(start))
	return nil
}

// Open asks the engine to open the archive at path. A rejection clears any
// previously open archive.
func (s *Session) Open(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	env, err := s.exchange(ctx, "open", protocol.KindOpen, protocol.OpenParam{Path: path})
	if err != nil {
		s.setArchive("", false)
		observability.RecordRequest("open", "failed", time.Since(start))
		return err
	}
	switch env.Kind {
	case protocol.KindOK:
		s.setArchive(path, true)
		observability.RecordRequest("open", "ok", time.Since(start))
		s.logger.Info().Str("archive", path).Msg("session.Open archive open")
		return nil
	case protocol.KindUnknown:
		s.setArchive("", false)
		observability.RecordRequest("open", "rejected", time.Since(start))
		return s.rejected("open", env)
	default:
		observability.RecordRequest("open", "failed", time.Since(start))
		return s.violation("open", env)
	}
}

// GetTree fetches and builds the listing of the open archive. A malformed
// listing fails this call only.
func (s *Session) GetTree(ctx context.Context) (*filetree.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}
	if !s.hasArchive() {
		return nil, ErrNoArchive
	}
	start := time.Now()
	env, err := s.exchange(ctx, "get_filetree", protocol.KindGetFileTree, nil)
	if err != nil {
		observability.RecordRequest("get_filetree", "failed", time.Since(start))
		return nil, err
	}
	switch env.Kind {
	case protocol.KindFileTree:
		tree, err := filetree.BuildJSON(env.Param)
		if err != nil {
			observability.RecordRequest("get_filetree", "malformed", time.Since(start))
			s.logger.Warn().Err(err).Msg("session.GetTree malformed listing")
			return nil, err
		}
		observability.RecordRequest("get_filetree", "ok", time.Since(start))
		return tree, nil
	case protocol.KindUnknown:
		observability.RecordRequest("get_filetree", "rejected", time.Since(start))
		return nil, s.rejected("get_filetree", env)
	default:
		observability.RecordRequest("get_filetree", "failed", time.Since(start))
		return nil, s.violation("get_filetree", env)
	}
}

// Close sends bye, waits for the reply and closes the transport. A bye
// mismatch is logged, not returned. If another operation holds the request
// slot the transport is torn down immediately, which aborts that operation.
// Close is idempotent.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		err = s.close(ctx)
	})
	return err
}

func (s *Session) close(ctx context.Context) error {
	if !s.mu.TryLock() {
		s.logger.Warn().Msg("session.Close aborting in-flight operation")
		s.fail(ErrSessionClosed)
		s.release()
		observability.RecordSession("aborted")
		return nil
	}
	defer s.mu.Unlock()

	if s.Err() == nil {
		env, err := s.exchange(ctx, "bye", protocol.KindBye, nil)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Msg("session.Close bye exchange failed")
		case env.Kind != protocol.KindBye:
			s.logger.Warn().Str("tag", env.Tag).Msg("session.Close peer did not answer bye")
		}
	}
	s.setArchive("", false)
	s.fail(ErrSessionClosed)
	s.release()
	observability.RecordSession("closed")
	s.logger.Info().Msg("session.Close closed")
	return nil
}

// exchange sends one request and reads one reply. Callers hold s.mu.
func (s *Session) exchange(ctx context.Context, op string, kind protocol.Kind, param any) (protocol.Envelope, error) {
	if err := s.usable(); err != nil {
		return protocol.Envelope{}, err
	}
	stop := s.watch(ctx)
	defer stop()
	if err := s.send(op, kind, param); err != nil {
		return protocol.Envelope{}, err
	}
	return s.recv(op)
}

// watch tears the transport down when ctx ends before the exchange does.
func (s *Session) watch(ctx context.Context) func() bool {
	return context.AfterFunc(ctx, func() {
		s.fail(transportFailure("canceled", context.Cause(ctx)))
	})
}

func (s *Session) send(op string, kind protocol.Kind, param any) error {
	b, err := protocol.Encode(kind, param)
	if err != nil {
		return fmt.Errorf("session: %s: %w", op, err)
	}
	if err := s.framer.WriteFrame(b); err != nil {
		return s.failIO(op, err)
	}
	observability.RecordEnvelope("out", kind.String())
	s.logger.Debug().Str("op", op).Str("tag", kind.Tag()).Msg("session sent")
	return nil
}

func (s *Session) recv(op string) (protocol.Envelope, error) {
	b, err := s.framer.ReadFrame()
	if err != nil {
		return protocol.Envelope{}, s.failIO(op, err)
	}
	env, err := protocol.Decode(b)
	if err != nil {
		return protocol.Envelope{}, s.failIO(op, err)
	}
	observability.RecordEnvelope("in", env.Kind.String())
	s.logger.Debug().Str("op", op).Str("tag", env.Tag).Bool("param", env.HasParam()).Msg("session received")
	return env, nil
}

// failIO records a fatal I/O or decode error. When the session was already
// broken, for example by cancellation, the first recorded error wins.
func (s *Session) failIO(op string, err error) error {
	s.fail(transportFailure(op, err))
	return s.Err()
}

func (s *Session) rejected(op string, env protocol.Envelope) error {
	err := &EngineRejectedError{Op: op, Tag: env.Tag, Message: env.ErrorText()}
	s.logger.Warn().Str("op", op).Str("tag", env.Tag).Str("message", err.Message).Msg("session engine rejected request")
	return err
}

func (s *Session) violation(op string, env protocol.Envelope) error {
	err := protocolViolation(op, env.Tag)
	s.fail(err)
	s.logger.Error().Err(err).Msg("session protocol violation")
	return s.Err()
}

func (s *Session) usable() error {
	if err := s.Err(); err != nil {
		if errors.Is(err, ErrSessionClosed) {
			return ErrSessionClosed
		}
		return err
	}
	return nil
}

// fail records err as the terminal state and closes the transport.
func (s *Session) fail(err error) {
	s.stateMu.Lock()
	if s.err == nil {
		s.err = err
		close(s.done)
	}
	s.stateMu.Unlock()
	s.closeConn()
}

// release removes the transport's rendezvous resources. Only Close calls it;
// a failed session leaves them in place so a reconnect can find the engine.
func (s *Session) release() {
	if r, ok := s.conn.(transport.Releaser); ok {
		if err := r.Release(); err != nil {
			s.logger.Debug().Err(err).Msg("session transport release")
		}
	}
}

func (s *Session) closeConn() {
	s.connOnce.Do(func() {
		if err := s.conn.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("session transport close")
		}
	})
}
