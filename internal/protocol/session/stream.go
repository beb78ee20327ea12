package session

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/lwctl/internal/observability"
	"github.com/danmuck/lwctl/internal/progress"
	"github.com/danmuck/lwctl/internal/protocol"
	"golang.org/x/sync/errgroup"
)

// EventFunc receives progress events one at a time, in wire order, never
// concurrently. A clean finish ends with exactly one progress.Done event.
type EventFunc func(progress.Event)

// ExtractAll extracts the whole open archive into dest.
func (s *Session) ExtractAll(ctx context.Context, dest string, onEvent EventFunc) error {
	return s.stream(ctx, streamRequest{
		op:          "extract",
		kind:        protocol.KindExtract,
		param:       protocol.ExtractParam{Path: dest},
		needArchive: true,
	}, onEvent)
}

// ExtractFile extracts one file, addressed by its archive path, into dest.
func (s *Session) ExtractFile(ctx context.Context, dest, file string, onEvent EventFunc) error {
	return s.extractItem(ctx, "extract_file", protocol.KindExtractFile, dest, file, onEvent)
}

func (s *Session) ExtractFolder(ctx context.Context, dest, folder string, onEvent EventFunc) error {
	return s.extractItem(ctx, "extract_folder", protocol.KindExtractFolder, dest, folder, onEvent)
}

func (s *Session) ExtractToc(ctx context.Context, dest, toc string, onEvent EventFunc) error {
	return s.extractItem(ctx, "extract_toc", protocol.KindExtractToc, dest, toc, onEvent)
}

func (s *Session) extractItem(ctx context.Context, op string, kind protocol.Kind, dest, item string, onEvent EventFunc) error {
	return s.stream(ctx, streamRequest{
		op:          op,
		kind:        kind,
		param:       protocol.ExtractItemParam{Path: dest, Item: item},
		needArchive: true,
	}, onEvent)
}

// Generate builds a new archive from a directory tree. The engine may stream
// progress before its terminal ok or finished reply.
func (s *Session) Generate(ctx context.Context, p protocol.GenerateParam, onEvent EventFunc) error {
	return s.stream(ctx, streamRequest{
		op:       "generate",
		kind:     protocol.KindGenerate,
		param:    p,
		acceptOK: true,
	}, onEvent)
}

// ExtractAllEvents is ExtractAll with the events handed over on a channel. The
// event channel is closed when the extraction ends; the error channel then
// yields exactly one value (nil on success). A consumer may stop reading and
// cancel ctx or Close the session; pending events are then discarded.
func (s *Session) ExtractAllEvents(ctx context.Context, dest string) (<-chan progress.Event, <-chan error) {
	events := make(chan progress.Event)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		err := s.ExtractAll(ctx, dest, func(ev progress.Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			case <-s.done:
			}
		})
		close(events)
		errc <- err
	}()
	return events, errc
}

type streamRequest struct {
	op          string
	kind        protocol.Kind
	param       any
	needArchive bool
	acceptOK    bool
}

// stream sends req and runs the decode loop until a terminal envelope arrives.
// Decoding and delivery run on separate goroutines joined by a progress.Relay,
// so a slow consumer never stalls the transport.
func (s *Session) stream(ctx context.Context, req streamRequest, onEvent EventFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if req.needArchive && !s.hasArchive() {
		return ErrNoArchive
	}
	if onEvent == nil {
		onEvent = func(progress.Event) {}
	}

	start := time.Now()
	stop := s.watch(ctx)
	defer stop()
	if err := s.send(req.op, req.kind, req.param); err != nil {
		observability.RecordRequest(req.op, "failed", time.Since(start))
		return err
	}

	relay := progress.NewRelay(s.cfg.ProgressBacklog)
	var decodeErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		decodeErr = s.decodeLoop(req, relay)
		relay.Finish(decodeErr)
		return decodeErr
	})
	g.Go(func() error {
		return relay.Run(gctx, func(ev progress.Event) { onEvent(ev) })
	})
	err := g.Wait()
	if decodeErr != nil {
		err = decodeErr
	}

	st := relay.Stats()
	observability.RecordProgress(st.Delivered, st.Dropped)
	if st.Dropped > 0 {
		s.logger.Warn().Str("op", req.op).Uint64("coalesced", st.Dropped).Msg("session slow progress consumer")
	}
	observability.RecordRequest(req.op, outcome(err), time.Since(start))
	if err == nil {
		s.logger.Info().Str("op", req.op).Uint64("events", st.Published).Dur("elapsed", time.Since(start)).Msg("session stream finished")
	}
	return err
}

func (s *Session) decodeLoop(req streamRequest, relay *progress.Relay) error {
	for {
		env, err := s.recv(req.op)
		if err != nil {
			return err
		}
		switch env.Kind {
		case protocol.KindProgress:
			ev, err := progress.Decode(env.Param)
			if err != nil {
				s.fail(fmt.Errorf("%w: %s: %w", ErrProtocolViolation, req.op, err))
				return s.Err()
			}
			relay.Publish(ev)
		case protocol.KindFinished:
			return nil
		case protocol.KindOK:
			if req.acceptOK {
				return nil
			}
			return s.violation(req.op, env)
		case protocol.KindUnknown:
			return s.rejected(req.op, env)
		default:
			return s.violation(req.op, env)
		}
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isRejected(err):
		return "rejected"
	default:
		return "failed"
	}
}
