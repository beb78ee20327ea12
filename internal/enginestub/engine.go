// Package enginestub is a scripted archive engine: the server side of the
// control protocol, backed by canned listings instead of a real codec.
package enginestub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/danmuck/lwctl/internal/progress"
	"github.com/danmuck/lwctl/internal/protocol"
	"github.com/danmuck/lwctl/internal/protocol/frame"
	"github.com/danmuck/lwctl/internal/transport"
	"github.com/rs/zerolog/log"
)

// Reply is one envelope the engine sends. An empty Param is omitted.
type Reply struct {
	Tag   string
	Param any
}

// Handler overrides the default reply for a request. Returning handled=false
// falls through to the built-in behavior; handled=true with no replies keeps
// the client waiting.
type Handler func(env protocol.Envelope) (replies []Reply, handled bool)

// Engine answers one client at a time.
type Engine struct {
	Framing frame.Mode
	Options frame.Options

	// Archives maps an archive path to its listing.
	Archives map[string]json.RawMessage
	// Progress is streamed before the terminal reply of every extraction.
	Progress []progress.Event
	// Greeting answers hello. Empty means "hello".
	Greeting string
	// Farewell answers bye. Empty means "bye".
	Farewell string
	Handler  Handler

	mu       sync.Mutex
	received []protocol.Envelope
}

func New(mode frame.Mode) *Engine {
	return &Engine{
		Framing:  mode,
		Archives: map[string]json.RawMessage{},
	}
}

// Received returns the envelopes read so far, in order.
func (e *Engine) Received() []protocol.Envelope {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]protocol.Envelope, len(e.received))
	copy(out, e.received)
	return out
}

// Count returns how many received envelopes carried kind.
func (e *Engine) Count(kind protocol.Kind) int {
	n := 0
	for _, env := range e.Received() {
		if env.Kind == kind {
			n++
		}
	}
	return n
}

// Serve runs the protocol on conn until bye, EOF or ctx is done. conn is closed
// on return.
func (e *Engine) Serve(ctx context.Context, conn io.ReadWriteCloser) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	f, err := frame.New(e.Framing, conn, e.Options)
	if err != nil {
		return err
	}
	c := &client{engine: e, framer: f}
	for {
		b, err := f.ReadFrame()
		if err != nil {
			if errors.Is(err, frame.ErrTransportClosed) {
				return nil
			}
			return err
		}
		env, err := protocol.Decode(b)
		if err != nil {
			return err
		}
		e.mu.Lock()
		e.received = append(e.received, env)
		e.mu.Unlock()
		log.Debug().Str("tag", env.Tag).Msg("enginestub received")

		done, err := c.handle(env)
		if err != nil || done {
			return err
		}
	}
}

// ServeListener accepts clients one after another until ctx is done.
func (e *Engine) ServeListener(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		log.Info().Str("remote", conn.RemoteAddr().String()).Msg("enginestub client connected")
		if err := e.Serve(ctx, conn); err != nil {
			log.Warn().Err(err).Msg("enginestub client session ended")
		}
	}
}

// Listen binds endpoint. A loopback endpoint with port 0 picks a free port.
func Listen(ep transport.Endpoint, runtimeDir string) (net.Listener, error) {
	if ep.Kind == transport.EndpointLoopback && ep.Port == 0 {
		return net.Listen("tcp", "127.0.0.1:0")
	}
	network, addr, err := ep.Address(runtimeDir)
	if err != nil {
		return nil, err
	}
	return net.Listen(network, addr)
}

// Publish writes the listener's loopback port to pf.
func Publish(pf transport.PortFile, ln net.Listener) (int, error) {
	addr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("enginestub: %s listener has no port", ln.Addr().Network())
	}
	return addr.Port, pf.Write(addr.Port)
}

type client struct {
	engine  *Engine
	framer  frame.Framer
	archive string
}

func (c *client) handle(env protocol.Envelope) (bool, error) {
	if h := c.engine.Handler; h != nil {
		if replies, handled := h(env); handled {
			return env.Kind == protocol.KindBye, c.send(replies...)
		}
	}
	switch env.Kind {
	case protocol.KindHello:
		return false, c.send(Reply{Tag: orDefault(c.engine.Greeting, "hello")})
	case protocol.KindBye:
		return true, c.send(Reply{Tag: orDefault(c.engine.Farewell, "bye")})
	case protocol.KindOpen:
		var p protocol.OpenParam
		if err := env.DecodeParam(&p); err != nil {
			return false, c.send(errorReply(err.Error()))
		}
		if _, ok := c.engine.Archives[p.Path]; !ok {
			c.archive = ""
			return false, c.send(errorReply("cannot open archive: " + p.Path))
		}
		c.archive = p.Path
		return false, c.send(Reply{Tag: "ok"})
	case protocol.KindGetFileTree:
		if c.archive == "" {
			return false, c.send(errorReply("no archive open"))
		}
		return false, c.send(Reply{Tag: "filetree", Param: c.engine.Archives[c.archive]})
	case protocol.KindExtract, protocol.KindExtractFile, protocol.KindExtractFolder, protocol.KindExtractToc:
		if c.archive == "" {
			return false, c.send(errorReply("no archive open"))
		}
		return false, c.stream("finished")
	case protocol.KindGenerate:
		return false, c.stream("ok")
	default:
		return false, c.send(errorReply("unknown message: " + env.Tag))
	}
}

func (c *client) stream(terminal string) error {
	for _, ev := range c.engine.Progress {
		raw, err := progress.Encode(ev)
		if err != nil {
			return err
		}
		if err := c.send(Reply{Tag: "progress", Param: raw}); err != nil {
			return err
		}
	}
	return c.send(Reply{Tag: terminal})
}

func (c *client) send(replies ...Reply) error {
	for _, r := range replies {
		b, err := protocol.EncodeTag(r.Tag, r.Param)
		if err != nil {
			return err
		}
		if err := c.framer.WriteFrame(b); err != nil {
			return err
		}
	}
	return nil
}

func errorReply(message string) Reply {
	return Reply{Tag: "error", Param: protocol.ErrorParam{Message: message}}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
