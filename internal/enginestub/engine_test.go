package enginestub

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/lwctl/internal/protocol"
	"github.com/danmuck/lwctl/internal/protocol/frame"
	"github.com/danmuck/lwctl/internal/testutil/testlog"
	"github.com/danmuck/lwctl/internal/transport"
)

func roundTrip(t *testing.T, f frame.Framer, kind protocol.Kind, param any) protocol.Envelope {
	t.Helper()
	b, err := protocol.Encode(kind, param)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := f.WriteFrame(b); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := f.ReadFrame()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	env, err := protocol.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env
}

func TestEngineDefaultReplies(t *testing.T) {
	testlog.Start(t)
	e := New(frame.ModeDelimiter)
	e.Archives["a.big"] = json.RawMessage(`{"name":"a","tocs":[]}`)

	client, server := transport.Pipe()
	done := make(chan error, 1)
	go func() { done <- e.Serve(context.Background(), server) }()

	f, _ := frame.New(frame.ModeDelimiter, client, frame.Options{})
	if env := roundTrip(t, f, protocol.KindHello, nil); env.Kind != protocol.KindHello {
		t.Fatalf("hello reply: %+v", env)
	}
	if env := roundTrip(t, f, protocol.KindGetFileTree, nil); env.Kind != protocol.KindUnknown || env.ErrorText() != "no archive open" {
		t.Fatalf("tree without archive: %+v", env)
	}
	if env := roundTrip(t, f, protocol.KindOpen, protocol.OpenParam{Path: "missing.big"}); env.Kind != protocol.KindUnknown {
		t.Fatalf("open missing: %+v", env)
	}
	if env := roundTrip(t, f, protocol.KindOpen, protocol.OpenParam{Path: "a.big"}); env.Kind != protocol.KindOK {
		t.Fatalf("open: %+v", env)
	}
	env := roundTrip(t, f, protocol.KindGetFileTree, nil)
	if env.Kind != protocol.KindFileTree || string(env.Param) != `{"name":"a","tocs":[]}` {
		t.Fatalf("filetree: %+v", env)
	}
	if env := roundTrip(t, f, protocol.KindBye, nil); env.Kind != protocol.KindBye {
		t.Fatalf("bye: %+v", env)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not return after bye")
	}
	if got := e.Count(protocol.KindOpen); got != 2 {
		t.Fatalf("unexpected open count: %d", got)
	}
}

func TestEnginePublishesLoopbackPort(t *testing.T) {
	testlog.Start(t)
	ln, err := Listen(transport.LoopbackSocket(0), "")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	pf := transport.PortFile{Path: filepath.Join(t.TempDir(), transport.DefaultPortFileName)}
	port, err := Publish(pf, ln)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	got, err := pf.Read()
	if err != nil || got != port {
		t.Fatalf("port file: %d %v want %d", got, err, port)
	}
}
