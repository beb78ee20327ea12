package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/lwctl/internal/protocol/frame"
	"github.com/danmuck/lwctl/internal/testutil/testlog"
)

func TestEncodeOmitsParamWhenAbsent(t *testing.T) {
	testlog.Start(t)
	b, err := Encode(KindHello, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(b) != `{"msg":"hello"}` {
		t.Fatalf("unexpected wire form: %s", b)
	}
}

func TestEncodeRejectsParamForBareKinds(t *testing.T) {
	testlog.Start(t)
	for _, k := range []Kind{KindHello, KindBye, KindOK, KindGetFileTree, KindFinished} {
		if _, err := Encode(k, OpenParam{Path: "x"}); !errors.Is(err, ErrUnexpectedParam) {
			t.Fatalf("%s: expected ErrUnexpectedParam, got %v", k, err)
		}
	}
	if _, err := Encode(KindUnknown, nil); !errors.Is(err, ErrMissingTag) {
		t.Fatalf("expected ErrMissingTag, got %v", err)
	}
}

func TestRoundTripUnderBothFramings(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name  string
		kind  Kind
		param any
	}{
		{name: "hello", kind: KindHello},
		{name: "open", kind: KindOpen, param: OpenParam{Path: `C:\games\English.big`}},
		{name: "extract", kind: KindExtract, param: ExtractParam{Path: "/tmp/out dir"}},
		{name: "extract_toc", kind: KindExtractToc, param: ExtractItemParam{Path: "/tmp/o", Item: "TOC1"}},
		{name: "generate", kind: KindGenerate, param: GenerateParam{
			Root: "/src", Archive: "/a.big", ThreadNum: 4, CompressLevel: 9,
			IgnoreList: []string{".git", "*.tmp"}, Seed: 7,
		}},
		{name: "progress", kind: KindProgress, param: map[string]any{"current": 1.0, "max": 3.0, "filename": "ü.txt"}},
		{name: "finished", kind: KindFinished},
	}

	for _, mode := range []frame.Mode{frame.ModeDelimiter, frame.ModeLengthPrefixed} {
		for _, tt := range tests {
			t.Run(string(mode)+"/"+tt.name, func(t *testing.T) {
				var wire bytes.Buffer
				f, err := frame.New(mode, &wire, frame.Options{})
				if err != nil {
					t.Fatalf("framer: %v", err)
				}
				b, err := Encode(tt.kind, tt.param)
				if err != nil {
					t.Fatalf("encode: %v", err)
				}
				if err := f.WriteFrame(b); err != nil {
					t.Fatalf("write frame: %v", err)
				}
				got, err := f.ReadFrame()
				if err != nil {
					t.Fatalf("read frame: %v", err)
				}
				env, err := Decode(got)
				if err != nil {
					t.Fatalf("decode: %v", err)
				}
				if env.Kind != tt.kind || env.Tag != tt.kind.Tag() {
					t.Fatalf("kind mismatch: got=%s/%q want=%s", env.Kind, env.Tag, tt.kind)
				}
				if tt.param == nil {
					if env.HasParam() {
						t.Fatalf("unexpected param: %s", env.Param)
					}
					return
				}
				want := normalize(t, tt.param)
				var have any
				if err := json.Unmarshal(env.Param, &have); err != nil {
					t.Fatalf("unmarshal param: %v", err)
				}
				if !reflect.DeepEqual(have, want) {
					t.Fatalf("param mismatch: got=%v want=%v", have, want)
				}
			})
		}
	}
}

func normalize(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestDecodeUnknownTagIsData(t *testing.T) {
	testlog.Start(t)
	env, err := Decode([]byte(`{"msg":"archive is corrupt"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Kind != KindUnknown || env.Tag != "archive is corrupt" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.ErrorText() != "archive is corrupt" {
		t.Fatalf("unexpected error text: %q", env.ErrorText())
	}

	env, err = Decode([]byte(`{"msg":"error","param":{"message":"file not found"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.ErrorText() != "file not found" {
		t.Fatalf("unexpected error text: %q", env.ErrorText())
	}
}

func TestDecodeMalformed(t *testing.T) {
	testlog.Start(t)
	cases := []string{
		``,
		`{`,
		`null`,
		`[]`,
		`"hello"`,
		`{"param":{}}`,
		`{"msg":""}`,
		`{"msg":42}`,
	}
	for _, in := range cases {
		if _, err := Decode([]byte(in)); !errors.Is(err, ErrMalformedMessage) {
			t.Fatalf("input %q: expected ErrMalformedMessage, got %v", in, err)
		}
	}
}

func TestDecodeParam(t *testing.T) {
	testlog.Start(t)
	env, err := Decode([]byte(`{"msg":"open","param":{"path":"a.big"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var p OpenParam
	if err := env.DecodeParam(&p); err != nil || p.Path != "a.big" {
		t.Fatalf("decode param: %+v %v", p, err)
	}

	env, _ = Decode([]byte(`{"msg":"ok","param":null}`))
	if err := env.DecodeParam(&p); !errors.Is(err, ErrMissingParam) {
		t.Fatalf("expected ErrMissingParam, got %v", err)
	}

	env, _ = Decode([]byte(`{"msg":"open","param":{"path":7}}`))
	if err := env.DecodeParam(&p); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
}

func TestKindOf(t *testing.T) {
	testlog.Start(t)
	for k, tag := range kindTags {
		if KindOf(tag) != k {
			t.Fatalf("KindOf(%q) != %s", tag, k)
		}
	}
	if KindOf("extract_all") != KindUnknown {
		t.Fatalf("expected unknown")
	}
}
