package protocol

import (
	"encoding/json"
	"strings"
)

// Kind is the closed set of message tags understood by this client.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindHello
	KindBye
	KindOpen
	KindOK
	KindGetFileTree
	KindFileTree
	KindExtract
	KindExtractFile
	KindExtractFolder
	KindExtractToc
	KindProgress
	KindFinished
	KindGenerate
)

var kindTags = map[Kind]string{
	KindHello:         "hello",
	KindBye:           "bye",
	KindOpen:          "open",
	KindOK:            "ok",
	KindGetFileTree:   "get_filetree",
	KindFileTree:      "filetree",
	KindExtract:       "extract",
	KindExtractFile:   "extract_file",
	KindExtractFolder: "extract_folder",
	KindExtractToc:    "extract_toc",
	KindProgress:      "progress",
	KindFinished:      "finished",
	KindGenerate:      "generate",
}

var tagKinds = func() map[string]Kind {
	out := make(map[string]Kind, len(kindTags))
	for k, tag := range kindTags {
		out[tag] = k
	}
	return out
}()

// Tag returns the wire tag, or "" for KindUnknown.
func (k Kind) Tag() string {
	return kindTags[k]
}

func (k Kind) String() string {
	if tag, ok := kindTags[k]; ok {
		return tag
	}
	return "unknown"
}

// HasParam reports whether the kind carries a param object on the wire.
func (k Kind) HasParam() bool {
	switch k {
	case KindOpen, KindFileTree, KindExtract, KindExtractFile, KindExtractFolder,
		KindExtractToc, KindProgress, KindGenerate:
		return true
	case KindUnknown:
		// engine error replies may carry a message param
		return true
	default:
		return false
	}
}

// KindOf maps a wire tag to its Kind. Unrecognized tags map to KindUnknown.
func KindOf(tag string) Kind {
	if k, ok := tagKinds[strings.TrimSpace(tag)]; ok {
		return k
	}
	return KindUnknown
}

// Envelope is one decoded message.
type Envelope struct {
	Kind  Kind
	Tag   string
	Param json.RawMessage
}

func (e Envelope) HasParam() bool {
	return len(e.Param) > 0 && string(e.Param) != "null"
}

// ErrorText is the human-readable text of an engine error reply: the param's
// message when one is present, otherwise the tag itself.
func (e Envelope) ErrorText() string {
	if e.HasParam() {
		var p ErrorParam
		if err := json.Unmarshal(e.Param, &p); err == nil && strings.TrimSpace(p.Message) != "" {
			return p.Message
		}
	}
	return e.Tag
}

// DecodeParam unmarshals the param object into out.
func (e Envelope) DecodeParam(out any) error {
	if !e.HasParam() {
		return ErrMissingParam
	}
	if err := json.Unmarshal(e.Param, out); err != nil {
		return wrapMalformed(err)
	}
	return nil
}
