package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

type wireEnvelope struct {
	Msg   string `json:"msg"`
	Param any    `json:"param,omitempty"`
}

// Encode renders {"msg": tag, "param": param} for a known kind. A nil param is omitted.
func Encode(kind Kind, param any) ([]byte, error) {
	if kind == KindUnknown {
		return nil, fmt.Errorf("%w: cannot encode unknown kind", ErrMissingTag)
	}
	if param != nil && !kind.HasParam() {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedParam, kind)
	}
	return EncodeTag(kind.Tag(), param)
}

// EncodeTag renders an envelope for an arbitrary tag, including engine error tags.
func EncodeTag(tag string, param any) ([]byte, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, ErrMissingTag
	}
	return json.Marshal(wireEnvelope{Msg: tag, Param: param})
}
