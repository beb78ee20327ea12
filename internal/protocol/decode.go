package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decode parses one frame payload. Unknown tags are not an error: they come back
// as KindUnknown with the tag preserved.
func Decode(b []byte) (Envelope, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return Envelope{}, wrapMalformed(err)
	}
	if raw == nil {
		return Envelope{}, wrapMalformed(ErrMissingTag)
	}
	msgRaw, ok := raw["msg"]
	if !ok {
		return Envelope{}, wrapMalformed(ErrMissingTag)
	}
	var tag string
	if err := json.Unmarshal(msgRaw, &tag); err != nil {
		return Envelope{}, wrapMalformed(err)
	}
	if strings.TrimSpace(tag) == "" {
		return Envelope{}, wrapMalformed(ErrMissingTag)
	}
	env := Envelope{
		Kind: KindOf(tag),
		Tag:  tag,
	}
	if p, ok := raw["param"]; ok && string(p) != "null" {
		env.Param = p
	}
	return env, nil
}

func wrapMalformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
}
