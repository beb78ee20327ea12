package protocol

import "errors"

var (
	ErrMalformedMessage = errors.New("protocol: malformed message")
	ErrMissingTag       = errors.New("protocol: missing msg tag")
	ErrUnexpectedParam  = errors.New("protocol: param not defined for message")
	ErrMissingParam     = errors.New("protocol: missing param")
)
