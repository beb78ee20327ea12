// Package transport opens the duplex byte stream a session runs over.
//
// The engine process itself is not managed here: a Factory only knows how to
// reach an engine that is already listening.
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
)

var (
	ErrEndpointRequired = errors.New("transport: endpoint required")
	ErrInvalidEndpoint  = errors.New("transport: invalid endpoint")
)

// Transport is an ordered, reliable duplex byte stream. Reads may be partial.
type Transport interface {
	io.ReadWriteCloser
}

// Releaser is implemented by transports that own a rendezvous resource, such
// as the port file, that must be cleaned up only when a session ends normally.
type Releaser interface {
	Release() error
}

// Factory opens one Transport per session.
type Factory interface {
	Open(ctx context.Context) (Transport, error)
}

type FactoryFunc func(ctx context.Context) (Transport, error)

func (f FactoryFunc) Open(ctx context.Context) (Transport, error) {
	return f(ctx)
}

// Pipe returns the two ends of an in-memory synchronous connection.
func Pipe() (client, server Transport) {
	c, s := net.Pipe()
	return c, s
}

// Static returns a Factory that hands out t once.
func Static(t Transport) Factory {
	var used atomic.Bool
	return FactoryFunc(func(context.Context) (Transport, error) {
		if used.Swap(true) {
			return nil, errors.New("transport: static transport already opened")
		}
		return t, nil
	})
}
