package session

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/lwctl/internal/progress"
	"github.com/danmuck/lwctl/internal/protocol/frame"
	"github.com/danmuck/lwctl/internal/transport"
)

// Config selects framing and endpoint for a session. A loopback endpoint with
// port 0 means the port is discovered through the port file.
type Config struct {
	Framing            frame.Mode
	Endpoint           transport.Endpoint
	RuntimeDir         string
	PortFile           string
	ChunkSize          int
	MaxFrameBytes      uint64
	ConnectTimeout     time.Duration
	PortFileTimeout    time.Duration
	MaxConnectAttempts int
	ProgressBacklog    int
	Backoff            transport.BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		Framing:            frame.ModeLengthPrefixed,
		Endpoint:           transport.LoopbackSocket(0),
		RuntimeDir:         transport.DefaultRuntimeDir(),
		PortFile:           transport.DefaultPortFilePath(),
		ChunkSize:          frame.DefaultChunkSize,
		MaxFrameBytes:      frame.DefaultLimits().MaxPayloadBytes,
		ConnectTimeout:     5 * time.Second,
		PortFileTimeout:    30 * time.Second,
		MaxConnectAttempts: 5,
		ProgressBacklog:    progress.DefaultBacklog,
		Backoff:            transport.DefaultBackoff(),
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Framing == "" {
		c.Framing = d.Framing
	}
	if c.Endpoint.Kind == "" {
		c.Endpoint = d.Endpoint
	}
	if c.RuntimeDir == "" {
		c.RuntimeDir = d.RuntimeDir
	}
	if c.PortFile == "" {
		c.PortFile = d.PortFile
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.MaxFrameBytes == 0 {
		c.MaxFrameBytes = d.MaxFrameBytes
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.PortFileTimeout == 0 {
		c.PortFileTimeout = d.PortFileTimeout
	}
	if c.ProgressBacklog == 0 {
		c.ProgressBacklog = d.ProgressBacklog
	}
	if c.Backoff.InitialDelay == 0 {
		c.Backoff = d.Backoff
	}
	return c
}

// UsesPortFile reports whether the loopback port is read from the port file.
func (c Config) UsesPortFile() bool {
	return c.Endpoint.Kind == transport.EndpointLoopback && c.Endpoint.Port == 0
}

func (c Config) Validate() error {
	if _, err := frame.ParseMode(string(c.Framing)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.UsesPortFile() {
		if c.PortFile == "" {
			return fmt.Errorf("%w: port_file is required when port is 0", ErrInvalidConfig)
		}
	} else if err := c.Endpoint.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("%w: chunk_size must be positive", ErrInvalidConfig)
	}
	if c.ProgressBacklog < 0 {
		return fmt.Errorf("%w: progress_backlog must be positive", ErrInvalidConfig)
	}
	if c.ConnectTimeout < 0 || c.PortFileTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c Config) FrameOptions() frame.Options {
	return frame.Options{
		ChunkSize: c.ChunkSize,
		Limits:    frame.Limits{MaxPayloadBytes: c.MaxFrameBytes},
	}
}

func (c Config) dialer() transport.Dialer {
	return transport.Dialer{
		Endpoint:       c.Endpoint,
		RuntimeDir:     c.RuntimeDir,
		ConnectTimeout: c.ConnectTimeout,
		MaxAttempts:    c.MaxConnectAttempts,
		Backoff:        c.Backoff,
	}
}

// Factory builds the transport factory described by the config.
func (c Config) Factory() transport.Factory {
	if !c.UsesPortFile() {
		return c.dialer()
	}
	pf := transport.PortFileFactory{
		PortFile: transport.PortFile{Path: c.PortFile, Backoff: c.Backoff},
		Dialer:   c.dialer(),
	}
	timeout := c.PortFileTimeout
	return transport.FactoryFunc(func(ctx context.Context) (transport.Transport, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return pf.Open(ctx)
	})
}
