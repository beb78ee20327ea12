package transport

import (
	"context"
	"math/rand"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

// Dialer connects to an engine endpoint, retrying with backoff.
type Dialer struct {
	Endpoint       Endpoint
	RuntimeDir     string
	ConnectTimeout time.Duration
	// MaxAttempts <= 0 retries until ctx is done.
	MaxAttempts int
	Backoff     BackoffConfig
}

func (d Dialer) Open(ctx context.Context) (Transport, error) {
	network, address, err := d.Endpoint.Address(d.RuntimeDir)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var attempt int
	for {
		attempt++
		dialer := net.Dialer{Timeout: d.ConnectTimeout}
		conn, err := dialer.DialContext(ctx, network, address)
		if err == nil {
			log.Debug().
				Str("endpoint", d.Endpoint.String()).
				Int("attempt", attempt).
				Msg("transport.Dialer connected")
			return conn, nil
		}
		log.Warn().
			Str("endpoint", d.Endpoint.String()).
			Int("attempt", attempt).
			Err(err).
			Msg("transport.Dialer dial failed")
		if !d.shouldRetry(attempt) {
			return nil, err
		}
		if err := sleepBackoff(ctx, d.Backoff, attempt, rng); err != nil {
			return nil, err
		}
	}
}

func (d Dialer) shouldRetry(attempt int) bool {
	if d.MaxAttempts <= 0 {
		return true
	}
	return attempt < d.MaxAttempts
}
