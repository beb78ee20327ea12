package transport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultPortFileName = "lwarchiver.port"

var ErrInvalidPortFile = errors.New("transport: invalid port file")

// PortFile is where an engine listening on a loopback socket publishes its port
// as decimal text.
type PortFile struct {
	Path    string
	Backoff BackoffConfig
}

func DefaultPortFilePath() string {
	return filepath.Join(os.TempDir(), DefaultPortFileName)
}

// Wait polls until the port file exists and holds a valid port.
func (p PortFile) Wait(ctx context.Context) (int, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var attempt int
	for {
		attempt++
		port, err := p.Read()
		if err == nil {
			log.Debug().Str("path", p.Path).Int("port", port).Int("attempt", attempt).Msg("transport.PortFile ready")
			return port, nil
		}
		// a half-written file parses as invalid; keep polling until the engine finishes it
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, ErrInvalidPortFile) {
			return 0, err
		}
		if err := sleepBackoff(ctx, p.Backoff, attempt, rng); err != nil {
			return 0, fmt.Errorf("wait for port file %s: %w", p.Path, err)
		}
	}
}

func (p PortFile) Read() (int, error) {
	b, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	raw := strings.TrimSpace(string(b))
	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPortFile, raw)
	}
	return port, nil
}

// Write publishes port atomically (temp file + rename).
func (p PortFile) Write(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPortFile, port)
	}
	tmp := p.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(port)), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, p.Path)
}

func (p PortFile) Remove() error {
	err := os.Remove(p.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// PortFileFactory waits for the engine's port file and dials the published
// loopback port. The returned transport implements Releaser; the file is only
// removed when the owner releases it on a normal teardown.
type PortFileFactory struct {
	PortFile PortFile
	Dialer   Dialer
}

func (f PortFileFactory) Open(ctx context.Context) (Transport, error) {
	port, err := f.PortFile.Wait(ctx)
	if err != nil {
		return nil, err
	}
	d := f.Dialer
	d.Endpoint = LoopbackSocket(port)
	conn, err := d.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &portFileConn{Transport: conn, file: f.PortFile}, nil
}

type portFileConn struct {
	Transport
	file PortFile
	once sync.Once
}

// Release removes the port file. Later calls are no-ops.
func (c *portFileConn) Release() error {
	var err error
	c.once.Do(func() {
		if err = c.file.Remove(); err != nil {
			log.Warn().Str("path", c.file.Path).Err(err).Msg("transport.PortFile remove failed")
		}
	})
	return err
}
