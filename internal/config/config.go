package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/lwctl/internal/protocol/frame"
	"github.com/danmuck/lwctl/internal/protocol/session"
	"github.com/danmuck/lwctl/internal/transport"
	"github.com/rs/zerolog/log"
)

const DefaultChannelName = "lwarchiver"

var ErrInvalidConfig = errors.New("config: invalid")

// File is the on-disk shape of an lwctl config.
type File struct {
	Framing            string   `toml:"framing"`
	Endpoint           string   `toml:"endpoint"`
	ChannelName        string   `toml:"channel_name"`
	Port               int      `toml:"port"`
	PortFile           string   `toml:"port_file"`
	RuntimeDir         string   `toml:"runtime_dir"`
	ChunkSize          int      `toml:"chunk_size"`
	MaxFrameBytes      uint64   `toml:"max_frame_bytes"`
	ConnectTimeout     string   `toml:"connect_timeout"`
	PortFileTimeout    string   `toml:"port_file_timeout"`
	MaxConnectAttempts int      `toml:"max_connect_attempts"`
	ProgressBacklog    int      `toml:"progress_backlog"`
	MetricsAddr        string   `toml:"metrics_addr"`
	MetricsCorsOrigins []string `toml:"metrics_cors_origins"`
}

// Settings is a resolved config.
type Settings struct {
	Session            session.Config
	MetricsAddr        string
	MetricsCorsOrigins []string
}

func Default() Settings {
	return Settings{Session: session.DefaultConfig()}
}

// Load decodes path and applies every defined key on top of Default.
func Load(path string) (Settings, error) {
	var raw File
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Settings{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	for _, key := range meta.Undecoded() {
		log.Warn().Str("path", path).Str("key", key.String()).Msg("config unknown key ignored")
	}
	settings, err := apply(Default(), raw, meta.IsDefined)
	if err != nil {
		return Settings{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := Validate(settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func apply(s Settings, raw File, defined func(key ...string) bool) (Settings, error) {
	cfg := &s.Session

	if defined("framing") {
		mode, err := frame.ParseMode(raw.Framing)
		if err != nil {
			return Settings{}, err
		}
		cfg.Framing = mode
	}

	endpoint := ""
	switch {
	case defined("endpoint"):
		endpoint = strings.ToLower(strings.TrimSpace(raw.Endpoint))
	case defined("channel_name"):
		endpoint = string(transport.EndpointNamed)
	case defined("port"):
		endpoint = string(transport.EndpointLoopback)
	}
	switch endpoint {
	case "":
	case string(transport.EndpointNamed), "named_channel", "pipe":
		name := strings.TrimSpace(raw.ChannelName)
		if name == "" {
			name = DefaultChannelName
		}
		cfg.Endpoint = transport.NamedChannel(name)
	case string(transport.EndpointLoopback), "loopback_socket", "tcp":
		cfg.Endpoint = transport.LoopbackSocket(raw.Port)
	default:
		return Settings{}, fmt.Errorf("%w: unknown endpoint %q", ErrInvalidConfig, raw.Endpoint)
	}

	if defined("port_file") {
		cfg.PortFile = strings.TrimSpace(raw.PortFile)
	}
	if defined("runtime_dir") {
		cfg.RuntimeDir = strings.TrimSpace(raw.RuntimeDir)
	}
	if defined("chunk_size") {
		cfg.ChunkSize = raw.ChunkSize
	}
	if defined("max_frame_bytes") {
		cfg.MaxFrameBytes = raw.MaxFrameBytes
	}
	if defined("connect_timeout") {
		d, err := parseDuration("connect_timeout", raw.ConnectTimeout)
		if err != nil {
			return Settings{}, err
		}
		cfg.ConnectTimeout = d
	}
	if defined("port_file_timeout") {
		d, err := parseDuration("port_file_timeout", raw.PortFileTimeout)
		if err != nil {
			return Settings{}, err
		}
		cfg.PortFileTimeout = d
	}
	if defined("max_connect_attempts") {
		cfg.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	if defined("progress_backlog") {
		cfg.ProgressBacklog = raw.ProgressBacklog
	}
	if defined("metrics_addr") {
		s.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if defined("metrics_cors_origins") {
		s.MetricsCorsOrigins = normalizeOrigins(raw.MetricsCorsOrigins)
	}
	return s, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func Validate(s Settings) error {
	if err := s.Session.Validate(); err != nil {
		return err
	}
	if s.Session.ChunkSize == 0 {
		return fmt.Errorf("%w: chunk_size must be positive", ErrInvalidConfig)
	}
	if s.Session.ProgressBacklog == 0 {
		return fmt.Errorf("%w: progress_backlog must be positive", ErrInvalidConfig)
	}
	if s.MetricsAddr != "" && !strings.Contains(s.MetricsAddr, ":") {
		return fmt.Errorf("%w: metrics_addr must be host:port", ErrInvalidConfig)
	}
	return nil
}

// FileOf renders settings back into the on-disk shape.
func FileOf(s Settings) File {
	cfg := s.Session
	f := File{
		Framing:            string(cfg.Framing),
		Endpoint:           string(cfg.Endpoint.Kind),
		ChannelName:        cfg.Endpoint.Name,
		Port:               cfg.Endpoint.Port,
		PortFile:           cfg.PortFile,
		RuntimeDir:         cfg.RuntimeDir,
		ChunkSize:          cfg.ChunkSize,
		MaxFrameBytes:      cfg.MaxFrameBytes,
		ConnectTimeout:     cfg.ConnectTimeout.String(),
		PortFileTimeout:    cfg.PortFileTimeout.String(),
		MaxConnectAttempts: cfg.MaxConnectAttempts,
		ProgressBacklog:    cfg.ProgressBacklog,
		MetricsAddr:        s.MetricsAddr,
		MetricsCorsOrigins: s.MetricsCorsOrigins,
	}
	if f.MetricsCorsOrigins == nil {
		f.MetricsCorsOrigins = []string{}
	}
	if f.ChannelName == "" {
		f.ChannelName = DefaultChannelName
	}
	return f
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimRight(strings.TrimSpace(origin), "/")
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
