package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/lwctl/internal/protocol/frame"
	"github.com/danmuck/lwctl/internal/protocol/session"
	"github.com/danmuck/lwctl/internal/testutil/testlog"
	"github.com/danmuck/lwctl/internal/transport"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lwctl.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEmptyFileKeepsDefaults(t *testing.T) {
	testlog.Start(t)
	s, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := session.DefaultConfig()
	if s.Session.Framing != want.Framing || s.Session.Endpoint != want.Endpoint || s.Session.ProgressBacklog != want.ProgressBacklog {
		t.Fatalf("defaults not kept: %+v", s.Session)
	}
	if s.MetricsAddr != "" {
		t.Fatalf("metrics should be off by default: %q", s.MetricsAddr)
	}
}

func TestLoadOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
framing = "delimiter"
endpoint = "named"
channel_name = "engine-7"
runtime_dir = "/run/lw"
chunk_size = 512
connect_timeout = "2s"
port_file_timeout = "750ms"
max_connect_attempts = 3
progress_backlog = 1
metrics_addr = "127.0.0.1:9400"
metrics_cors_origins = ["http://localhost:3000/", " "]
`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := s.Session
	if cfg.Framing != frame.ModeDelimiter {
		t.Fatalf("unexpected framing: %q", cfg.Framing)
	}
	if cfg.Endpoint != transport.NamedChannel("engine-7") || cfg.RuntimeDir != "/run/lw" {
		t.Fatalf("unexpected endpoint: %+v %q", cfg.Endpoint, cfg.RuntimeDir)
	}
	if cfg.ChunkSize != 512 || cfg.ProgressBacklog != 1 || cfg.MaxConnectAttempts != 3 {
		t.Fatalf("unexpected sizes: %+v", cfg)
	}
	if cfg.ConnectTimeout != 2*time.Second || cfg.PortFileTimeout != 750*time.Millisecond {
		t.Fatalf("unexpected timeouts: %v %v", cfg.ConnectTimeout, cfg.PortFileTimeout)
	}
	if s.MetricsAddr != "127.0.0.1:9400" {
		t.Fatalf("unexpected metrics addr: %q", s.MetricsAddr)
	}
	if len(s.MetricsCorsOrigins) != 1 || s.MetricsCorsOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected cors origins: %v", s.MetricsCorsOrigins)
	}
}

func TestLoadPortImpliesLoopback(t *testing.T) {
	testlog.Start(t)
	s, err := Load(writeConfig(t, "port = 48211\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Session.Endpoint != transport.LoopbackSocket(48211) || s.Session.UsesPortFile() {
		t.Fatalf("unexpected endpoint: %+v", s.Session.Endpoint)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"framing":  `framing = "smoke-signals"`,
		"endpoint": `endpoint = "carrier"`,
		"duration": `connect_timeout = "soon"`,
		"chunk":    `chunk_size = 0`,
		"metrics":  `metrics_addr = "nowhere"`,
		"syntax":   `framing = `,
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Load(writeConfig(t, `endpoint = "carrier"`)); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestTemplateLoadsAsDefaults(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "lwctl.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected refusal to overwrite, got %v", err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	want := Default().Session
	if s.Session.Framing != want.Framing || s.Session.Endpoint != want.Endpoint ||
		s.Session.ConnectTimeout != want.ConnectTimeout || s.Session.PortFile != want.PortFile {
		t.Fatalf("template drifted from defaults: %+v", s.Session)
	}
}
