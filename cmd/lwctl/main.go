package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/lwctl/internal/config"
	"github.com/danmuck/lwctl/internal/observability"
	"github.com/danmuck/lwctl/internal/protocol/frame"
	"github.com/danmuck/lwctl/internal/protocol/session"
	"github.com/danmuck/lwctl/internal/transport"
	"github.com/rs/zerolog/log"
)

const usage = `usage: lwctl [flags] <command> [args]

commands:
  ping                                  handshake and disconnect
  tree <archive>                        print the archive listing
  extract <archive> <dest>              extract everything
  extract-file <archive> <dest> <path>  extract one file
  extract-folder <archive> <dest> <path>
  extract-toc <archive> <dest> <toc>
  generate [generate flags] <root> <archive>
`

type options struct {
	configPath  string
	metricsAddr string
	framing     string
	port        int
	channel     string
	quiet       bool
}

func main() {
	observability.InitLogger("lwctl")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "lwctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("lwctl", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	var opts options
	fs.StringVar(&opts.configPath, "config", "", "config file (defaults apply when empty)")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on host:port")
	fs.StringVar(&opts.framing, "framing", "", "override framing: delimiter | length_prefixed")
	fs.IntVar(&opts.port, "port", 0, "connect to this loopback port instead of reading the port file")
	fs.StringVar(&opts.channel, "channel", "", "connect to this named channel")
	fs.BoolVar(&opts.quiet, "quiet", false, "suppress progress output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}
	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	c, err := lookup(cmd)
	if err != nil {
		return err
	}
	if err := c.parse(cmdArgs); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}

	s, err := session.Dial(ctx, settings.Session)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Close(closeCtx)
	}()

	if settings.MetricsAddr != "" {
		srv := observability.NewServer("lwctl", settings.MetricsCorsOrigins, func() map[string]any {
			archive, open := s.ArchivePath()
			return map[string]any{"session": s.ID(), "archive": archive, "archive_open": open, "command": cmd}
		})
		if _, err := srv.Start(settings.MetricsAddr); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	env := &commandEnv{session: s, out: stdout, quiet: opts.quiet}
	log.Debug().Str("command", cmd).Str("session", s.ID()).Msg("lwctl running command")
	return c.run(ctx, env)
}

func loadSettings(opts options) (config.Settings, error) {
	settings := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return config.Settings{}, err
		}
		settings = loaded
	}
	if opts.metricsAddr != "" {
		settings.MetricsAddr = opts.metricsAddr
	}
	if opts.framing != "" {
		mode, err := frame.ParseMode(opts.framing)
		if err != nil {
			return config.Settings{}, err
		}
		settings.Session.Framing = mode
	}
	switch {
	case opts.port > 0 && strings.TrimSpace(opts.channel) != "":
		return config.Settings{}, errors.New("-port and -channel are mutually exclusive")
	case opts.port > 0:
		settings.Session.Endpoint = transport.LoopbackSocket(opts.port)
	case strings.TrimSpace(opts.channel) != "":
		settings.Session.Endpoint = transport.NamedChannel(strings.TrimSpace(opts.channel))
	}
	if err := config.Validate(settings); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}
