package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/lwctl/internal/enginestub"
	"github.com/danmuck/lwctl/internal/observability"
	"github.com/danmuck/lwctl/internal/progress"
	"github.com/danmuck/lwctl/internal/protocol/frame"
	"github.com/danmuck/lwctl/internal/transport"
	"github.com/rs/zerolog/log"
)

const sampleListing = `{"name":"Sample","tocs":[{"name":"TOC1","alias":"Data","tocfolder":{"path":"","subfolders":[{"path":"art\\","subfolders":[],"files":[{"name":"logo.dds","storage":"compress_buffer","date":1700000000,"compressedlen":512,"decompressedlen":4096}]}],"files":[{"name":"readme.txt","storage":"store","date":1700000000,"compressedlen":64,"decompressedlen":64}]}}]}`

func main() {
	observability.InitLogger("mockengine")
	framing := flag.String("framing", string(frame.ModeLengthPrefixed), "delimiter | length_prefixed")
	channel := flag.String("channel", "", "listen on a named channel instead of loopback")
	runtimeDir := flag.String("runtime-dir", transport.DefaultRuntimeDir(), "directory for named channel sockets")
	portFile := flag.String("port-file", transport.DefaultPortFilePath(), "where to publish the loopback port")
	archive := flag.String("archive", "Sample.big", "archive path the engine accepts")
	listingPath := flag.String("listing", "", "JSON listing served for -archive (built-in sample when empty)")
	steps := flag.Int("steps", 5, "progress events emitted per extraction")
	flag.Parse()

	if err := run(*framing, *channel, *runtimeDir, *portFile, *archive, *listingPath, *steps); err != nil {
		fmt.Fprintf(os.Stderr, "mockengine: %v\n", err)
		os.Exit(1)
	}
}

func run(framing, channel, runtimeDir, portFile, archive, listingPath string, steps int) error {
	mode, err := frame.ParseMode(framing)
	if err != nil {
		return err
	}
	listing := json.RawMessage(sampleListing)
	if listingPath != "" {
		b, err := os.ReadFile(listingPath)
		if err != nil {
			return err
		}
		if !json.Valid(b) {
			return fmt.Errorf("listing %s is not valid JSON", listingPath)
		}
		listing = b
	}

	e := enginestub.New(mode)
	e.Archives[archive] = listing
	for i := 1; i <= steps; i++ {
		e.Progress = append(e.Progress, progress.Event{
			Kind:     progress.Step,
			Current:  i,
			Max:      steps,
			Filename: fmt.Sprintf("file-%03d.bin", i),
		})
	}

	ep := transport.LoopbackSocket(0)
	if channel != "" {
		ep = transport.NamedChannel(channel)
	}
	ln, err := enginestub.Listen(ep, runtimeDir)
	if err != nil {
		return err
	}
	defer ln.Close()

	if ep.Kind == transport.EndpointLoopback {
		pf := transport.PortFile{Path: portFile}
		port, err := enginestub.Publish(pf, ln)
		if err != nil {
			return err
		}
		log.Info().Int("port", port).Str("port_file", portFile).Msg("mockengine published port")
	} else {
		log.Info().Str("addr", ln.Addr().String()).Msg("mockengine listening")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return e.ServeListener(ctx, ln)
}
