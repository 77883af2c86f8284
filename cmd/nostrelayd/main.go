// Command nostrelayd is the relay process: it loads configuration, opens
// the event store, wires the broadcast hub and writer task together, and
// serves WebSocket connections until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nostrelay.dev/broadcast"
	"nostrelay.dev/config"
	"nostrelay.dev/ingest"
	"nostrelay.dev/internal/chk"
	"nostrelay.dev/internal/xlog"
	"nostrelay.dev/nostr"
	"nostrelay.dev/server"
	"nostrelay.dev/store"
)

func main() {
	dbDir := flag.String("db", "", "override the configured data directory")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
	if *dbDir != "" {
		cfg.DataDir = *dbDir
	}
	if _, err = os.Stat(cfg.DataDir); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: data directory %s does not exist: %s\n", cfg.DataDir, err)
		os.Exit(1)
	}

	xlog.SetLevel(cfg.LogLevel)
	xlog.I.F("starting nostrelayd %s", cfg.InfoVersion)

	s, err := store.Open(cfg.DataDir)
	if chk.E(err) {
		os.Exit(1)
	}

	hub := broadcast.New(cfg.BroadcastBuffer)
	ingestCh := make(chan *nostr.Event, cfg.EventPersistBuf)
	writer := ingest.New(s, hub, cfg.MessagesPerSec)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	writerDone := make(chan struct{})
	go func() {
		writer.Run(ctx, ingestCh)
		close(writerDone)
	}()

	srv := server.New(cfg, hub, ingestCh, s.Path())
	if err = srv.Start(ctx); chk.E(err) {
		os.Exit(1)
	}
	<-writerDone
	xlog.I.Ln("nostrelayd exited")
}
