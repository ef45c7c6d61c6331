package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"countercraft.ai/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to counters.yaml (optional; COUNTERCRAFT_* env overrides)")
		eventsPath = flag.String("events", "", "event file (.jsonl or .jsonl.zst) or directory of them")
		dryRun     = flag.Bool("dry_run", false, "evaluate against in-memory scores; write nothing")
		strict     = flag.Bool("strict", false, "stop at the first malformed event instead of skipping it")
		snapPath   = flag.String("snapshot", "", "write a rules+scores snapshot here after the run (optional)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[counterd] ", log.LstdFlags|log.Lmicroseconds)

	if *eventsPath == "" {
		fmt.Fprintln(os.Stderr, "missing -events")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	d, err := openDaemon(cfg, *dryRun, logger)
	if err != nil {
		logger.Fatalf("open: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	files, err := eventFiles(*eventsPath)
	if err != nil {
		_ = d.close(context.Background())
		logger.Fatalf("list events: %v", err)
	}
	st, runErr := d.replay(ctx, files, *strict)
	if *snapPath != "" {
		if err := d.writeSnapshot(*snapPath); err != nil {
			logger.Printf("snapshot: %v", err)
		}
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := d.close(closeCtx); err != nil {
		logger.Printf("close: %v", err)
	}

	logger.Printf("files=%d events=%d skipped=%d passed=%d changes=%d", len(files), st.Events, st.Skipped, st.Passed, st.Changes)
	if len(st.Rejected) > 0 {
		logger.Printf("rejected=%v", st.Rejected)
	}
	if runErr != nil && runErr != context.Canceled {
		logger.Fatalf("replay: %v", runErr)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
