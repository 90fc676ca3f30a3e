// Command replayd serves replay verification over HTTP: POST a record
// stream to /replays/verify and watch diagnostics live on /feed.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	replaynet "github.com/hansjm10/Idle-Game-Engine-sub003/internal/net"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/stubs"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/telemetry"
	"github.com/hansjm10/Idle-Game-Engine-sub003/logging"
	"github.com/hansjm10/Idle-Game-Engine-sub003/logging/sinks"
)

type config struct {
	Addr            string        `env:"REPLAYD_ADDR" envDefault:":8080"`
	LogJSONPath     string        `env:"REPLAYD_LOG_JSON_PATH"`
	LogBuffer       int           `env:"REPLAYD_LOG_BUFFER" envDefault:"512"`
	ShutdownTimeout time.Duration `env:"REPLAYD_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxCommands     int           `env:"REPLAYD_MAX_COMMANDS"`
	MaxLines        int           `env:"REPLAYD_MAX_LINES"`
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("replayd: %v", err)
	}
}

func run() error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.BufferSize = cfg.LogBuffer
	namedSinks := []logging.NamedSink{
		{Name: "console", Sink: sinks.NewConsoleSink(os.Stderr, logCfg.Console)},
	}
	if cfg.LogJSONPath != "" {
		file, err := os.OpenFile(cfg.LogJSONPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open json log: %w", err)
		}
		defer file.Close()
		namedSinks = append(namedSinks, logging.NamedSink{
			Name: "json",
			Sink: sinks.NewJSONSink(file, logCfg.JSON.FlushInterval),
		})
	}
	router, err := logging.NewRouter(nil, logCfg, namedSinks)
	if err != nil {
		return fmt.Errorf("start logging router: %w", err)
	}
	defer router.Close(context.Background())

	metrics := logging.NewMetrics()
	logger := telemetry.WrapLogger(log.New(os.Stderr, "replayd ", log.LstdFlags))

	feed := replaynet.NewFeed(replaynet.FeedConfig{
		Logger:  logger,
		Metrics: telemetry.WrapMetrics(metrics),
	})
	feedHandler := replaynet.NewFeedHandler(feed, logger)

	// Diagnostics from verification runs go to the log sinks and to every
	// connected feed observer.
	publisher := logging.PublisherFunc(func(ctx context.Context, event logging.Event) {
		router.Publish(ctx, event)
		feed.Publish(ctx, event)
	})

	pack, err := stubs.Pack()
	if err != nil {
		return fmt.Errorf("load reference pack: %w", err)
	}
	verify := &replaynet.VerifyHandler{
		Pack:      pack,
		Restore:   stubs.Restore,
		Publisher: publisher,
		Logger:    logger,
		Metrics:   telemetry.WrapMetrics(metrics),
	}
	verify.Limits.MaxCommands = cfg.MaxCommands
	verify.Limits.MaxLines = cfg.MaxLines

	mux := http.NewServeMux()
	mux.HandleFunc("/feed", feedHandler.Handle)
	mux.Handle("/replays/verify", verify)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"counters": metrics.TelemetrySnapshot(),
			"router":   router.Stats(),
		})
	})

	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	errs := make(chan error, 1)
	go func() {
		log.Printf("replayd listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errs:
		return err
	case sig := <-stop:
		log.Printf("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(ctx)
}
