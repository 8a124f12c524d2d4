package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/nftwatch/opensea-stream/internal/codec"
	"github.com/nftwatch/opensea-stream/internal/config"
	"github.com/nftwatch/opensea-stream/internal/database"
	"github.com/nftwatch/opensea-stream/internal/event"
	"github.com/nftwatch/opensea-stream/internal/recorder"
	"github.com/nftwatch/opensea-stream/internal/stream"
	"github.com/nftwatch/opensea-stream/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/watcher.local.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Load .env for local development; absence is not an error.
	_ = godotenv.Load()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting watcher",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"network", cfg.Stream.Network,
		"collections", len(cfg.Collections),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Set up the event recorder when enabled
	var rec *recorder.Recorder
	if cfg.Recorder.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		logger.Info("database connected")

		rec = recorder.New(recorder.Config{
			BatchSize:     cfg.Recorder.BatchSize,
			FlushInterval: cfg.Recorder.FlushInterval,
			BufferSize:    cfg.Recorder.BufferSize,
		}, pool, logger)
		if err := rec.Start(ctx); err != nil {
			logger.Error("failed to start recorder", "error", err)
			os.Exit(1)
		}
	}

	// Create the stream manager
	mgr := stream.NewManager(stream.Config{
		Network:            stream.Network(cfg.Stream.Network),
		APIKey:             cfg.Stream.APIKey,
		URL:                cfg.Stream.URL,
		HandshakeTimeout:   cfg.Stream.HandshakeTimeout,
		AuthTimeout:        cfg.Stream.AuthTimeout,
		WriteTimeout:       cfg.Stream.WriteTimeout,
		HeartbeatInterval:  cfg.Stream.HeartbeatInterval,
		StaleTimeout:       cfg.Stream.StaleTimeout,
		ReconnectBaseWait:  cfg.Stream.ReconnectBaseWait,
		ReconnectMaxWait:   cfg.Stream.ReconnectMaxWait,
		StabilityThreshold: cfg.Stream.StabilityThreshold,
	}, logger)

	go func() {
		<-ctx.Done()
		mgr.Shutdown()
	}()

	handler := makeHandler(logger, rec)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return mgr.Run(gctx)
	})

	g.Go(func() error {
		for _, slug := range cfg.Collections {
			topic := codec.CollectionTopic(slug)
			id, err := mgr.Subscribe(topic, handler)
			if err != nil {
				return fmt.Errorf("subscribe %s: %w", topic, err)
			}
			logger.Info("subscribed", "topic", topic, "subscription_id", id)
		}
		return nil
	})

	err = g.Wait()

	// Drain the recorder before reporting the exit
	if rec != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		rec.Stop(stopCtx)

		stats := rec.Stats()
		logger.Info("recorder drained",
			"inserts", stats.Inserts,
			"errors", stats.Errors,
			"dropped", stats.Dropped,
		)
	}

	if err != nil && !errors.Is(err, stream.ErrClientClosed) {
		logger.Error("watcher exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("watcher stopped")
}

// makeHandler builds the per-topic event handler: log a summary line, and
// forward to the recorder when one is configured.
func makeHandler(logger *slog.Logger, rec *recorder.Recorder) stream.Handler {
	var record stream.Handler
	if rec != nil {
		record = rec.Handler()
	}

	return func(topic codec.Topic, ev event.StreamEvent) {
		logger.Info("stream event",
			"topic", topic,
			"event_type", ev.WireKind,
			"sent_at", ev.SentAt,
		)
		if record != nil {
			record(topic, ev)
		}
	}
}
