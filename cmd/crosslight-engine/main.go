package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/crosslight-io/crosslight/engine/internal/actuator"
	"github.com/crosslight-io/crosslight/engine/internal/arbiter"
	"github.com/crosslight-io/crosslight/engine/internal/config"
	"github.com/crosslight-io/crosslight/engine/internal/detect"
	"github.com/crosslight-io/crosslight/engine/internal/journal"
	"github.com/crosslight-io/crosslight/engine/internal/road"
	"github.com/crosslight-io/crosslight/engine/internal/sequencer"
	"github.com/crosslight-io/crosslight/engine/internal/server"
	"github.com/crosslight-io/crosslight/engine/internal/session"
	"github.com/crosslight-io/crosslight/engine/internal/telemetry"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("crosslight-engine %s\n", version)
		os.Exit(0)
	}

	// Parse flags
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	configPath := flag.String("config", "", "path to JSON config file (defaults apply when empty)")
	journalPath := flag.String("journal", "", "path to the SQLite event journal (disabled when empty)")
	journalMax := flag.Int("journal-max", 10000, "maximum journal rows before pruning")
	telemetryAddr := flag.String("telemetry", "", "TCP listen address for telemetry subscribers (disabled when empty)")
	actuatorKind := flag.String("actuator", "sim", "actuator backend: sim or line")
	serialPath := flag.String("serial", "", "device path for the line actuator")
	detectEndpoint := flag.String("detect-endpoint", "", "vehicle detection model endpoint (feeds disabled when empty)")
	detectKey := flag.String("detect-key", "", "API key for the detection endpoint")
	framesDir := flag.String("frames-dir", "", "directory holding road<N>.jpg camera frames")
	detectInterval := flag.Duration("detect-interval", time.Second, "sampling interval per camera feed")
	flag.Parse()

	// Configure logger
	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "invalid log level: %s\n", *logLevel)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Load config; a bad config refuses to start.
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Error("configuration error", "err", err)
			os.Exit(1)
		}
	}

	// Core wiring: store -> arbiter -> sequencer -> session controller.
	store := road.NewStore(cfg.NumRoads)
	arb := arbiter.New(cfg)
	seq := sequencer.New(cfg, store, arb, logger)
	ctrl := session.NewController(cfg, store, seq, logger)

	srv := server.New(os.Stdin, os.Stdout, logger)
	server.RegisterBuiltinHandlers(srv, ctrl)
	seq.AddObserver(srv)

	// Actuation backend.
	var act actuator.Actuator
	switch *actuatorKind {
	case "sim":
		act = actuator.NewSimActuator()
	case "line":
		if *serialPath == "" {
			logger.Error("line actuator requires -serial")
			os.Exit(1)
		}
		dev, err := os.OpenFile(*serialPath, os.O_RDWR, 0)
		if err != nil {
			logger.Error("open serial device", "path", *serialPath, "err", err)
			os.Exit(1)
		}
		defer dev.Close()
		line := actuator.NewLineActuator(dev)
		retrying, err := actuator.NewRetryingActuator(line, actuator.DefaultRetryConfig)
		if err != nil {
			logger.Error("actuator setup", "err", err)
			os.Exit(1)
		}
		act = retrying
	default:
		logger.Error("unknown actuator backend", "actuator", *actuatorKind)
		os.Exit(1)
	}
	seq.AddObserver(actuator.NewBridge(cfg.NumRoads, act, logger, srv.Notify))

	// Handle signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Optional audit journal.
	if *journalPath != "" {
		jr, err := journal.Open(*journalPath, *journalMax)
		if err != nil {
			logger.Error("open journal", "path", *journalPath, "err", err)
			os.Exit(1)
		}
		defer jr.Close()
		seq.AddObserver(journal.NewRecorder(jr, logger))
	}

	// Optional telemetry fan-out.
	if *telemetryAddr != "" {
		bc := telemetry.NewBroadcaster(logger)
		addr, err := bc.Listen(*telemetryAddr)
		if err != nil {
			logger.Error("telemetry listen", "addr", *telemetryAddr, "err", err)
			os.Exit(1)
		}
		seq.AddObserver(bc)
		logger.Info("telemetry listening", "addr", addr.String())
		go func() {
			if err := bc.Serve(ctx); err != nil {
				logger.Error("telemetry listener error", "err", err)
			}
		}()
		defer bc.Close()
	}

	// Optional camera feeds through the external detection model.
	if *detectEndpoint != "" {
		if *detectKey == "" || *framesDir == "" {
			logger.Error("detection feeds require -detect-key and -frames-dir")
			os.Exit(1)
		}
		det, err := detect.NewHTTPDetector(*detectKey, *detectEndpoint)
		if err != nil {
			logger.Error("detector setup", "err", err)
			os.Exit(1)
		}
		limited, err := detect.NewRateLimitedDetector(det, detect.DefaultLimiterConfig)
		if err != nil {
			logger.Error("detector limiter setup", "err", err)
			os.Exit(1)
		}
		for i := 1; i <= cfg.NumRoads; i++ {
			src := detect.NewFileSource(filepath.Join(*framesDir, fmt.Sprintf("road%d.jpg", i)))
			feed := detect.NewFeed(i, src, limited, ctrl, *detectInterval, logger)
			go func() {
				if err := feed.Run(ctx); err != nil {
					logger.Error("camera feed error", "err", err)
				}
			}()
		}
		logger.Info("detection feeds running", "roads", cfg.NumRoads, "interval", detectInterval.String())
	}

	go func() {
		if err := ctrl.Run(ctx); err != nil {
			logger.Error("session loop error", "err", err)
		}
	}()

	logger.Info("engine starting", "version", version, "roads", cfg.NumRoads)
	if err := srv.Run(ctx); err != nil {
		logger.Error("engine error", "err", err)
		os.Exit(1)
	}
	logger.Info("engine shutdown complete")
}
