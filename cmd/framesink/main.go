// Package main implements framesink, a frame consumer for testing and
// inspection. It resolves a data channel through the Central Name
// Server, waiting for the publisher to appear if needed, drains the
// startup backlog, and logs what arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/c360/sensornet/config"
	"github.com/c360/sensornet/node"
)

func main() {
	if err := run(); err != nil {
		slog.Error("framesink failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath   = flag.String("config", os.Getenv("SENSORNET_CONFIG"), "Path to node configuration file, empty for defaults (env: SENSORNET_CONFIG)")
		topic        = flag.String("topic", "", "Data channel topic to consume (required)")
		nodeType     = flag.String("type", "framesink", "Node type")
		nodeID       = flag.String("id", "", "Node ID, random when empty")
		registryIP   = flag.String("registry-ip", "127.0.0.1", "Central Name Server IP")
		registryPort = flag.Int("registry-port", 5555, "Central Name Server port")
		hwm          = flag.Int("hwm", 10, "Receive high-water mark in frames")
		drainWindow  = flag.Duration("drain", 500*time.Millisecond, "Quiet window ending the startup drain, 0 to skip")
		logEvery     = flag.Int("log-every", 100, "Log a summary every N frames")
		debug        = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *topic == "" {
		return fmt.Errorf("missing required flag: -topic")
	}
	if *logEvery <= 0 {
		return fmt.Errorf("invalid log-every: %d", *logEvery)
	}

	cfg, err := config.LoadNodeConfig(*configPath, *nodeType)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return fmt.Errorf("apply env overrides: %w", err)
	}

	// Flags given explicitly win over the file and the environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "type":
			cfg.Type = *nodeType
		case "id":
			cfg.ID = *nodeID
		case "registry-ip":
			cfg.RegistryIP = *registryIP
		case "registry-port":
			cfg.RegistryPort = *registryPort
		case "hwm":
			cfg.SubscriberHWM = *hwm
		}
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	n, err := node.New(ctx, node.Deps{
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("start node: %w", err)
	}
	defer n.Close()

	logger.Info("resolving data channel", "topic", *topic)
	sub, err := n.OpenSubscriber(ctx, *topic)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("open subscriber: %w", err)
	}

	if *drainWindow > 0 {
		dropped := sub.Drain(ctx, *drainWindow)
		logger.Info("startup backlog drained", "dropped", dropped)
	}

	var count uint64
	for {
		f, err := sub.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("stopping", "frames_received", count)
				return nil
			}
			return fmt.Errorf("receive frame: %w", err)
		}

		count++
		latency := time.Since(time.UnixMilli(f.Meta.SourceTS))
		logger.Debug("frame received",
			"topic", f.Topic,
			"bytes", len(f.Data),
			"latency", latency)

		if count%uint64(*logEvery) == 0 {
			logger.Info("frames received",
				"count", count,
				"width", f.Meta.Width,
				"height", f.Meta.Height,
				"channels", f.Meta.Channels,
				"bit_depth", f.Meta.BitDepth,
				"latency", latency)
		}
	}
}
