// Package main implements framegen, a synthetic frame source. It
// registers a data channel with the Central Name Server and publishes
// test-pattern frames at a fixed rate, which makes it useful for
// exercising subscribers without real sensor hardware.
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
	"github.com/c360/sensornet/frame"
	"github.com/c360/sensornet/node"
)

func main() {
	if err := run(); err != nil {
		slog.Error("framegen failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath   = flag.String("config", os.Getenv("SENSORNET_CONFIG"), "Path to node configuration file, empty for defaults (env: SENSORNET_CONFIG)")
		nodeType     = flag.String("type", "framegen", "Node type")
		nodeID       = flag.String("id", "", "Node ID, random when empty")
		nodeIP       = flag.String("ip", "127.0.0.1", "IP address advertised to subscribers")
		registryIP   = flag.String("registry-ip", "127.0.0.1", "Central Name Server IP")
		registryPort = flag.Int("registry-port", 5555, "Central Name Server port")
		channel      = flag.String("channel", "raw", "Data channel name")
		width        = flag.Int("width", 640, "Frame width in pixels")
		height       = flag.Int("height", 480, "Frame height in pixels")
		channels     = flag.Int("channels", 3, "Color channels per pixel")
		bitDepth     = flag.Int("bit-depth", 8, "Bits per channel")
		fps          = flag.Int("fps", 10, "Frames per second")
		debug        = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *fps <= 0 {
		return fmt.Errorf("invalid fps: %d", *fps)
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
		case "ip":
			cfg.IP = *nodeIP
		case "registry-ip":
			cfg.RegistryIP = *registryIP
		case "registry-port":
			cfg.RegistryPort = *registryPort
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

	topic := n.ChannelTopic(*channel)
	pub, err := n.OpenPublisher(ctx, topic)
	if err != nil {
		return fmt.Errorf("open publisher: %w", err)
	}

	meta := frame.Metadata{
		Width:    *width,
		Height:   *height,
		Channels: *channels,
		BitDepth: *bitDepth,
	}
	payload := make([]byte, meta.Size())

	logger.Info("generating frames",
		"topic", topic,
		"endpoint", pub.Endpoint().String(),
		"fps", *fps,
		"frame_bytes", len(payload))

	ticker := time.NewTicker(time.Second / time.Duration(*fps))
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping", "frames_sent", seq)
			return nil
		case <-ticker.C:
		}

		fillPattern(payload, seq)
		meta.SourceTS = time.Now().UnixMilli()
		meta.DeviceTimestamp = meta.SourceTS

		f := frame.Frame{Topic: topic, Meta: meta, Data: payload}
		if err := pub.Publish(f); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("publish failed", "error", err)
			continue
		}
		seq++

		if seq%uint64(*fps) == 0 {
			logger.Debug("frames published", "count", seq)
		}
	}
}

// fillPattern writes a shifting gradient so consecutive frames differ
// and a stuck stream is visible downstream.
func fillPattern(buf []byte, seq uint64) {
	offset := byte(seq)
	for i := range buf {
		buf[i] = byte(i) + offset
	}
}
