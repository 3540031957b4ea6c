// Package main implements the Central Name Server binary. The CNS is
// the single registry every node in a sensor network talks to: nodes
// register the topics they publish, resolve the topics they consume,
// heartbeat their liveness, and share small key/value state through it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/sensornet/config"
	"github.com/c360/sensornet/metric"
	"github.com/c360/sensornet/registry"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "cns"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("cns failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("configuration is valid")
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metricsRegistry := metric.NewRegistry()
	stopMetrics := serveMetrics(cfg.MetricsAddr, metricsRegistry)
	defer stopMetrics()

	srv := registry.NewServer(registry.ServerDeps{
		BindIP:  cfg.BindIP,
		Port:    cfg.Port,
		Logger:  slog.Default(),
		Metrics: metricsRegistry,
	})
	if err := srv.Bind(ctx); err != nil {
		return fmt.Errorf("bind registry: %w", err)
	}
	defer srv.Close()

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	slog.Info("cns running", "bind_ip", cfg.BindIP, "port", srv.Port())

	<-ctx.Done()
	slog.Info("received shutdown signal")
	srv.Close()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("registry loop: %w", err)
		}
	case <-time.After(5 * time.Second):
		slog.Warn("registry loop did not stop in time")
	}

	slog.Info("cns shutdown complete")
	return nil
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("starting cns",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, false, nil
}

// loadConfig merges the config file with flag overrides. Flags that
// were set explicitly win over the file.
func loadConfig(cliCfg *CLIConfig) (config.RegistryConfig, error) {
	cfg, err := config.LoadRegistryConfig(cliCfg.ConfigPath)
	if err != nil {
		return config.RegistryConfig{}, fmt.Errorf("load config: %w", err)
	}

	if cliCfg.BindIPSet {
		cfg.BindIP = cliCfg.BindIP
	}
	if cliCfg.PortSet {
		cfg.Port = cliCfg.Port
	}
	if cliCfg.MetricsAddrSet {
		cfg.MetricsAddr = cliCfg.MetricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return config.RegistryConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// serveMetrics exposes the Prometheus endpoint when an address is
// configured. The returned func stops the listener.
func serveMetrics(addr string, registry *metric.Registry) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry.PrometheusRegistry(), promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics endpoint failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
