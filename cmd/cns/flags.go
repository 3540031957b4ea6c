package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath  string
	BindIP      string
	Port        int
	MetricsAddr string
	LogLevel    string
	LogFormat   string
	Debug       bool
	ShowVersion bool
	ShowHelp    bool
	Validate    bool

	// Set flags record which overrides were given explicitly so the
	// config file keeps its values otherwise.
	BindIPSet      bool
	PortSet        bool
	MetricsAddrSet bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("SENSORNET_CONFIG", ""),
		"Path to configuration file, empty for defaults (env: SENSORNET_CONFIG)")

	flag.StringVar(&cfg.BindIP, "ip",
		getEnv("SENSORNET_REGISTRY_IP", ""),
		"IP address to bind the reply socket to (env: SENSORNET_REGISTRY_IP)")

	flag.IntVar(&cfg.Port, "port",
		getEnvInt("SENSORNET_REGISTRY_PORT", 0),
		"Port to bind the reply socket to (env: SENSORNET_REGISTRY_PORT)")

	flag.StringVar(&cfg.MetricsAddr, "metrics-addr",
		getEnv("SENSORNET_METRICS_ADDR", ""),
		"Address for the Prometheus endpoint, empty to disable (env: SENSORNET_METRICS_ADDR)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("SENSORNET_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: SENSORNET_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("SENSORNET_LOG_FORMAT", "text"),
		"Log format: json, text (env: SENSORNET_LOG_FORMAT)")

	flag.BoolVar(&cfg.Debug, "debug",
		getEnvBool("SENSORNET_DEBUG", false),
		"Enable debug logging (env: SENSORNET_DEBUG)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printDetailedHelp

	flag.Parse()

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ip":
			cfg.BindIPSet = true
		case "port":
			cfg.PortSet = true
		case "metrics-addr":
			cfg.MetricsAddrSet = true
		}
	})
	if cfg.BindIP != "" {
		cfg.BindIPSet = true
	}
	if cfg.Port != 0 {
		cfg.PortSet = true
	}
	if cfg.MetricsAddr != "" {
		cfg.MetricsAddrSet = true
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Central Name Server for sensor networks

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run on the default endpoint (127.0.0.1:5555)
  %s

  # Bind to all interfaces with metrics
  %s --ip=0.0.0.0 --port=5555 --metrics-addr=:9090

  # Run from a config file with debug logging
  %s --config=/etc/sensornet/cns.json --debug

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
