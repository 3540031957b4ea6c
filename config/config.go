// Package config loads and validates JSON configuration for sensornet
// processes: the registry daemon and each node. Zero-valued fields take
// defaults, so a minimal config file (or none at all) is enough to run on
// loopback. Environment variables override file values for the settings that
// differ between deployments.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/c360/sensornet/errors"
	"github.com/c360/sensornet/protocol"
)

// Defaults shared by registry and node configuration.
const (
	DefaultRegistryIP   = "127.0.0.1"
	DefaultRegistryPort = 5555

	DefaultHeartbeatIntervalMS   = 1000
	DefaultLookupRetryIntervalMS = 1000
	DefaultRequestTimeoutMS      = 5000
	DefaultSubscriberHWM         = 10
)

// RegistryConfig configures the Central Name Server process.
type RegistryConfig struct {
	BindIP      string `json:"bind_ip"`
	Port        int    `json:"port"`
	MetricsAddr string `json:"metrics_addr,omitempty"` // empty disables the metrics endpoint
	LogLevel    string `json:"log_level,omitempty"`
}

// DefaultRegistryConfig returns the loopback defaults.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		BindIP:   DefaultRegistryIP,
		Port:     DefaultRegistryPort,
		LogLevel: "info",
	}
}

// ApplyDefaults fills zero-valued fields with defaults.
func (c *RegistryConfig) ApplyDefaults() {
	if c.BindIP == "" {
		c.BindIP = DefaultRegistryIP
	}
	if c.Port == 0 {
		c.Port = DefaultRegistryPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the configuration for use.
func (c *RegistryConfig) Validate() error {
	if net.ParseIP(c.BindIP) == nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: bind_ip %q", errors.ErrInvalidConfig, c.BindIP),
			"RegistryConfig", "Validate", "parse bind_ip")
	}
	if c.Port < 0 || c.Port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: port %d", errors.ErrInvalidConfig, c.Port),
			"RegistryConfig", "Validate", "check port range")
	}
	return nil
}

// NodeConfig configures a node process. Type and IP are required; an empty ID
// is replaced with a generated one at node construction.
type NodeConfig struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	IP   string `json:"ip"`

	RegistryIP   string `json:"registry_ip"`
	RegistryPort int    `json:"registry_port"`

	HeartbeatIntervalMS   int `json:"heartbeat_interval_ms,omitempty"`
	LookupRetryIntervalMS int `json:"lookup_retry_interval_ms,omitempty"`
	RequestTimeoutMS      int `json:"request_timeout_ms,omitempty"`
	SubscriberHWM         int `json:"subscriber_hwm,omitempty"`

	LogLevel string `json:"log_level,omitempty"`
}

// DefaultNodeConfig returns a loopback node config for the given node type.
func DefaultNodeConfig(nodeType string) NodeConfig {
	cfg := NodeConfig{Type: nodeType, IP: "127.0.0.1"}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with defaults.
func (c *NodeConfig) ApplyDefaults() {
	if c.IP == "" {
		c.IP = "127.0.0.1"
	}
	if c.RegistryIP == "" {
		c.RegistryIP = DefaultRegistryIP
	}
	if c.RegistryPort == 0 {
		c.RegistryPort = DefaultRegistryPort
	}
	if c.HeartbeatIntervalMS == 0 {
		c.HeartbeatIntervalMS = DefaultHeartbeatIntervalMS
	}
	if c.LookupRetryIntervalMS == 0 {
		c.LookupRetryIntervalMS = DefaultLookupRetryIntervalMS
	}
	if c.RequestTimeoutMS == 0 {
		c.RequestTimeoutMS = DefaultRequestTimeoutMS
	}
	if c.SubscriberHWM == 0 {
		c.SubscriberHWM = DefaultSubscriberHWM
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the configuration for use.
func (c *NodeConfig) Validate() error {
	if c.Type == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: type", errors.ErrMissingConfig),
			"NodeConfig", "Validate", "check node type")
	}
	if net.ParseIP(c.IP) == nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: ip %q", errors.ErrInvalidConfig, c.IP),
			"NodeConfig", "Validate", "parse ip")
	}
	if net.ParseIP(c.RegistryIP) == nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: registry_ip %q", errors.ErrInvalidConfig, c.RegistryIP),
			"NodeConfig", "Validate", "parse registry_ip")
	}
	if c.RegistryPort <= 0 || c.RegistryPort > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: registry_port %d", errors.ErrInvalidConfig, c.RegistryPort),
			"NodeConfig", "Validate", "check registry_port range")
	}
	if c.HeartbeatIntervalMS < 0 || c.LookupRetryIntervalMS < 0 ||
		c.RequestTimeoutMS < 0 || c.SubscriberHWM < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: negative interval", errors.ErrInvalidConfig),
			"NodeConfig", "Validate", "check intervals")
	}
	return nil
}

// Registry returns the registry endpoint the node connects to.
func (c NodeConfig) Registry() protocol.Endpoint {
	return protocol.Endpoint{IP: c.RegistryIP, Port: c.RegistryPort}
}

// HeartbeatInterval returns the heartbeat period.
func (c NodeConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

// LookupRetryInterval returns the subscriber resolution retry period.
func (c NodeConfig) LookupRetryInterval() time.Duration {
	return time.Duration(c.LookupRetryIntervalMS) * time.Millisecond
}

// RequestTimeout returns the overall per-request deadline for registry calls.
func (c NodeConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// LoadRegistryConfig reads, defaults, and validates a registry config file.
// An empty path yields the defaults.
func LoadRegistryConfig(path string) (RegistryConfig, error) {
	cfg := RegistryConfig{}
	if path != "" {
		if err := loadJSON(path, &cfg); err != nil {
			return RegistryConfig{}, err
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return RegistryConfig{}, err
	}
	return cfg, nil
}

// LoadNodeConfig reads, defaults, and validates a node config file.
// An empty path yields the defaults for the given node type.
func LoadNodeConfig(path, nodeType string) (NodeConfig, error) {
	cfg := NodeConfig{Type: nodeType}
	if path != "" {
		if err := loadJSON(path, &cfg); err != nil {
			return NodeConfig{}, err
		}
		if cfg.Type == "" {
			cfg.Type = nodeType
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapFatal(err, "config", "loadJSON", "read config file")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.WrapInvalid(err, "config", "loadJSON", "parse config file")
	}
	return nil
}

// ApplyEnv overrides registry connection settings from the environment:
// SENSORNET_REGISTRY_IP and SENSORNET_REGISTRY_PORT.
func (c *NodeConfig) ApplyEnv() error {
	if v := os.Getenv("SENSORNET_REGISTRY_IP"); v != "" {
		c.RegistryIP = v
	}
	if v := os.Getenv("SENSORNET_REGISTRY_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.WrapInvalid(err, "NodeConfig", "ApplyEnv", "parse SENSORNET_REGISTRY_PORT")
		}
		c.RegistryPort = port
	}
	return nil
}
