package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the optional YAML/TOML overlay file.
const ConfigFileEnv = "SONOS_CONTROL_CONFIG"

// Config holds the process configuration.
type Config struct {
	Host      string `yaml:"host" toml:"host"`
	Port      string `yaml:"port" toml:"port"`
	LogLevel  string `yaml:"log_level" toml:"log_level"`
	LogFormat string `yaml:"log_format" toml:"log_format"`

	SSDPListenWindowMs int `yaml:"ssdp_listen_window_ms" toml:"ssdp_listen_window_ms"`
	SSDPReadTimeoutMs  int `yaml:"ssdp_read_timeout_ms" toml:"ssdp_read_timeout_ms"`
	SSDPMulticastTTL   int `yaml:"ssdp_multicast_ttl" toml:"ssdp_multicast_ttl"`
	SSDPReadBuffer     int `yaml:"ssdp_read_buffer" toml:"ssdp_read_buffer"`
	SSDPMX             int `yaml:"ssdp_mx" toml:"ssdp_mx"`

	// mDNS is a supplemental source; SSDP stays authoritative.
	MDNSDiscoveryEnabled bool `yaml:"mdns_discovery_enabled" toml:"mdns_discovery_enabled"`
	MDNSBrowseMs         int  `yaml:"mdns_browse_ms" toml:"mdns_browse_ms"`

	StaticDeviceLocations []string `yaml:"static_device_locations" toml:"static_device_locations"`

	SonosTimeoutMs       int    `yaml:"sonos_timeout_ms" toml:"sonos_timeout_ms"`
	DescriptionTimeoutMs int    `yaml:"description_timeout_ms" toml:"description_timeout_ms"`
	ModelPrefix          string `yaml:"model_prefix" toml:"model_prefix"`
	PlaybackSettleMs     int    `yaml:"playback_settle_ms" toml:"playback_settle_ms"`

	// TopologyConcurrency caps in-flight device calls during a topology pass.
	TopologyConcurrency int `yaml:"topology_concurrency" toml:"topology_concurrency"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Host:                  "0.0.0.0",
		Port:                  "5000",
		LogLevel:              "info",
		LogFormat:             "text",
		SSDPListenWindowMs:    1000,
		SSDPReadTimeoutMs:     3000,
		SSDPMulticastTTL:      2,
		SSDPReadBuffer:        65536,
		SSDPMX:                3,
		MDNSDiscoveryEnabled:  false,
		MDNSBrowseMs:          1000,
		StaticDeviceLocations: []string{},
		SonosTimeoutMs:        5000,
		DescriptionTimeoutMs:  5000,
		ModelPrefix:           "Sonos",
		PlaybackSettleMs:      500,
		TopologyConcurrency:   16,
	}
}

// Load builds the configuration from defaults, the optional overlay file
// and environment variables, in that order of precedence.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Host = envString("HOST", cfg.Host)
	cfg.Port = envString("PORT", cfg.Port)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envString("LOG_FORMAT", cfg.LogFormat)
	cfg.SSDPListenWindowMs = envInt("SSDP_LISTEN_WINDOW_MS", cfg.SSDPListenWindowMs)
	cfg.SSDPReadTimeoutMs = envInt("SSDP_READ_TIMEOUT_MS", cfg.SSDPReadTimeoutMs)
	cfg.SSDPMulticastTTL = envInt("SSDP_MULTICAST_TTL", cfg.SSDPMulticastTTL)
	cfg.SSDPReadBuffer = envInt("SSDP_READ_BUFFER", cfg.SSDPReadBuffer)
	cfg.SSDPMX = envInt("SSDP_MX", cfg.SSDPMX)
	cfg.MDNSDiscoveryEnabled = envBool("MDNS_DISCOVERY_ENABLED", cfg.MDNSDiscoveryEnabled)
	cfg.MDNSBrowseMs = envInt("MDNS_BROWSE_MS", cfg.MDNSBrowseMs)
	if static := envCSV("STATIC_DEVICE_LOCATIONS"); len(static) > 0 {
		cfg.StaticDeviceLocations = static
	}
	cfg.SonosTimeoutMs = envInt("SONOS_TIMEOUT_MS", cfg.SonosTimeoutMs)
	cfg.DescriptionTimeoutMs = envInt("DESCRIPTION_TIMEOUT_MS", cfg.DescriptionTimeoutMs)
	cfg.ModelPrefix = envString("MODEL_PREFIX", cfg.ModelPrefix)
	cfg.PlaybackSettleMs = envInt("PLAYBACK_SETTLE_MS", cfg.PlaybackSettleMs)
	cfg.TopologyConcurrency = envInt("TOPOLOGY_CONCURRENCY", cfg.TopologyConcurrency)

	cfg.normalize()
	return cfg, nil
}

// normalize replaces unusable values with defaults.
func (cfg *Config) normalize() {
	def := Default()
	positive := func(value *int, fallback int) {
		if *value <= 0 {
			*value = fallback
		}
	}
	positive(&cfg.SSDPListenWindowMs, def.SSDPListenWindowMs)
	positive(&cfg.SSDPReadTimeoutMs, def.SSDPReadTimeoutMs)
	positive(&cfg.SSDPReadBuffer, def.SSDPReadBuffer)
	positive(&cfg.SSDPMX, def.SSDPMX)
	positive(&cfg.MDNSBrowseMs, def.MDNSBrowseMs)
	positive(&cfg.SonosTimeoutMs, def.SonosTimeoutMs)
	positive(&cfg.DescriptionTimeoutMs, def.DescriptionTimeoutMs)
	positive(&cfg.TopologyConcurrency, def.TopologyConcurrency)

	// zero is a valid settle delay
	if cfg.PlaybackSettleMs < 0 {
		cfg.PlaybackSettleMs = def.PlaybackSettleMs
	}

	switch {
	case cfg.SSDPMulticastTTL < 1:
		cfg.SSDPMulticastTTL = 1
	case cfg.SSDPMulticastTTL > 255:
		cfg.SSDPMulticastTTL = 255
	}

	if strings.TrimSpace(cfg.ModelPrefix) == "" {
		cfg.ModelPrefix = def.ModelPrefix
	}
	if cfg.StaticDeviceLocations == nil {
		cfg.StaticDeviceLocations = []string{}
	}
}

// SSDPListenWindow is the wall-clock cap on collecting SSDP responses.
func (cfg Config) SSDPListenWindow() time.Duration {
	return time.Duration(cfg.SSDPListenWindowMs) * time.Millisecond
}

// SSDPReadTimeout is the per-read socket timeout.
func (cfg Config) SSDPReadTimeout() time.Duration {
	return time.Duration(cfg.SSDPReadTimeoutMs) * time.Millisecond
}

func (cfg Config) MDNSBrowseWindow() time.Duration {
	return time.Duration(cfg.MDNSBrowseMs) * time.Millisecond
}

// SonosTimeout bounds a single RPC call.
func (cfg Config) SonosTimeout() time.Duration {
	return time.Duration(cfg.SonosTimeoutMs) * time.Millisecond
}

func (cfg Config) DescriptionTimeout() time.Duration {
	return time.Duration(cfg.DescriptionTimeoutMs) * time.Millisecond
}

func (cfg Config) PlaybackSettle() time.Duration {
	return time.Duration(cfg.PlaybackSettleMs) * time.Millisecond
}

func loadFile(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(content, cfg); err != nil {
			return fmt.Errorf("parse toml config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension: %s", path)
	}
	return nil
}

func envString(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return strings.EqualFold(val, "true") || val == "1"
}

func envCSV(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return []string{}
	}
	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}
