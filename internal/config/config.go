package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file configuration
const (
	EnvServerURL        = "STREAM_SERVER_URL"
	EnvChunkSize        = "STREAM_CHUNK_SIZE"
	EnvTargetSampleRate = "STREAM_TARGET_SAMPLE_RATE"
	EnvReconnectDelay   = "STREAM_RECONNECT_DELAY"
	EnvLogLevel         = "STREAM_LOG_LEVEL"
	EnvMetricsAddr      = "STREAM_METRICS_ADDR"
)

// Config represents the complete client configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Audio   AudioConfig   `yaml:"audio"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig contains the transcription service connection settings
type ServerConfig struct {
	URL              string        `yaml:"url"`
	ReconnectDelay   time.Duration `yaml:"reconnect_delay"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// Used by the reference receiver
	ListenAddress string `yaml:"listen_address"`
	SentenceEvery int    `yaml:"sentence_every"`
}

// AudioConfig contains capture and framing parameters
type AudioConfig struct {
	ChunkSize        int `yaml:"chunk_size"`         // samples per frame
	TargetSampleRate int `yaml:"target_sample_rate"` // Hz, microphone only
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig contains the Prometheus endpoint; an empty address disables it
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:              "ws://localhost:8989",
			ReconnectDelay:   2000 * time.Millisecond,
			WriteTimeout:     5 * time.Second,
			HandshakeTimeout: 10 * time.Second,
			ListenAddress:    ":8989",
			SentenceEvery:    8,
		},
		Audio: AudioConfig{
			ChunkSize:        2048,
			TargetSampleRate: 16000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load builds the configuration from the defaults, the YAML file at path
// (optional), the .env files (optional, missing files are skipped) and the
// process environment, in that order.
func Load(path string, envFiles ...string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// loadEnvFiles loads .env style files into the environment without
// overriding variables that are already set
func loadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from environment variables read through getenv
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvServerURL); v != "" {
		c.Server.URL = v
	}
	if v := getenv(EnvChunkSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvChunkSize, err)
		}
		c.Audio.ChunkSize = n
	}
	if v := getenv(EnvTargetSampleRate); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTargetSampleRate, err)
		}
		c.Audio.TargetSampleRate = n
	}
	if v := getenv(EnvReconnectDelay); v != "" {
		d, err := ParseDelay(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvReconnectDelay, err)
		}
		c.Server.ReconnectDelay = d
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := getenv(EnvMetricsAddr); v != "" {
		c.Metrics.Address = v
	}
	return nil
}

// ParseDelay accepts a Go duration ("2s") or a bare number of milliseconds
func ParseDelay(s string) (time.Duration, error) {
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("url is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("url must use ws or wss, got %q", s.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("url must include a host, got %q", s.URL)
	}

	if s.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect_delay must be positive, got %s", s.ReconnectDelay)
	}

	if s.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive, got %s", s.WriteTimeout)
	}

	if s.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake_timeout must be positive, got %s", s.HandshakeTimeout)
	}

	if s.SentenceEvery < 1 {
		return fmt.Errorf("sentence_every must be at least 1, got %d", s.SentenceEvery)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be at least 1 sample, got %d", a.ChunkSize)
	}

	if a.TargetSampleRate < 1 {
		return fmt.Errorf("target_sample_rate must be positive, got %d", a.TargetSampleRate)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error, got %q", l.Level)
	}

	switch l.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be text or json, got %q", l.Format)
	}

	return nil
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if m.Address == "" {
		return nil
	}
	if !strings.Contains(m.Address, ":") {
		return fmt.Errorf("address must be host:port or :port, got %q", m.Address)
	}
	return nil
}
