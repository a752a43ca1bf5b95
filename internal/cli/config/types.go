// Package config loads the bot's configuration.
//
// Values are layered, lowest to highest precedence: built-in defaults, the
// YAML config file, environment variables, then flags set on the command
// line.
package config

import (
	"maps"
	"time"
)

// Config holds all CLI configuration options.
type Config struct {
	StatePath    string         `koanf:"state_path"`
	Verbose      bool           `koanf:"verbose"`
	OutputFormat string         `koanf:"output"`
	LogFormat    string         `koanf:"log_format"`
	Metadata     MetadataConfig `koanf:"metadata"`
	Storage      StorageConfig  `koanf:"storage"`
	Slack        SlackConfig    `koanf:"slack"`
	Server       ServerConfig   `koanf:"server"`
}

// MetadataConfig points at the Metaflow metadata service.
type MetadataConfig struct {
	URL        string        `koanf:"url"`
	AuthKey    string        `koanf:"auth_key"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
}

// StorageConfig configures object storage access.
type StorageConfig struct {
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"`
	PathStyle bool   `koanf:"path_style"`
	MaxSizeMB int64  `koanf:"max_size_mb"`
	// Root resolves relative file:// locations.
	Root string `koanf:"root"`
}

// MaxSizeBytes returns the download size limit in bytes.
func (s StorageConfig) MaxSizeBytes() int64 {
	return s.MaxSizeMB << 20
}

// SlackConfig holds Slack credentials.
type SlackConfig struct {
	Token         string `koanf:"token"`
	SigningSecret string `koanf:"signing_secret"`
	APIURL        string `koanf:"api_url"`
}

// ServerConfig configures the slash-command server.
type ServerConfig struct {
	Addr           string        `koanf:"addr"`
	Workers        int           `koanf:"workers"`
	CommandTimeout time.Duration `koanf:"command_timeout"`
	// RateLimit is slash commands per second per user. Zero disables it.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// Default configuration values.
const (
	DefaultStateFile      = ".mfbot/state.db"
	DefaultOutput         = "auto" // TTY=text, otherwise markdown
	DefaultLogFormat      = "text"
	DefaultMetadataURL    = "http://localhost:8080"
	DefaultTimeout        = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultRegion         = "us-east-1"
	DefaultMaxSizeMB      = 1000
	DefaultAddr           = ":3000"
	DefaultWorkers        = 4
	DefaultCommandTimeout = 10 * time.Minute
	DefaultRateLimit      = 0.2
	DefaultRateBurst      = 3
)

// Native environment variables honoured alongside the MFBOT_ prefix.
var nativeEnv = map[string]string{
	"METAFLOW_SERVICE_URL":      "metadata.url",
	"METAFLOW_SERVICE_AUTH_KEY": "metadata.auth_key",
	"SLACK_BOT_TOKEN":           "slack.token",
	"SLACK_SIGNING_SECRET":      "slack.signing_secret",
	"AWS_REGION":                "storage.region",
}

// NativeEnv returns the conventional environment variables read besides
// MFBOT_*, mapped to the config key they set.
func NativeEnv() map[string]string {
	return maps.Clone(nativeEnv)
}
