// Package config loads server settings from defaults, an optional yaml
// file, environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "WORKFLOW_"

// Default values.
const (
	DefaultListenAddr     = ":3000"
	DefaultRemoteURL      = "http://localhost:5000"
	DefaultAuthIdentifier = "abc@testmail.com"
	DefaultAuthSecret     = "abc"
	DefaultSessionTTL     = 5 * 24 * time.Hour
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// Config holds every server setting.
type Config struct {
	ListenAddr string `koanf:"listen_addr"`

	// RemoteURL is the base URL of the execution service.
	RemoteURL string `koanf:"remote_url"`
	// RemoteTimeout bounds each call to the execution service. Zero waits
	// as long as the service takes.
	RemoteTimeout time.Duration `koanf:"remote_timeout"`

	// DatabaseURL enables run history and persisted sessions when set.
	DatabaseURL string `koanf:"database_url"`

	AuthIdentifier string        `koanf:"auth_identifier"`
	AuthSecret     string        `koanf:"auth_secret"`
	SessionTTL     time.Duration `koanf:"session_ttl"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	CORSOrigins []string `koanf:"cors_origins"`
}

func defaults() map[string]any {
	return map[string]any{
		"listen_addr":     DefaultListenAddr,
		"remote_url":      DefaultRemoteURL,
		"remote_timeout":  "0s",
		"database_url":    "",
		"auth_identifier": DefaultAuthIdentifier,
		"auth_secret":     DefaultAuthSecret,
		"session_ttl":     DefaultSessionTTL.String(),
		"log_level":       DefaultLogLevel,
		"log_format":      DefaultLogFormat,
		"cors_origins":    []string{"*"},
	}
}

// RegisterFlags adds the server flags to fs. Only flags the user sets
// override lower layers.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "path to a yaml config file")
	fs.String("listen-addr", DefaultListenAddr, "address the HTTP API listens on")
	fs.String("remote-url", DefaultRemoteURL, "base URL of the execution service")
	fs.Duration("remote-timeout", 0, "timeout for execution service calls (0 = none)")
	fs.String("database-url", "", "PostgreSQL URL for run history and sessions")
	fs.Duration("session-ttl", DefaultSessionTTL, "how long a login stays valid")
	fs.String("log-level", DefaultLogLevel, "log level: debug, info, warn, error")
	fs.String("log-format", DefaultLogFormat, "log format: text or json")
	fs.StringSlice("cors-origins", []string{"*"}, "allowed CORS origins")
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen_addr is required")
	}
	if !strings.HasPrefix(c.RemoteURL, "http://") && !strings.HasPrefix(c.RemoteURL, "https://") {
		return fmt.Errorf("remote_url must be an http(s) URL, got %q", c.RemoteURL)
	}
	if c.RemoteTimeout < 0 {
		return errors.New("remote_timeout must not be negative")
	}
	if c.SessionTTL <= 0 {
		return errors.New("session_ttl must be positive")
	}
	if c.AuthIdentifier == "" || c.AuthSecret == "" {
		return errors.New("auth_identifier and auth_secret are required")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	if !slices.Contains([]string{"text", "json"}, strings.ToLower(c.LogFormat)) {
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	return nil
}
