package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.ListenAddr)
	assert.Equal(t, "http://localhost:5000", cfg.RemoteURL)
	assert.Zero(t, cfg.RemoteTimeout)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "abc@testmail.com", cfg.AuthIdentifier)
	assert.Equal(t, "abc", cfg.AuthSecret)
	assert.Equal(t, 120*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":8080"
remote_url: "http://file:5000"
remote_timeout: 30s
log_level: debug
cors_origins:
  - http://localhost:5173
`)
	t.Setenv("DATABASE_URL", "postgres://plain")
	t.Setenv("WORKFLOW_REMOTE_URL", "http://env:5000")
	t.Setenv("WORKFLOW_LOG_FORMAT", "json")

	cfg, err := Load(path, newFlags(t, "--log-level", "warn"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr, "file over defaults")
	assert.Equal(t, 30*time.Second, cfg.RemoteTimeout)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, "http://env:5000", cfg.RemoteURL, "env over file")
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "postgres://plain", cfg.DatabaseURL)
	assert.Equal(t, "warn", cfg.LogLevel, "flags over file")
}

func TestLoad_DatabaseURLPrecedence(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://plain")
	t.Setenv("WORKFLOW_DATABASE_URL", "postgres://prefixed")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://prefixed", cfg.DatabaseURL)

	cfg, err = Load("", newFlags(t, "--database-url", "postgres://flag"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag", cfg.DatabaseURL)
}

func TestLoad_EnvList(t *testing.T) {
	t.Setenv("WORKFLOW_CORS_ORIGINS", "http://a.test, http://b.test,")
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestLoad_UnsetFlagsDoNotOverride(t *testing.T) {
	t.Setenv("WORKFLOW_LISTEN_ADDR", ":9000")
	cfg, err := Load("", newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr)
}

func TestLoad_ConfigFlag(t *testing.T) {
	path := writeConfig(t, "session_ttl: 1h\n")
	cfg, err := Load("", newFlags(t, "-c", path))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		file      string
		errSubstr string
	}{
		{name: "missing file", file: "/nonexistent/workflow.yaml", errSubstr: "error reading config file"},
		{name: "bad remote url", env: map[string]string{"WORKFLOW_REMOTE_URL": "localhost:5000"}, errSubstr: "remote_url"},
		{name: "bad log level", env: map[string]string{"WORKFLOW_LOG_LEVEL": "loud"}, errSubstr: "log_level"},
		{name: "bad log format", env: map[string]string{"WORKFLOW_LOG_FORMAT": "xml"}, errSubstr: "log_format"},
		{name: "zero ttl", env: map[string]string{"WORKFLOW_SESSION_TTL": "0s"}, errSubstr: "session_ttl"},
		{name: "unparsable duration", env: map[string]string{"WORKFLOW_REMOTE_TIMEOUT": "soon"}, errSubstr: "unable to decode config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.file, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}
