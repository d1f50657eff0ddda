package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestLoader(t *testing.T) (*Loader, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	l, err := NewLoader(path)
	require.NoError(t, err)
	return l, path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "http://127.0.0.1:8000/api/chat", cfg.Endpoint)
	assert.Equal(t, "llama3.1", cfg.Model)
	assert.Equal(t, "stream", cfg.Mode)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
	assert.True(t, cfg.Markdown.Enabled)
	assert.Equal(t, "127.0.0.1:8000", cfg.Relay.Addr)
	assert.Equal(t, "http://localhost:11434", cfg.Relay.Upstream)
	assert.NoError(t, cfg.Validate())
}

func TestGetConfigPath(t *testing.T) {
	path, err := GetConfigPath()
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, "config.json", filepath.Base(path))
	assert.Equal(t, ".localchat", filepath.Base(filepath.Dir(path)))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	l, _ := newTestLoader(t)

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	l, path := newTestLoader(t)
	content := `{
  "endpoint": "http://10.0.0.5:9000/api/chat",
  "mode": "history",
  "timeout": "30s",
  "markdown": {"style": "light"},
  "relay": {"rate_limit": 2.5, "burst": 4}
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:9000/api/chat", cfg.Endpoint)
	assert.Equal(t, "history", cfg.Mode)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "light", cfg.Markdown.Style)
	assert.True(t, cfg.Markdown.EnableEmoji, "unset nested keys keep their defaults")
	assert.Equal(t, 2.5, cfg.Relay.RateLimit)
	assert.Equal(t, 4, cfg.Relay.Burst)
	assert.Equal(t, "llama3.1", cfg.Model)
}

func TestLoad_InvalidJSON(t *testing.T) {
	l, path := newTestLoader(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	cfg, err := l.Load()
	assert.Error(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	l, path := newTestLoader(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"model": "from-file"}`), 0o600))

	t.Setenv("LOCALCHAT_MODEL", "mistral")
	t.Setenv("LOCALCHAT_MARKDOWN_STYLE", "notty")
	t.Setenv("LOCALCHAT_RELAY_ADDR", ":9999")

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "mistral", cfg.Model)
	assert.Equal(t, "notty", cfg.Markdown.Style)
	assert.Equal(t, ":9999", cfg.Relay.Addr)
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	l, _ := newTestLoader(t)
	t.Setenv("LOCALCHAT_MODEL", "mistral")
	t.Setenv("LOCALCHAT_MODE", "history")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("model", "", "")
	flags.String("mode", "", "")
	flags.Duration("timeout", 0, "")
	flags.String("unrelated", "", "")
	require.NoError(t, flags.Parse([]string{"--model", "qwen3", "--timeout", "10s"}))
	require.NoError(t, l.BindFlags(flags))

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "qwen3", cfg.Model)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, "history", cfg.Mode, "unchanged flags must not shadow the environment")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "prompt mode", mutate: func(c *Config) { c.Mode = "PROMPT" }},
		{name: "empty endpoint", mutate: func(c *Config) { c.Endpoint = " " }, wantErr: true},
		{name: "ftp endpoint", mutate: func(c *Config) { c.Endpoint = "ftp://host/chat" }, wantErr: true},
		{name: "empty model", mutate: func(c *Config) { c.Model = "" }, wantErr: true},
		{name: "unknown mode", mutate: func(c *Config) { c.Mode = "telepathy" }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: true},
		{name: "negative rate", mutate: func(c *Config) { c.Relay.RateLimit = -1 }, wantErr: true},
		{name: "negative burst", mutate: func(c *Config) { c.Relay.Burst = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Model = "phi3"
	cfg.Timeout = 90 * time.Second
	cfg.Markdown.Enabled = false
	require.NoError(t, SaveConfig(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1m30s", gjson.GetBytes(data, "timeout").String())
	assert.False(t, gjson.GetBytes(data, "markdown.enabled").Bool())

	l, err := NewLoader(path)
	require.NoError(t, err)
	loaded, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	require.NoError(t, Init(path, false))
	assert.ErrorIs(t, Init(path, false), ErrConfigExists)
	assert.NoError(t, Init(path, true))

	l, err := NewLoader(path)
	require.NoError(t, err)
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParsedMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "History"

	mode, err := cfg.ParsedMode()
	require.NoError(t, err)
	assert.Equal(t, "history", string(mode))
}
