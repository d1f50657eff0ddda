// Package config handles layered configuration for localchat.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/diogo/localchat/internal/api"
	"github.com/diogo/localchat/internal/models"
)

// EnvPrefix prefixes every environment override (LOCALCHAT_MODEL, ...)
const EnvPrefix = "LOCALCHAT"

// ErrConfigExists is returned by Init when the file is already present
var ErrConfigExists = errors.New("config file already exists")

// MarkdownConfig configures markdown rendering options
type MarkdownConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Style            string `mapstructure:"style"`              // "dark", "light", or path to JSON theme
	EnableEmoji      bool   `mapstructure:"enable_emoji"`       // Convert :emoji: to unicode
	PreserveNewLines bool   `mapstructure:"preserve_newlines"`  // Preserve original line breaks
	TableWrap        bool   `mapstructure:"table_wrap"`         // Enable word wrap in table cells
	InlineTableLinks bool   `mapstructure:"inline_table_links"` // Render links inline in tables
}

// RelayConfig configures the local relay server in front of Ollama
type RelayConfig struct {
	Addr     string `mapstructure:"addr"`
	Upstream string `mapstructure:"upstream"`
	// RateLimit is the sustained requests per second admitted; 0 disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

// Config represents the resolved user configuration
type Config struct {
	Endpoint string        `mapstructure:"endpoint"`
	Model    string        `mapstructure:"model"`
	Mode     string        `mapstructure:"mode"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// Verbose raises the log level to debug.
	Verbose         bool           `mapstructure:"verbose"`
	LogFile         string         `mapstructure:"log_file"`
	CopyToClipboard bool           `mapstructure:"copy_to_clipboard"`
	Markdown        MarkdownConfig `mapstructure:"markdown"`
	Relay           RelayConfig    `mapstructure:"relay"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Enabled:          true,
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
		TableWrap:        true,
		InlineTableLinks: false,
	}
}

// DefaultRelayConfig returns the default relay configuration
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		Addr:     "127.0.0.1:8000",
		Upstream: "http://localhost:11434",
		Burst:    1,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Endpoint: models.DefaultEndpoint,
		Model:    models.DefaultModel,
		Mode:     string(models.DefaultMode),
		Timeout:  api.DefaultTimeout,
		Markdown: DefaultMarkdownConfig(),
		Relay:    DefaultRelayConfig(),
	}
}

// ParsedMode returns the configured response mode
func (c Config) ParsedMode() (models.Mode, error) {
	return models.ParseMode(c.Mode)
}

// Validate checks that the configuration can drive a client
func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint must not be empty")
	}
	if err := api.ValidateEndpoint(c.Endpoint); err != nil {
		return err
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.New("model must not be empty")
	}
	if _, err := c.ParsedMode(); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Relay.RateLimit < 0 {
		return fmt.Errorf("relay.rate_limit must not be negative, got %g", c.Relay.RateLimit)
	}
	if c.Relay.Burst < 0 {
		return fmt.Errorf("relay.burst must not be negative, got %d", c.Relay.Burst)
	}
	return nil
}

// settings flattens c into viper keys
func (c Config) settings() map[string]any {
	return map[string]any{
		"endpoint":                    c.Endpoint,
		"model":                       c.Model,
		"mode":                        c.Mode,
		"timeout":                     c.Timeout.String(),
		"verbose":                     c.Verbose,
		"log_file":                    c.LogFile,
		"copy_to_clipboard":           c.CopyToClipboard,
		"markdown.enabled":            c.Markdown.Enabled,
		"markdown.style":              c.Markdown.Style,
		"markdown.enable_emoji":       c.Markdown.EnableEmoji,
		"markdown.preserve_newlines":  c.Markdown.PreserveNewLines,
		"markdown.table_wrap":         c.Markdown.TableWrap,
		"markdown.inline_table_links": c.Markdown.InlineTableLinks,
		"relay.addr":                  c.Relay.Addr,
		"relay.upstream":              c.Relay.Upstream,
		"relay.rate_limit":            c.Relay.RateLimit,
		"relay.burst":                 c.Relay.Burst,
	}
}

// flagKeys maps command-line flag names to configuration keys
var flagKeys = map[string]string{
	"endpoint":   "endpoint",
	"model":      "model",
	"mode":       "mode",
	"timeout":    "timeout",
	"verbose":    "verbose",
	"log-file":   "log_file",
	"copy":       "copy_to_clipboard",
	"addr":       "relay.addr",
	"upstream":   "relay.upstream",
	"rate-limit": "relay.rate_limit",
	"burst":      "relay.burst",
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(home, ".localchat")
	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// Loader resolves configuration from defaults, the JSON file, the
// environment and bound flags, lowest precedence first.
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader creates a Loader reading path. An empty path selects the
// default location under the home directory.
func NewLoader(path string) (*Loader, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := viper.New()
	for key, value := range DefaultConfig().settings() {
		v.SetDefault(key, value)
	}
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v, path: path}, nil
}

// Path returns the config file location
func (l *Loader) Path() string {
	return l.path
}

// BindFlags binds every known flag present in flags. Only flags the user
// actually set override lower layers.
func (l *Loader) BindFlags(flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := l.v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the file (a missing file means defaults) and resolves every layer
func (l *Loader) Load() (Config, error) {
	if _, err := os.Stat(l.path); err == nil {
		if err := l.v.ReadInConfig(); err != nil {
			return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return DefaultConfig(), fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// LoadConfig loads the configuration from the default location and the environment
func LoadConfig() (Config, error) {
	l, err := NewLoader("")
	if err != nil {
		return DefaultConfig(), err
	}
	return l.Load()
}

// SaveConfig writes cfg as JSON to path
func SaveConfig(cfg Config, path string) error {
	// Use 0o700 for the directory, the file may carry private endpoints
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	for key, value := range cfg.settings() {
		v.Set(key, value)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("failed to restrict config file: %w", err)
	}
	return nil
}

// Init writes the default configuration to path unless a file exists and
// force is false.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s: %w", path, ErrConfigExists)
	}
	return SaveConfig(DefaultConfig(), path)
}
