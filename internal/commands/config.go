package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/diogo/localchat/internal/config"
)

var (
	configKeyStyle  = lipgloss.NewStyle().Foreground(colorPrimary).Width(28)
	configPathStyle = lipgloss.NewStyle().Foreground(colorTextMute)
)

// NewConfigCmd creates the config command
func NewConfigCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration",
		Long: `Show the configuration after applying the config file, LOCALCHAT_*
environment variables and command-line flags, and where the file lives.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(cmd, deps)
			if err != nil {
				return err
			}
			printConfig(deps, cfg, path)
			return nil
		},
	}

	cmd.AddCommand(newConfigInitCmd(deps))
	return cmd
}

func newConfigInitCmd(deps *Dependencies) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := deps.ConfigPath
			if path == "" {
				p, err := config.GetConfigPath()
				if err != nil {
					return err
				}
				path = p
			}

			if err := config.Init(path, force); err != nil {
				if errors.Is(err, config.ErrConfigExists) {
					return fmt.Errorf("%w (use --force to overwrite)", err)
				}
				return err
			}
			fmt.Fprintln(deps.Stdout, successStyle.Render(fmt.Sprintf("✓ Wrote default configuration to %s", path)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func printConfig(deps *Dependencies, cfg config.Config, path string) {
	state := "not found, using defaults"
	if _, err := os.Stat(path); err == nil {
		state = "loaded"
	}
	fmt.Fprintln(deps.Stdout, configPathStyle.Render(fmt.Sprintf("Config file: %s (%s)", path, state)))
	fmt.Fprintln(deps.Stdout)

	rows := []struct {
		key   string
		value any
	}{
		{"endpoint", cfg.Endpoint},
		{"model", cfg.Model},
		{"mode", cfg.Mode},
		{"timeout", cfg.Timeout},
		{"verbose", cfg.Verbose},
		{"log_file", cfg.LogFile},
		{"copy_to_clipboard", cfg.CopyToClipboard},
		{"markdown.enabled", cfg.Markdown.Enabled},
		{"markdown.style", cfg.Markdown.Style},
		{"markdown.enable_emoji", cfg.Markdown.EnableEmoji},
		{"markdown.preserve_newlines", cfg.Markdown.PreserveNewLines},
		{"relay.addr", cfg.Relay.Addr},
		{"relay.upstream", cfg.Relay.Upstream},
		{"relay.rate_limit", cfg.Relay.RateLimit},
		{"relay.burst", cfg.Relay.Burst},
	}
	for _, row := range rows {
		fmt.Fprintf(deps.Stdout, "%s %v\n", configKeyStyle.Render(row.key), row.value)
	}
}
