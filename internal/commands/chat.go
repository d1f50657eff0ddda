package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/diogo/localchat/internal/config"
	"github.com/diogo/localchat/internal/render"
	"github.com/diogo/localchat/internal/tui"
)

// NewChatCmd creates the interactive chat command
func NewChatCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session with the configured endpoint.

In history and stream mode the whole conversation is sent with every
message. Type /clear to start over, /markdown to toggle rendering, and
'exit', 'quit' or Ctrl+C to end the session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, deps)
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), deps, cfg)
		},
	}
}

func runChat(ctx context.Context, deps *Dependencies, cfg config.Config) error {
	// The TUI owns the terminal, so logs only go to --log-file
	ex, err := deps.newExchange(cfg, false)
	if err != nil {
		return err
	}
	defer ex.close()

	return deps.TUI.RunChat(ctx, ex.ctrl, tui.Options{
		ModelName: cfg.Model,
		Endpoint:  cfg.Endpoint,
		Markdown:  cfg.Markdown.Enabled,
		Render:    render.FromConfig(cfg.Markdown),
	})
}
