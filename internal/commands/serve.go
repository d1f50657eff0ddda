package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diogo/localchat/internal/config"
	"github.com/diogo/localchat/internal/logging"
	"github.com/diogo/localchat/internal/relay"
)

// NewServeCmd creates the relay server command
func NewServeCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local relay in front of Ollama",
		Long: `Run the HTTP relay that the chat client talks to by default.

POST /api/chat accepts {"prompt": ...} or {"messages": [...]} and answers
through Ollama: whole JSON replies for prompts and for clients sending
'Accept: application/json', a plain text stream otherwise.
GET /health reports whether the relay is up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, deps)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), deps, cfg)
		},
	}

	defaults := config.DefaultRelayConfig()
	cmd.Flags().String("addr", defaults.Addr, "Address to listen on")
	cmd.Flags().String("upstream", defaults.Upstream, "Ollama base URL")
	cmd.Flags().Float64("rate-limit", defaults.RateLimit, "Requests per second admitted (0 = unlimited)")
	cmd.Flags().Int("burst", defaults.Burst, "Requests admitted at once above the rate")

	return cmd
}

func runServe(ctx context.Context, deps *Dependencies, cfg config.Config) error {
	logger, err := logging.New(logging.Options{
		Verbose: cfg.Verbose,
		File:    cfg.LogFile,
		Console: true,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	srv, err := relay.New(relay.Options{
		Addr:      cfg.Relay.Addr,
		Upstream:  cfg.Relay.Upstream,
		RateLimit: cfg.Relay.RateLimit,
		Burst:     cfg.Relay.Burst,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create relay: %w", err)
	}

	fmt.Fprintf(deps.Stderr, "localchat relay on http://%s -> %s\n", cfg.Relay.Addr, cfg.Relay.Upstream)
	return deps.Serve(ctx, srv)
}
