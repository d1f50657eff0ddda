// Package commands provides CLI commands for localchat.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/diogo/localchat/internal/config"
)

var (
	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// queryFlags holds the flags local to the one-shot query
type queryFlags struct {
	output string
	file   string
	raw    bool
}

// NewRootCmd creates the root command and registers every subcommand
func NewRootCmd(deps *Dependencies) *cobra.Command {
	if deps == nil {
		deps = NewDependencies()
	}

	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "localchat [prompt]",
		Short: "Terminal chat client for a local LLM endpoint",
		Long: `localchat sends prompts to a local chat endpoint and shows the replies,
either as a one-shot query or in an interactive chat. Replies can be
read whole or streamed as they are generated. The bundled relay
server ('localchat serve') puts that endpoint in front of Ollama.

Examples:
  localchat serve                       Start the relay in front of Ollama
  localchat chat                        Start interactive chat
  localchat "What is Go?"               Send a single query
  localchat -f prompt.md                Read prompt from file
  cat prompt.md | localchat             Read prompt from stdin
  localchat "Hello" -o response.md      Save response to file
  localchat --mode prompt "Hi"          Ask without conversation history`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Check for version flag
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(deps.Stdout, "localchat %s (built %s)\n", Version, BuildTime)
				return nil
			}

			prompt, ok, err := readPrompt(deps, flags.file, args)
			if err != nil {
				return err
			}
			if !ok {
				// No input - show help
				return cmd.Help()
			}

			cfg, _, err := loadConfig(cmd, deps)
			if err != nil {
				return err
			}
			return runQuery(cmd.Context(), deps, cfg, prompt, flags)
		},
	}
	cmd.SetIn(deps.Stdin)
	cmd.SetOut(deps.Stdout)
	cmd.SetErr(deps.Stderr)

	defaults := config.DefaultConfig()

	// Global flags
	pf := cmd.PersistentFlags()
	pf.String("endpoint", defaults.Endpoint, "Chat endpoint URL")
	pf.StringP("model", "m", defaults.Model, "Model name sent with each request")
	pf.String("mode", defaults.Mode, "Response mode: prompt, history or stream")
	pf.Duration("timeout", defaults.Timeout, "Request timeout")
	pf.Bool("verbose", false, "Enable debug logging")
	pf.String("log-file", "", "Append JSON logs to this file")
	pf.Bool("plain", false, "Disable markdown rendering")

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Save response to file")
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "Read prompt from file")
	cmd.Flags().BoolVar(&flags.raw, "raw", false, "Print only the reply text")
	cmd.Flags().Bool("copy", false, "Copy the reply to the clipboard")
	cmd.Flags().BoolP("version", "v", false, "Show version and exit")

	// Add subcommands
	cmd.AddCommand(NewChatCmd(deps))
	cmd.AddCommand(NewServeCmd(deps))
	cmd.AddCommand(NewConfigCmd(deps))

	return cmd
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd(NewDependencies()).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// readPrompt picks the prompt from the file flag, piped stdin or the
// positional argument, in that order. ok is false when none was given.
func readPrompt(deps *Dependencies, file string, args []string) (prompt string, ok bool, err error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", false, fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), true, nil
	}

	if deps.StdinPiped() {
		data, err := io.ReadAll(deps.Stdin)
		if err != nil {
			return "", false, fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), true, nil
	}

	if len(args) > 0 {
		return args[0], true, nil
	}
	return "", false, nil
}

// loadConfig resolves the configuration for cmd: file, environment, then
// the flags the user actually set.
func loadConfig(cmd *cobra.Command, deps *Dependencies) (config.Config, string, error) {
	loader, err := config.NewLoader(deps.ConfigPath)
	if err != nil {
		return config.DefaultConfig(), "", err
	}
	if err := loader.BindFlags(cmd.Flags()); err != nil {
		return config.DefaultConfig(), loader.Path(), err
	}

	cfg, err := loader.Load()
	if err != nil {
		return cfg, loader.Path(), err
	}

	if plain, _ := cmd.Flags().GetBool("plain"); plain {
		cfg.Markdown.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return cfg, loader.Path(), fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, loader.Path(), nil
}
