package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/diogo/localchat/internal/api"
	"github.com/diogo/localchat/internal/config"
	"github.com/diogo/localchat/internal/controller"
	"github.com/diogo/localchat/internal/logging"
	"github.com/diogo/localchat/internal/relay"
	"github.com/diogo/localchat/internal/tui"
)

// TUIInterface defines the methods required from the TUI package.
type TUIInterface interface {
	RunChat(ctx context.Context, ctrl *controller.Controller, opts tui.Options) error
}

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
type Dependencies struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// StdinPiped reports whether Stdin carries input instead of a terminal.
	StdinPiped func() bool
	// StdoutTTY reports whether Stdout is a terminal.
	StdoutTTY func() bool
	// TermWidth returns the terminal width in columns.
	TermWidth func() int

	// ConfigPath overrides the config file location. Empty means ~/.localchat/config.json.
	ConfigPath string

	// NewClient builds the chat endpoint client for the resolved configuration.
	NewClient func(cfg config.Config, logger *zap.Logger) (api.ChatClientInterface, error)

	// TUI is the terminal user interface.
	TUI TUIInterface

	// CopyToClipboard copies a one-shot reply.
	CopyToClipboard func(text string) error

	// Serve runs the relay until ctx is cancelled.
	Serve func(ctx context.Context, srv *relay.Server) error
}

// DefaultTUI is the production implementation of TUIInterface.
type DefaultTUI struct{}

func (d *DefaultTUI) RunChat(ctx context.Context, ctrl *controller.Controller, opts tui.Options) error {
	return tui.RunChat(ctx, ctrl, opts)
}

// NewDependencies creates a new Dependencies struct with default implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		Stdin:           os.Stdin,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
		StdinPiped:      isStdinPiped,
		StdoutTTY:       isStdoutTTY,
		TermWidth:       getTerminalWidth,
		NewClient:       newChatClient,
		TUI:             &DefaultTUI{},
		CopyToClipboard: clipboard.WriteAll,
		Serve: func(ctx context.Context, srv *relay.Server) error {
			return srv.ListenAndServe(ctx)
		},
	}
}

func newChatClient(cfg config.Config, logger *zap.Logger) (api.ChatClientInterface, error) {
	return api.NewClient(cfg.Endpoint,
		api.WithModel(cfg.Model),
		api.WithTimeout(cfg.Timeout),
		api.WithLogger(logger),
	)
}

// exchange bundles what a query or chat run needs and releases it on close
type exchange struct {
	logger *zap.Logger
	client api.ChatClientInterface
	ctrl   *controller.Controller
}

// newExchange builds the logger, client and controller for cfg. Console
// logging is only enabled when nothing else owns the terminal.
func (d *Dependencies) newExchange(cfg config.Config, console bool) (*exchange, error) {
	mode, err := cfg.ParsedMode()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Verbose: cfg.Verbose,
		File:    cfg.LogFile,
		Console: console && cfg.Verbose,
	})
	if err != nil {
		return nil, err
	}

	client, err := d.NewClient(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	ctrl, err := controller.New(client, mode, controller.WithLogger(logger))
	if err != nil {
		client.Close()
		_ = logger.Sync()
		return nil, err
	}

	return &exchange{logger: logger, client: client, ctrl: ctrl}, nil
}

func (e *exchange) close() {
	e.client.Close()
	_ = e.logger.Sync()
}

// isStdinPiped returns true if stdin is not a terminal
func isStdinPiped() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// getTerminalWidth returns the terminal width or a default value
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80 // default width
	}
	return width
}

// isStdoutTTY returns true if stdout is connected to a terminal
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
