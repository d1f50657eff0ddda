package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/diogo/localchat/internal/api"
	"github.com/diogo/localchat/internal/config"
	"github.com/diogo/localchat/internal/controller"
	"github.com/diogo/localchat/internal/relay"
	"github.com/diogo/localchat/internal/tui"
)

// fakeTUI records the chat it was asked to run
type fakeTUI struct {
	called bool
	ctrl   *controller.Controller
	opts   tui.Options
	err    error
}

func (f *fakeTUI) RunChat(ctx context.Context, ctrl *controller.Controller, opts tui.Options) error {
	f.called = true
	f.ctrl = ctrl
	f.opts = opts
	return f.err
}

// testEnv wires Dependencies to buffers and fakes
type testEnv struct {
	deps    *Dependencies
	stdin   string
	piped   bool
	tty     bool
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	client  *api.MockChatClient
	created bool
	cfg     config.Config
	tui     *fakeTUI
	copied  []string
	copyErr error
	served  *relay.Server
}

// isolateEnv clears the variables that would leak the developer's own setup into a test
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LOCALCHAT_ENDPOINT", "LOCALCHAT_MODEL", "LOCALCHAT_MODE", "LOCALCHAT_TIMEOUT",
		"LOCALCHAT_VERBOSE", "LOCALCHAT_LOG_FILE", "LOCALCHAT_COPY_TO_CLIPBOARD",
		"LOCALCHAT_MARKDOWN_ENABLED", "LOCALCHAT_MARKDOWN_STYLE",
		"LOCALCHAT_RELAY_ADDR", "LOCALCHAT_RELAY_UPSTREAM",
		"LOCALCHAT_RELAY_RATE_LIMIT", "LOCALCHAT_RELAY_BURST",
		"GLAMOUR_STYLE",
	} {
		t.Setenv(key, "")
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	isolateEnv(t)

	env := &testEnv{
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		client: &api.MockChatClient{
			EndpointVal: "http://127.0.0.1:8000/api/chat",
			ModelVal:    "llama3.1",
		},
		tui: &fakeTUI{},
	}

	env.deps = &Dependencies{
		Stdout:     env.stdout,
		Stderr:     env.stderr,
		StdinPiped: func() bool { return env.piped },
		StdoutTTY:  func() bool { return env.tty },
		TermWidth:  func() int { return 100 },
		ConfigPath: filepath.Join(t.TempDir(), "config.json"),
		NewClient: func(cfg config.Config, logger *zap.Logger) (api.ChatClientInterface, error) {
			env.created = true
			env.cfg = cfg
			return env.client, nil
		},
		TUI: env.tui,
		CopyToClipboard: func(text string) error {
			env.copied = append(env.copied, text)
			return env.copyErr
		},
		Serve: func(ctx context.Context, srv *relay.Server) error {
			env.served = srv
			return nil
		},
	}
	return env
}

// run executes the root command with args
func (e *testEnv) run(args ...string) error {
	e.deps.Stdin = strings.NewReader(e.stdin)
	cmd := NewRootCmd(e.deps)
	cmd.SetArgs(args)
	return cmd.Execute()
}
