package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/localchat/internal/config"
	"github.com/diogo/localchat/internal/conversation"
	"github.com/diogo/localchat/internal/models"
	"github.com/diogo/localchat/internal/render"
	"github.com/diogo/localchat/internal/tui"
)

// Gradient colors for animation
var gradientColors = []lipgloss.Color{
	lipgloss.Color("#ff6b6b"), // Red
	lipgloss.Color("#feca57"), // Yellow
	lipgloss.Color("#48dbfb"), // Cyan
	lipgloss.Color("#ff9ff3"), // Pink
	lipgloss.Color("#54a0ff"), // Blue
	lipgloss.Color("#5f27cd"), // Purple
	lipgloss.Color("#00d2d3"), // Teal
	lipgloss.Color("#1dd1a1"), // Green
}

var (
	colorText     = lipgloss.Color("#c0caf5")
	colorTextMute = lipgloss.Color("#3b4261")
	colorSuccess  = lipgloss.Color("#9ece6a")
	colorWarning  = lipgloss.Color("#f7768e")
	colorPrimary  = lipgloss.Color("#7aa2f7")
)

// Styles matching the chat TUI
var (
	assistantLabelStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	successStyle        = lipgloss.NewStyle().Foreground(colorSuccess)
	warningStyle        = lipgloss.NewStyle().Foreground(colorWarning)
)

var assistantBubbleStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Foreground(colorText).
	Padding(0, 1).
	MarginTop(1).
	MarginBottom(1)

// spinner handles the animated loading indicator
type spinner struct {
	out     io.Writer
	message string
	stop    chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	frame   int
	stopped bool // Flag to prevent double-close
}

// newSpinner creates a new animated spinner drawing on out
func newSpinner(out io.Writer, message string) *spinner {
	return &spinner{
		out:     out,
		message: message,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// start begins the animation
func (s *spinner) start() {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		// Hide cursor
		fmt.Fprint(s.out, "\033[?25l")

		for {
			select {
			case <-s.stop:
				// Clear line and show cursor
				fmt.Fprint(s.out, "\r\033[K\033[?25h")
				return
			case <-ticker.C:
				s.mu.Lock()
				s.render()
				s.frame++
				s.mu.Unlock()
			}
		}
	}()
}

// render draws the current animation frame
func (s *spinner) render() {
	chars := []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

	spinColor := gradientColors[s.frame%len(gradientColors)]
	spinnerChar := lipgloss.NewStyle().Foreground(spinColor).Bold(true).Render(chars[s.frame%len(chars)])

	var dots strings.Builder
	numDots := (s.frame / 3) % 4
	for i := 0; i < 3; i++ {
		if i < numDots {
			dotColor := gradientColors[(s.frame+i)%len(gradientColors)]
			dots.WriteString(lipgloss.NewStyle().Foreground(dotColor).Render("●"))
		} else {
			dots.WriteString(lipgloss.NewStyle().Foreground(colorTextMute).Render("○"))
		}
	}

	msg := lipgloss.NewStyle().Foreground(colorText).Render(s.message)
	fmt.Fprintf(s.out, "\r\033[K%s %s %s", spinnerChar, msg, dots.String())
}

// setMessage changes the text shown next to the animation
func (s *spinner) setMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// stopOnce safely closes the stop channel only once
func (s *spinner) stopOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		close(s.stop)
		s.stopped = true
	}
}

// stopWithSuccess stops the spinner and shows success message
func (s *spinner) stopWithSuccess(message string) {
	s.stopOnce()
	<-s.done

	checkmark := successStyle.Bold(true).Render("✓")
	fmt.Fprintf(s.out, "%s %s\n", checkmark, successStyle.Render(message))
}

// stopWithError stops the spinner and shows error
func (s *spinner) stopWithError() {
	s.stopOnce()
	<-s.done
}

// runQuery sends a single prompt and writes the reply.
// Raw output (--raw or a non-terminal stdout) prints only the reply text, and
// in stream mode prints each fragment as it arrives.
func runQuery(ctx context.Context, deps *Dependencies, cfg config.Config, prompt string, flags queryFlags) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return fmt.Errorf("prompt cannot be empty")
	}

	rawOutput := flags.raw || !deps.StdoutTTY()

	ex, err := deps.newExchange(cfg, true)
	if err != nil {
		return err
	}
	defer ex.close()

	store := ex.ctrl.Store()
	streaming := ex.ctrl.Mode().Streaming()

	var spin *spinner
	if !rawOutput {
		spin = newSpinner(deps.Stderr, fmt.Sprintf("Asking %s", cfg.Model))
		spin.start()
		if streaming {
			unsubscribe := store.Subscribe(func(snap conversation.Snapshot) {
				if last, ok := snap.Last(); ok && last.Role == models.RoleAssistant && last.Content != "" {
					spin.setMessage(fmt.Sprintf("Receiving (%d bytes)", len(last.Content)))
				}
			})
			defer unsubscribe()
		}
	}

	// Echo fragments straight to stdout while they arrive
	echoed := false
	if rawOutput && streaming && flags.output == "" {
		echo := newFragmentEcho(deps.Stdout)
		unsubscribe := store.Subscribe(echo.observe)
		defer unsubscribe()
		echoed = true
	}

	startTime := time.Now()
	err = ex.ctrl.Submit(ctx, prompt)
	requestDuration := time.Since(startTime)

	if err != nil {
		if !rawOutput {
			spin.stopWithError()
			fmt.Fprintln(deps.Stderr, formatErrorMessage(err, "Request failed"))
		}
		return fmt.Errorf("request failed: %w", err)
	}
	if !rawOutput {
		spin.stopWithSuccess("Done")
	}

	if cfg.Verbose && !rawOutput {
		fmt.Fprintf(deps.Stderr, "[verbose] Request took %s\n", requestDuration.Round(time.Millisecond))
	}

	last, _ := store.Snapshot().Last()
	text := last.Content

	// Raw output mode: output only the raw text
	if rawOutput {
		if flags.output != "" {
			if err := os.WriteFile(flags.output, []byte(text), 0o644); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			return nil
		}
		if !echoed {
			fmt.Fprint(deps.Stdout, text)
		}
		return nil
	}

	fmt.Fprintln(deps.Stderr)

	if cfg.CopyToClipboard {
		if err := deps.CopyToClipboard(text); err != nil {
			fmt.Fprintln(deps.Stderr, warningStyle.Render(fmt.Sprintf("⚠ Failed to copy to clipboard: %v", err)))
		} else {
			fmt.Fprintln(deps.Stderr, successStyle.Render("✓ Copied to clipboard"))
		}
	}

	if flags.output != "" {
		if err := os.WriteFile(flags.output, []byte(text), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintln(deps.Stderr, successStyle.Render(fmt.Sprintf("✓ Response saved to %s", flags.output)))
		return nil
	}

	bubbleWidth := deps.TermWidth() - 4
	if bubbleWidth < 40 {
		bubbleWidth = 40
	}
	if bubbleWidth > 120 {
		bubbleWidth = 120
	}
	contentWidth := bubbleWidth - 4

	fmt.Fprintln(deps.Stdout, assistantLabelStyle.Render("✦ "+cfg.Model))

	rendered := text
	if cfg.Markdown.Enabled {
		rendered = render.Reply(text, render.FromConfig(cfg.Markdown).WithWidth(contentWidth))
	}
	fmt.Fprintln(deps.Stdout, assistantBubbleStyle.Width(bubbleWidth).Render(rendered))

	return nil
}

// fragmentEcho writes the growth of the streamed reply. It follows the
// placeholder the stream appends empty; the error reply is left to stderr.
type fragmentEcho struct {
	out     io.Writer
	index   int
	written int
}

func newFragmentEcho(out io.Writer) *fragmentEcho {
	return &fragmentEcho{out: out, index: -1}
}

func (e *fragmentEcho) observe(snap conversation.Snapshot) {
	n := len(snap.Messages)
	if n == 0 {
		return
	}
	if e.index < 0 {
		last := snap.Messages[n-1]
		if last.Role != models.RoleAssistant || last.Content != "" {
			return
		}
		e.index = n - 1
	}
	if e.index >= n {
		return
	}

	content := snap.Messages[e.index].Content
	if len(content) > e.written {
		fmt.Fprint(e.out, content[e.written:])
		e.written = len(content)
	}
}

// formatErrorMessage formats an error with additional context from structured errors
func formatErrorMessage(err error, context string) string {
	if err == nil {
		return ""
	}
	return tui.FormatError(fmt.Errorf("%s: %w", context, err))
}
