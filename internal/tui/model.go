package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/localchat/internal/controller"
	"github.com/diogo/localchat/internal/conversation"
	"github.com/diogo/localchat/internal/models"
	"github.com/diogo/localchat/internal/render"
)

// Animation tick message
type animationTickMsg time.Time

// Message types for the TUI
type (
	// storeMsg carries a conversation snapshot published by the store
	storeMsg conversation.Snapshot

	// exchangeDoneMsg is sent when Submit returns
	exchangeDoneMsg struct {
		err error
	}
)

// Options configures the chat view
type Options struct {
	ModelName string
	Endpoint  string
	Markdown  bool
	Render    render.Options
}

// Model represents the TUI state
type Model struct {
	ctrl *controller.Controller
	ctx  context.Context
	opts Options

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// State
	messages       []models.Message
	busy           bool
	ready          bool
	err            error
	notice         string
	markdown       bool
	animationFrame int

	// Dimensions
	width  int
	height int
}

// NewChatModel creates a chat model driving ctrl. Exchanges run with ctx.
func NewChatModel(ctx context.Context, ctrl *controller.Controller, opts Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Type your message here..."
	ta.CharLimit = 8000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	snap := ctrl.Store().Snapshot()

	return Model{
		ctrl:     ctrl,
		ctx:      ctx,
		opts:     opts,
		textarea: ta,
		spinner:  s,
		messages: snap.Messages,
		busy:     snap.Busy,
		markdown: opts.Markdown,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
	)
}

// animationTick returns a command that sends animation tick messages
func animationTick() tea.Cmd {
	return tea.Tick(time.Millisecond*80, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 4 // Header panel with border
		inputHeight := 6  // Input panel with border
		statusHeight := 1 // Status bar
		padding := 2

		vpHeight := m.height - headerHeight - inputHeight - statusHeight - padding
		if vpHeight < 5 {
			vpHeight = 5
		}
		contentWidth := m.width - 4

		if !m.ready {
			m.viewport = viewport.New(contentWidth, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = contentWidth
			m.viewport.Height = vpHeight
		}
		m.textarea.SetWidth(contentWidth - 4)
		m.updateViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			// an exchange in flight is left to finish; the process exit cancels it
			return m, tea.Quit

		case "enter":
			input := strings.TrimSpace(m.textarea.Value())
			if m.busy || input == "" {
				return m, nil
			}
			m.textarea.Reset()
			return m.handleInput(input)
		}

	case storeMsg:
		m.messages = msg.Messages
		m.busy = msg.Busy
		m.updateViewport()

	case exchangeDoneMsg:
		m.busy = m.ctrl.Store().Busy()
		if msg.err != nil && !errors.Is(msg.err, controller.ErrBusy) {
			m.err = msg.err
		}

	case spinner.TickMsg:
		if m.busy {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case animationTickMsg:
		if m.busy {
			m.animationFrame++
			cmds = append(cmds, animationTick())
		}
	}

	if !m.busy {
		if _, ok := msg.(tea.KeyMsg); ok {
			m.textarea, cmd = m.textarea.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleInput runs a slash command or submits input as a chat message
func (m Model) handleInput(input string) (tea.Model, tea.Cmd) {
	m.notice = ""

	switch strings.ToLower(input) {
	case "exit", "quit", "/exit", "/quit":
		return m, tea.Quit

	case "/clear":
		if err := m.ctrl.Reset(); err != nil {
			m.notice = "Cannot clear while a reply is in progress"
		} else {
			m.err = nil
		}
		return m, nil

	case "/markdown":
		m.markdown = !m.markdown
		if m.markdown {
			m.notice = "Markdown rendering on"
		} else {
			m.notice = "Markdown rendering off"
		}
		m.updateViewport()
		return m, nil
	}

	m.err = nil
	m.animationFrame = 0
	// the store flips busy before the first snapshot arrives; mirror it now
	// so a second enter cannot slip through
	m.busy = true

	return m, tea.Batch(
		m.submit(input),
		m.spinner.Tick,
		animationTick(),
	)
}

// submit runs one exchange off the event loop
func (m Model) submit(text string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return exchangeDoneMsg{err: ctrl.Submit(ctx, text)}
	}
}

// View renders the UI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	var sections []string
	contentWidth := m.width - 4

	headerParts := []string{
		titleStyle.Render("✦ localchat"),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(m.opts.ModelName),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(string(m.ctrl.Mode())),
	}
	headerContent := lipgloss.JoinHorizontal(lipgloss.Center, headerParts...)
	sections = append(sections, headerStyle.Width(contentWidth).Render(headerContent))

	var messagesContent string
	if len(m.messages) == 0 {
		messagesContent = m.renderWelcome()
	} else {
		messagesContent = m.viewport.View()
	}
	sections = append(sections, messagesAreaStyle.
		Width(contentWidth).
		Height(m.viewport.Height).
		Render(messagesContent))

	var inputContent string
	if m.busy {
		inputContent = m.renderLoadingAnimation()
	} else {
		inputContent = lipgloss.JoinVertical(
			lipgloss.Left,
			inputLabelStyle.Render("You"),
			m.textarea.View(),
		)
	}
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(inputContent))

	sections = append(sections, m.renderStatusBar(contentWidth))

	if m.notice != "" {
		sections = append(sections, noticeStyle.Render(m.notice))
	}
	if m.err != nil {
		sections = append(sections, FormatError(m.err))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderWelcome() string {
	width := m.viewport.Width - 4
	height := m.viewport.Height

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		"",
		welcomeIconStyle.Width(width).Render("✦"),
		"",
		welcomeTitleStyle.Width(width).Render("Welcome to localchat"),
		"",
		welcomeStyle.Width(width).Render("Talking to "+m.opts.Endpoint),
		welcomeStyle.Width(width).Render("/clear resets the conversation, /markdown toggles rendering"),
		"",
	)

	topPadding := (height - lipgloss.Height(content)) / 2
	if topPadding < 0 {
		topPadding = 0
	}
	return strings.Repeat("\n", topPadding) + content
}

// renderLoadingAnimation shows "thinking" until the first chunk arrives and
// "writing" while a stream is being accumulated
func (m Model) renderLoadingAnimation() string {
	chars := []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}
	frame := m.animationFrame

	spin := lipgloss.NewStyle().
		Foreground(gradientColors[frame%len(gradientColors)]).
		Bold(true).
		Render(chars[frame%len(chars)])

	var dots strings.Builder
	numDots := (frame / 3) % 4
	for i := 0; i < 3; i++ {
		if i < numDots {
			dots.WriteString(lipgloss.NewStyle().Foreground(gradientColors[(frame+i)%len(gradientColors)]).Render("●"))
		} else {
			dots.WriteString(lipgloss.NewStyle().Foreground(colorTextMute).Render("○"))
		}
	}

	label := " Thinking "
	if m.ctrl.Phase() == controller.PhaseAccumulating {
		label = " Writing "
	}
	text := lipgloss.NewStyle().Foreground(colorText).Render(label)

	return fmt.Sprintf("%s %s%s", spin, text, dots.String())
}

func (m Model) renderStatusBar(width int) string {
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Send"},
		{"Esc", "Quit"},
		{"↑↓", "Scroll"},
		{"/clear", "Reset"},
	}

	var items []string
	for _, s := range shortcuts {
		items = append(items, lipgloss.JoinHorizontal(
			lipgloss.Center,
			statusKeyStyle.Render(s.key),
			statusDescStyle.Render(" "+s.desc),
		))
	}

	bar := strings.Join(items, "  │  ")
	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(bar)
}

// updateViewport re-renders the conversation and scrolls to the newest message
func (m *Model) updateViewport() {
	if !m.ready {
		return
	}

	var content strings.Builder
	bubbleWidth := m.viewport.Width - 6

	for i, msg := range m.messages {
		if i > 0 {
			content.WriteString("\n")
		}

		if msg.Role == models.RoleUser {
			content.WriteString(userLabelStyle.Render("⬤ You") + "\n")
			content.WriteString(userBubbleStyle.Width(bubbleWidth).Render(msg.Content))
		} else {
			content.WriteString(assistantLabelStyle.Render("✦ "+m.opts.ModelName) + "\n")
			content.WriteString(m.renderAssistant(msg, bubbleWidth))
		}
		content.WriteString("\n")
	}

	m.viewport.SetContent(content.String())
	m.viewport.GotoBottom()
}

func (m Model) renderAssistant(msg models.Message, width int) string {
	switch {
	case msg.Content == "":
		return assistantBubbleStyle.Width(width).Render(placeholderStyle.Render("…"))
	case msg.Content == models.ErrorReply:
		return failedBubbleStyle.Width(width).Render(msg.Content)
	case !m.markdown:
		return assistantBubbleStyle.Width(width).Render(msg.Content)
	}

	rendered := render.Reply(msg.Content, m.opts.Render.WithWidth(width-4))
	return assistantBubbleStyle.Width(width).Render(rendered)
}

// RunChat runs the interactive chat until the user quits. Store changes
// reach the view through a subscription that forwards each snapshot into
// the program.
func RunChat(ctx context.Context, ctrl *controller.Controller, opts Options) error {
	p := tea.NewProgram(
		NewChatModel(ctx, ctrl, opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	unsubscribe := ctrl.Store().Subscribe(func(snap conversation.Snapshot) {
		p.Send(storeMsg(snap))
	})
	defer unsubscribe()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
