// internal/tui/app.go
//
// This is the chat TUI for scopedesk. It uses bubbletea, which follows
// The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The left panel is the conversation; the right panel is the living
// assessment document that fills in as the conversation progresses.

package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wthompson1804/scopedesk/internal/config"
	"github.com/wthompson1804/scopedesk/internal/extract"
	"github.com/wthompson1804/scopedesk/internal/intake"
	"github.com/wthompson1804/scopedesk/internal/logging"
	"github.com/wthompson1804/scopedesk/internal/pipeline"
	"github.com/wthompson1804/scopedesk/internal/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)
	systemLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	userLabelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50"))
	buttonStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	panelStyle       = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#444444")).
				Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

type chatRole int

const (
	roleSystem chatRole = iota
	roleUser
)

type chatLine struct {
	role chatRole
	text string
}

// replyMsg carries the session's response to a user turn or a finished stage.
type replyMsg struct {
	reply intake.Reply
}

// exportsMsg reports the export write that ends a session.
type exportsMsg struct {
	paths []string
	err   error
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	session *session.Session
	log     *logging.Logger

	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model

	transcript []chatLine
	buttons    []intake.Button

	busy      bool
	busyLabel string
	statusMsg string
	err       error

	width  int
	height int
	ready  bool
}

// AppOption customizes App construction for tests.
type AppOption func(*App)

// WithSession injects a pre-built session instead of constructing one from
// the project directory.
func WithSession(s *session.Session) AppOption {
	return func(a *App) {
		a.session = s
	}
}

// NewApp creates the TUI over a fresh session for the given project directory.
func NewApp(projectDir string, opts ...AppOption) (*App, error) {
	app := &App{}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}

	if app.session == nil {
		if err := config.InitScopedeskDir(projectDir); err != nil {
			return nil, fmt.Errorf("tui: init project dir: %w", err)
		}
		cfg, err := config.NewConfig(projectDir)
		if err != nil {
			return nil, err
		}
		log, lerr := logging.New(cfg)
		if lerr != nil {
			log = nil
		}
		extractor, generator := buildBackends(cfg, log)
		sess, err := session.New(cfg, extractor, generator, log)
		if err != nil {
			return nil, err
		}
		app.session = sess
		app.log = log
	}

	input := textinput.New()
	input.Placeholder = "Type your answer, or the number of a choice…"
	input.CharLimit = 2000
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))

	app.input = input
	app.spin = spin
	app.viewport = viewport.New(0, 0)

	app.applyReply(app.session.Greeting())
	return app, nil
}

// buildBackends picks the extraction and generation backends. With no API key
// the session still works: keyword extraction plus offline stage documents.
func buildBackends(cfg *config.Config, log *logging.Logger) (extract.Extractor, pipeline.Generator) {
	keyword := extract.NewKeywordExtractor()
	if cfg.APIKey() == "" {
		log.Printf("tui: GEMINI_API_KEY not set; running offline")
		return keyword, pipeline.StubGenerator{}
	}

	ctx := context.Background()
	model := cfg.Project.Model.Name
	gx, err := extract.NewGeminiExtractor(ctx, model)
	if err != nil {
		log.Printf("tui: gemini extractor unavailable: %v", err)
		return keyword, pipeline.StubGenerator{}
	}
	gen, err := pipeline.NewGeminiGenerator(ctx, model)
	if err != nil {
		log.Printf("tui: gemini generator unavailable: %v", err)
		return extract.Fallback{Primary: gx, Secondary: keyword}, pipeline.StubGenerator{}
	}
	return extract.Fallback{Primary: gx, Secondary: keyword}, gen
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		a.ready = true
		return a, nil

	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case replyMsg:
		a.busy = false
		a.busyLabel = ""
		return a, a.applyReply(msg.reply)

	case exportsMsg:
		a.busy = false
		if msg.err != nil {
			a.err = msg.err
			a.appendSystem(fmt.Sprintf("Export failed: %v", msg.err))
			return a, nil
		}
		a.statusMsg = fmt.Sprintf("%d documents written", len(msg.paths))
		a.appendSystem("Exports written:\n- " + strings.Join(msg.paths, "\n- "))
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			a.session.Close()
			return a, tea.Quit
		case "enter":
			if cmd := a.submit(); cmd != nil {
				return a, cmd
			}
			return a, nil
		}
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// submit turns the input line into a session turn. A bare number selects the
// matching on-screen choice; "fix <id> <value>" corrects an assumption;
// anything else is a chat message.
func (a *App) submit() tea.Cmd {
	if a.busy {
		a.statusMsg = "Still working — one moment"
		return nil
	}
	text := strings.TrimSpace(a.input.Value())
	if text == "" {
		return nil
	}
	a.input.Reset()

	in, echo, handled := a.parseInput(text)
	if !handled {
		return nil
	}
	a.transcript = append(a.transcript, chatLine{role: roleUser, text: echo})
	a.refreshViewport()

	return func() tea.Msg {
		return replyMsg{reply: a.session.Handle(context.Background(), in)}
	}
}

func (a *App) parseInput(text string) (intake.Input, string, bool) {
	if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(a.buttons) {
		b := a.buttons[n-1]
		if b.Action == intake.ActionFixAssumption {
			a.appendSystem("Reply with: fix <assumption id> <corrected value>\n" +
				"The IDs are shown in square brackets in the summary.")
			return intake.Input{}, "", false
		}
		return intake.Input{Action: b.Action}, b.Label, true
	}

	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "fix a-") {
		fields := strings.Fields(text)
		if len(fields) < 3 {
			a.appendSystem("Usage: fix <assumption id> <corrected value>")
			return intake.Input{}, "", false
		}
		return intake.Input{
			Action:       intake.ActionFixAssumption,
			AssumptionID: fields[1],
			NewValue:     strings.Join(fields[2:], " "),
		}, text, true
	}
	if lower == "just run it" {
		return intake.Input{Action: intake.ActionFastPath}, text, true
	}
	return intake.Input{Message: text}, text, true
}

// applyReply folds a session reply into the transcript and kicks off any
// long-running work it requested.
func (a *App) applyReply(reply intake.Reply) tea.Cmd {
	for _, m := range reply.Messages {
		a.appendSystem(m)
	}
	a.buttons = reply.Buttons
	a.refreshViewport()

	var cmds []tea.Cmd
	switch {
	case reply.RunResearch:
		a.busy = true
		a.busyLabel = "Researching the use case"
		cmds = append(cmds, a.spin.Tick, func() tea.Msg {
			return replyMsg{reply: a.session.RunResearch(context.Background())}
		})
	case reply.RunPipeline:
		a.busy = true
		a.busyLabel = "Generating the assessment"
		cmds = append(cmds, a.spin.Tick, func() tea.Msg {
			return replyMsg{reply: a.session.RunPipeline(context.Background())}
		})
	}
	if reply.WriteExports {
		a.busy = true
		a.busyLabel = "Writing exports"
		cmds = append(cmds, a.spin.Tick, func() tea.Msg {
			paths, err := a.session.WriteExports()
			return exportsMsg{paths: paths, err: err}
		})
	}
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

func (a *App) appendSystem(text string) {
	a.transcript = append(a.transcript, chatLine{role: roleSystem, text: text})
}

func (a *App) resize() {
	leftWidth, _ := a.panelWidths()
	a.viewport.Width = max(20, leftWidth-4)
	a.viewport.Height = max(6, a.height-10)
	a.input.Width = max(20, leftWidth-8)
	a.refreshViewport()
}

func (a *App) panelWidths() (int, int) {
	width := a.width
	if width <= 0 {
		width = 100
	}
	rightWidth := max(32, width/3)
	leftWidth := width - rightWidth - 4
	if leftWidth < 40 {
		leftWidth = width - 4
		rightWidth = 0
	}
	return leftWidth, rightWidth
}

func (a *App) refreshViewport() {
	width := max(20, a.viewport.Width)
	wrap := lipgloss.NewStyle().Width(width)
	var blocks []string
	for _, line := range a.transcript {
		label := systemLabelStyle.Render("scopedesk")
		if line.role == roleUser {
			label = userLabelStyle.Render("you")
		}
		blocks = append(blocks, label+"\n"+wrap.Render(line.text))
	}
	a.viewport.SetContent(strings.Join(blocks, "\n\n"))
	a.viewport.GotoBottom()
}

// View renders the current state to a string.
func (a *App) View() string {
	leftWidth, rightWidth := a.panelWidths()

	header := titleStyle.Render("⬡ SCOPEDESK")
	left := lipgloss.JoinVertical(lipgloss.Left,
		a.viewport.View(),
		a.renderButtons(),
		a.input.View(),
	)
	leftBox := panelStyle.Width(max(20, leftWidth)).Render(left)

	var body string
	if rightWidth > 0 {
		rightBox := panelStyle.Width(max(20, rightWidth)).Render(a.renderArtifactPanel(rightWidth - 4))
		body = lipgloss.JoinHorizontal(lipgloss.Top, leftBox, rightBox)
	} else {
		body = leftBox
	}

	return strings.Join([]string{header, body, a.renderFooter()}, "\n")
}

func (a *App) renderButtons() string {
	if len(a.buttons) == 0 {
		return ""
	}
	var lines []string
	for i, b := range a.buttons {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, b.Label))
	}
	return buttonStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func (a *App) renderArtifactPanel(width int) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render("ASSESSMENT")
	body := lipgloss.NewStyle().Width(max(20, width)).Render(a.session.Artifact())
	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}

func (a *App) renderFooter() string {
	progress := a.session.Progress()
	parts := []string{
		fmt.Sprintf("Document %d%%", progress.Percent),
		fmt.Sprintf("Turns left: %d", a.session.TurnsRemaining()),
		fmt.Sprintf("Budget: %s", a.session.BudgetStatus()),
	}
	if a.busy {
		parts = append(parts, a.spin.View()+" "+a.busyLabel)
	}
	if a.statusMsg != "" {
		parts = append(parts, a.statusMsg)
	}
	line := footerStyle.Render(strings.Join(parts, " · "))
	if a.err != nil {
		line += "\n" + errStyle.Render(a.err.Error())
	}
	return line
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
