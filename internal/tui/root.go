package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/clive/intake-tui/internal/api"
	"github.com/clive/intake-tui/internal/flow"
	"github.com/clive/intake-tui/internal/intake"
	"github.com/clive/intake-tui/internal/nav"
)

// Session is what the UI reads from the session store
type Session interface {
	Token() (string, bool)
	Identity() string
}

// Flows runs submissions; implemented by *flow.Flows
type Flows interface {
	Login(ctx context.Context, creds api.Credentials) flow.Result
	Register(ctx context.Context, reg api.Registration) flow.Result
	SubmitIntake(ctx context.Context, schema intake.Schema, payload intake.Payload) flow.Result
}

// Messages

// loginDoneMsg is sent when a login submission finishes
type loginDoneMsg struct {
	result flow.Result
}

// registerDoneMsg is sent when a registration finishes
type registerDoneMsg struct {
	result flow.Result
	email  string
}

// intakeDoneMsg is sent when an intake submission finishes
type intakeDoneMsg struct {
	result flow.Result
}

type spinnerTickMsg struct{}

// Spinner frames for the submitting indicator
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Options configures NewRootModel
type Options struct {
	Session Session
	Flows   Flows
	Schema  intake.Schema
	Start   nav.Path // first view requested; the gate may redirect it
	Debug   bool
	BaseURL string // shown in the status bar
}

// Model is the root Bubble Tea model
type Model struct {
	// Terminal dimensions
	width  int
	height int
	ready  bool

	session Session
	flows   Flows
	gate    *nav.Gate
	schema  intake.Schema
	baseURL string

	// Routing
	current nav.Path
	pending nav.Path // protected view to open after login
	forms   map[nav.Path]*form

	notice   flow.Notice
	showHelp bool

	spinnerIndex int

	keys  KeyMap
	help  help.Model
	debug DebugPanel
}

// NewRootModel creates the root model and resolves the start view
func NewRootModel(opts Options) Model {
	schema := opts.Schema
	if len(schema.Fields) == 0 {
		schema = intake.DefaultSchema()
	}

	m := Model{
		session: opts.Session,
		flows:   opts.Flows,
		gate:    nav.NewGate(),
		schema:  schema,
		baseURL: opts.BaseURL,
		forms: map[nav.Path]*form{
			nav.PathLogin:      newLoginForm(),
			nav.PathRegister:   newRegisterForm(),
			nav.PathIntakeForm: newIntakeForm(schema),
		},
		keys:  DefaultKeyMap(),
		help:  help.New(),
		debug: NewDebugPanel(opts.Debug),
	}

	start := opts.Start
	if start == "" {
		start = nav.PathIntakeForm
	}
	m.navigate(start)
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, textarea.Blink)
}

// CurrentPath returns the view being shown
func (m Model) CurrentPath() nav.Path {
	return m.current
}

// Notice returns the message currently shown to the user
func (m Model) Notice() flow.Notice {
	return m.notice
}

func (m Model) form() *form {
	return m.forms[m.current]
}

// navigate asks the gate what to show for path and switches to it
func (m *Model) navigate(path nav.Path) tea.Cmd {
	decision := m.gate.Resolve(path, m.session)
	m.debug.AddEvent("nav", fmt.Sprintf("%s: %s", nav.Normalize(path), decision))

	if decision.Action == nav.ActionRedirect {
		if route, ok := m.gate.Lookup(path); ok && route.Protected {
			m.pending = route.Path
			m.notice = flow.Notice{Level: flow.LevelInfo, Text: "Please log in to continue"}
		}
	}

	m.current = decision.Path
	return m.form().focusCmd()
}

// inFlight reports whether any form is waiting for the backend
func (m Model) inFlight() bool {
	for _, f := range m.forms {
		if f.guard.InFlight() {
			return true
		}
	}
	return false
}

// submitCmd runs the current form's submission off the UI goroutine
func (m Model) submitCmd(f *form) tea.Cmd {
	flows := m.flows

	switch f.path {
	case nav.PathLogin:
		creds := api.Credentials{
			Email:    strings.TrimSpace(f.value("email")),
			Password: f.value("password"),
		}
		return func() tea.Msg {
			return loginDoneMsg{result: flows.Login(context.Background(), creds)}
		}

	case nav.PathRegister:
		reg := api.Registration{
			Name:     strings.TrimSpace(f.value("name")),
			Email:    strings.TrimSpace(f.value("email")),
			Password: f.value("password"),
		}
		return func() tea.Msg {
			return registerDoneMsg{result: flows.Register(context.Background(), reg), email: reg.Email}
		}

	case nav.PathIntakeForm:
		schema := m.schema
		payload := f.payload()
		return func() tea.Msg {
			return intakeDoneMsg{result: flows.SubmitIntake(context.Background(), schema, payload)}
		}
	}
	return nil
}

// submit starts a submission unless one is already running for this form
func (m *Model) submit() tea.Cmd {
	f := m.form()
	if err := f.guard.Begin(); err != nil {
		m.notice = flow.Notice{Level: flow.LevelInfo, Text: "Already submitting, please wait"}
		return nil
	}
	m.notice = flow.Notice{}
	m.debug.AddEvent("submit", string(f.path))
	return tea.Batch(m.submitCmd(f), spinnerTickCmd())
}

// spinnerTickCmd returns a fast tick command for spinner animation
func spinnerTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width

		inputWidth := m.width - 16 // box border, padding and prompt
		if inputWidth > 60 {
			inputWidth = 60
		}
		if inputWidth < 10 {
			inputWidth = 10
		}
		for _, f := range m.forms {
			f.setWidth(inputWidth)
		}
		return m, nil

	case spinnerTickMsg:
		if !m.inFlight() {
			return m, nil
		}
		m.spinnerIndex++
		return m, spinnerTickCmd()

	case DebugEventMsg:
		m.debug.AddLine(msg.Line)
		return m, nil

	case loginDoneMsg:
		f := m.forms[nav.PathLogin]
		f.guard.Finish(msg.result.Err)
		m.notice = msg.result.Notice
		if !msg.result.OK() {
			return m, nil
		}

		f.set("password", "")
		target := m.pending
		if target == "" {
			target = nav.PathIntakeForm
		}
		m.pending = ""
		cmd := m.navigate(target)
		return m, cmd

	case registerDoneMsg:
		f := m.forms[nav.PathRegister]
		f.guard.Finish(msg.result.Err)
		m.notice = msg.result.Notice
		if msg.result.OK() {
			f.set("password", "")
			m.forms[nav.PathLogin].set("email", msg.email)
		}
		return m, nil

	case intakeDoneMsg:
		// Fields are left as typed whatever the outcome
		m.forms[nav.PathIntakeForm].guard.Finish(msg.result.Err)
		m.notice = msg.result.Notice
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	// Blink and other input-internal messages go to the focused field
	if input := m.form().focused(); input != nil {
		return m, input.Update(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Escape) {
			m.showHelp = false
		}
		return m, nil
	}

	f := m.form()
	input := f.focused()

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.notice = flow.Notice{}
		return m, nil

	case key.Matches(msg, m.keys.Login):
		cmd := m.navigate(nav.PathLogin)
		return m, cmd

	case key.Matches(msg, m.keys.Register):
		cmd := m.navigate(nav.PathRegister)
		return m, cmd

	case key.Matches(msg, m.keys.Intake):
		cmd := m.navigate(nav.PathIntakeForm)
		return m, cmd

	case key.Matches(msg, m.keys.Next):
		return m, f.next()

	case key.Matches(msg, m.keys.Prev):
		return m, f.prev()

	case key.Matches(msg, m.keys.Submit):
		cmd := m.submit()
		return m, cmd

	case key.Matches(msg, m.keys.Enter) && input != nil && !input.Multiline():
		if f.onLastField() {
			cmd := m.submit()
			return m, cmd
		}
		return m, f.next()
	}

	if input != nil {
		return m, input.Update(msg)
	}
	return m, nil
}

// View renders the model
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.helpView()
	}

	header := m.renderHeader()
	statusBar := m.renderStatusBar()

	var debugPanel string
	debugHeight := 0
	if m.debug.IsEnabled() {
		debugHeight = 8
		debugPanel = m.debug.Render(m.width, debugHeight)
	}

	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(statusBar) - debugHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, m.renderForm())

	parts := []string{header, body}
	if debugPanel != "" {
		parts = append(parts, debugPanel)
	}
	parts = append(parts, statusBar)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderHeader renders the header bar
func (m Model) renderHeader() string {
	title := LogoStyle.Render("INTAKE")
	subtitle := SubtitleStyle.Render("  Patient Intake")

	who := "not signed in"
	if m.session != nil {
		if _, ok := m.session.Token(); ok {
			who = "signed in"
			if id := m.session.Identity(); id != "" {
				who = "signed in as " + id
			}
		}
	}

	return lipgloss.NewStyle().
		PaddingLeft(1).
		Width(m.width).
		Render(title + subtitle + IdentityStyle.Render(" · "+who))
}

// renderForm renders the boxed form of the current view
func (m Model) renderForm() string {
	f := m.form()

	var content strings.Builder
	content.WriteString(FormTitleStyle.Render(f.title))
	content.WriteString("\n\n")
	content.WriteString(f.view())
	content.WriteString("\n")

	if f.guard.InFlight() {
		spinner := spinnerFrames[m.spinnerIndex%len(spinnerFrames)]
		content.WriteString("\n")
		content.WriteString(WarningStyle.Render(spinner + " Submitting..."))
	} else if m.notice.Text != "" {
		content.WriteString("\n")
		content.WriteString(renderNotice(m.notice))
	}

	content.WriteString("\n\n")
	content.WriteString(DimStyle.Render(m.formHint()))

	return FormStyle.Render(content.String())
}

func (m Model) formHint() string {
	switch m.current {
	case nav.PathLogin:
		return "No account? ctrl+r register • enter submit"
	case nav.PathRegister:
		return "Have an account? ctrl+l login • enter submit"
	default:
		return "ctrl+s submit • tab next field"
	}
}

func renderNotice(n flow.Notice) string {
	switch n.Level {
	case flow.LevelError:
		return ErrorStyle.Render("✗ " + n.Text)
	case flow.LevelSuccess:
		return SuccessStyle.Render("✓ " + n.Text)
	default:
		return InfoStyle.Render("• " + n.Text)
	}
}

// renderStatusBar renders the bottom status line
func (m Model) renderStatusBar() string {
	var status string
	if m.inFlight() {
		status = StatusRunningStyle.Render("● Submitting")
	} else {
		status = StatusIdleStyle.Render("○ Ready")
	}

	location := SubtitleStyle.Render(" │ " + string(m.current))
	if m.baseURL != "" {
		location += SubtitleStyle.Render(" │ " + m.baseURL)
	}

	return StatusBarStyle.Render(status + location + SubtitleStyle.Render(" │ ") + m.help.ShortHelpView(m.keys.ShortHelp()))
}

// helpView renders the help overlay
func (m Model) helpView() string {
	title := HelpTitleStyle.Render("Keyboard Shortcuts")
	body := m.help.FullHelpView(m.keys.FullHelp())
	content := title + "\n\n" + body + "\n\n" + HelpDescStyle.Render("Press F1 or Esc to close")

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		HelpStyle.Render(content),
	)
}
