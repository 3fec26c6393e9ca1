package tui

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/clive/intake-tui/internal/api"
	"github.com/clive/intake-tui/internal/api/apitest"
	"github.com/clive/intake-tui/internal/flow"
	"github.com/clive/intake-tui/internal/intake"
	"github.com/clive/intake-tui/internal/nav"
	"github.com/clive/intake-tui/internal/session"
	"github.com/clive/intake-tui/internal/storage"
)

type testEnv struct {
	srv     *apitest.Server
	session *session.Session
}

// createTestModel wires a model to a fake backend and a file-backed session
func createTestModel(t *testing.T, start nav.Path) (Model, testEnv) {
	t.Helper()

	srv := apitest.NewServer()
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sess := session.New(storage.NewFileStore(filepath.Join(t.TempDir(), "session.json")), "", logger)
	flows := flow.New(api.NewClient(srv.URL, api.WithLogger(logger)), sess, logger)

	m := NewRootModel(Options{
		Session: sess,
		Flows:   flows,
		Schema:  intake.DefaultSchema(),
		Start:   start,
		BaseURL: srv.URL,
	})
	return m, testEnv{srv: srv, session: sess}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func press(t *testing.T, m Model, k tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: k})
}

// collect runs cmd, expanding batches, and returns every message produced
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// finish runs a submission command and feeds its result back into the model
func finish(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for _, msg := range collect(cmd) {
		switch msg.(type) {
		case loginDoneMsg, registerDoneMsg, intakeDoneMsg:
			m, _ = update(t, m, msg)
			return m
		}
	}
	t.Fatal("command produced no submission result")
	return m
}

func TestStartRedirectsToLoginWithoutToken(t *testing.T) {
	m, _ := createTestModel(t, nav.PathIntakeForm)

	if m.CurrentPath() != nav.PathLogin {
		t.Errorf("current = %s, want /login", m.CurrentPath())
	}
	if m.pending != nav.PathIntakeForm {
		t.Errorf("pending = %q, want /intake-form", m.pending)
	}
	if m.Notice().Text != "Please log in to continue" {
		t.Errorf("notice = %q", m.Notice().Text)
	}
}

func TestStartPaths(t *testing.T) {
	tests := []struct {
		name     string
		start    nav.Path
		token    string
		wantPath nav.Path
	}{
		{"intake with token", nav.PathIntakeForm, "abc123", nav.PathIntakeForm},
		{"register without token", nav.PathRegister, "", nav.PathRegister},
		{"login with token", nav.PathLogin, "abc123", nav.PathLogin},
		{"unknown path", "/admin", "abc123", nav.PathLogin},
		{"default start without token", "", "", nav.PathLogin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := session.New(storage.NewFileStore(filepath.Join(t.TempDir(), "s.json")), "", nil)
			if tt.token != "" {
				if err := sess.SetToken(context.Background(), tt.token); err != nil {
					t.Fatal(err)
				}
			}

			m := NewRootModel(Options{Session: sess, Start: tt.start})
			if m.CurrentPath() != tt.wantPath {
				t.Errorf("current = %s, want %s", m.CurrentPath(), tt.wantPath)
			}
		})
	}
}

// TestLoginScenario logs in through the keyboard and lands on the requested form
func TestLoginScenario(t *testing.T) {
	m, env := createTestModel(t, nav.PathIntakeForm)
	env.srv.AddAccount("A", "a@b.com", "x")
	env.srv.FixToken("abc123")

	m = typeText(t, m, "a@b.com")
	m, _ = press(t, m, tea.KeyEnter) // advances to password
	m = typeText(t, m, "x")

	m, cmd := press(t, m, tea.KeyEnter)
	if cmd == nil {
		t.Fatal("expected submission command")
	}
	if !m.forms[nav.PathLogin].guard.InFlight() {
		t.Fatal("login should be in flight")
	}

	// Second submit while the first is outstanding is refused
	var again tea.Cmd
	m, again = press(t, m, tea.KeyCtrlS)
	if again != nil {
		t.Error("double submit must not start another request")
	}
	if !strings.Contains(m.Notice().Text, "Already submitting") {
		t.Errorf("notice = %q", m.Notice().Text)
	}

	m = finish(t, m, cmd)

	if token, ok := env.session.Token(); !ok || token != "abc123" {
		t.Fatalf("session token = %q, %v; want abc123", token, ok)
	}
	if m.CurrentPath() != nav.PathIntakeForm {
		t.Errorf("current = %s, want /intake-form", m.CurrentPath())
	}
	if m.forms[nav.PathLogin].value("password") != "" {
		t.Error("password should be cleared after login")
	}
	if m.forms[nav.PathLogin].guard.InFlight() {
		t.Error("guard should be idle after completion")
	}
	if got := len(env.srv.Requests()); got != 1 {
		t.Errorf("backend saw %d requests, want 1", got)
	}
}

func TestLoginFailureStaysOnLogin(t *testing.T) {
	m, env := createTestModel(t, nav.PathLogin)

	m.forms[nav.PathLogin].set("email", "a@b.com")
	m.forms[nav.PathLogin].set("password", "wrong")
	m, cmd := press(t, m, tea.KeyCtrlS)
	m = finish(t, m, cmd)

	if env.session.Authenticated() {
		t.Error("failed login must not store a token")
	}
	if m.CurrentPath() != nav.PathLogin {
		t.Errorf("current = %s, want /login", m.CurrentPath())
	}
	if n := m.Notice(); n.Level != flow.LevelError || n.Text != "Login failed: Invalid credentials" {
		t.Errorf("notice = %+v", n)
	}
	if m.forms[nav.PathLogin].value("password") != "wrong" {
		t.Error("inputs should be kept after a failure")
	}

	// The intake form stays out of reach
	m, _ = press(t, m, tea.KeyCtrlF)
	if m.CurrentPath() != nav.PathLogin {
		t.Errorf("intake should redirect to login, got %s", m.CurrentPath())
	}
}

func TestRegisterScenario(t *testing.T) {
	m, env := createTestModel(t, nav.PathLogin)

	m, _ = press(t, m, tea.KeyCtrlR)
	if m.CurrentPath() != nav.PathRegister {
		t.Fatalf("current = %s, want /register", m.CurrentPath())
	}

	m = typeText(t, m, "Ana")
	m, _ = press(t, m, tea.KeyTab)
	m = typeText(t, m, "ana@example.com")
	m, _ = press(t, m, tea.KeyTab)
	m = typeText(t, m, "pw")

	m, cmd := press(t, m, tea.KeyEnter)
	m = finish(t, m, cmd)

	if n := m.Notice(); n.Level != flow.LevelSuccess || n.Text != "Registration successful" {
		t.Errorf("notice = %+v", n)
	}
	if env.session.Authenticated() {
		t.Error("registration must not sign the user in")
	}
	if !env.srv.HasAccount("ana@example.com") {
		t.Error("account not created")
	}
	if got := m.forms[nav.PathLogin].value("email"); got != "ana@example.com" {
		t.Errorf("login email = %q, want it prefilled", got)
	}
	if m.CurrentPath() != nav.PathRegister {
		t.Errorf("current = %s, want to stay on /register", m.CurrentPath())
	}
}

func TestIntakeScenario(t *testing.T) {
	m, env := createTestModel(t, nav.PathLogin)
	env.srv.IssueToken("abc123", "a@b.com")
	if err := env.session.SetToken(context.Background(), "abc123"); err != nil {
		t.Fatal(err)
	}

	m, _ = press(t, m, tea.KeyCtrlF)
	if m.CurrentPath() != nav.PathIntakeForm {
		t.Fatalf("current = %s, want /intake-form", m.CurrentPath())
	}

	m = typeText(t, m, "patient notes")

	// Enter in the multi-line field is a newline, not a submit
	var cmd tea.Cmd
	m, _ = press(t, m, tea.KeyEnter)
	if m.forms[nav.PathIntakeForm].guard.InFlight() {
		t.Fatal("enter in a text area must not submit")
	}
	m, _ = press(t, m, tea.KeyBackspace)

	m, cmd = press(t, m, tea.KeyCtrlS)
	m = finish(t, m, cmd)

	if n := m.Notice(); n.Text != "Form submitted successfully" {
		t.Errorf("notice = %+v", n)
	}

	req, ok := env.srv.LastRequest("/submit_forms")
	if !ok {
		t.Fatal("no submission reached the backend")
	}
	if got := req.Header.Get("Authorization"); got != "Bearer abc123" {
		t.Errorf("Authorization = %q", got)
	}
	if string(req.Body) != `{"forms":{"details":"patient notes"}}` {
		t.Errorf("body = %s", req.Body)
	}
	if got := m.forms[nav.PathIntakeForm].value("details"); got != "patient notes" {
		t.Errorf("details = %q, want it kept after submit", got)
	}
}

func TestIntakeValidationBlocksRequest(t *testing.T) {
	m, env := createTestModel(t, nav.PathLogin)
	_ = env.session.SetToken(context.Background(), "abc123")
	m, _ = press(t, m, tea.KeyCtrlF)

	m, cmd := press(t, m, tea.KeyCtrlS)
	m = finish(t, m, cmd)

	if n := m.Notice(); n.Level != flow.LevelError || n.Text != "Submission failed: Patient details is required" {
		t.Errorf("notice = %+v", n)
	}
	if len(env.srv.Requests()) != 0 {
		t.Error("blank form must not be sent")
	}
}

func TestSpinnerStopsWhenIdle(t *testing.T) {
	m, _ := createTestModel(t, nav.PathLogin)

	_, cmd := update(t, m, spinnerTickMsg{})
	if cmd != nil {
		t.Error("spinner should not reschedule while idle")
	}

	m.forms[nav.PathLogin].guard.Begin()
	next, cmd := update(t, m, spinnerTickMsg{})
	if cmd == nil {
		t.Error("spinner should keep ticking while submitting")
	}
	if next.spinnerIndex != m.spinnerIndex+1 {
		t.Errorf("spinnerIndex = %d", next.spinnerIndex)
	}
}

func TestHelpAndQuit(t *testing.T) {
	m, _ := createTestModel(t, nav.PathLogin)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	m, _ = press(t, m, tea.KeyF1)
	if !m.showHelp {
		t.Fatal("f1 should open help")
	}
	if !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Error("help view not rendered")
	}

	// Keys other than close are swallowed while help is open
	m, _ = press(t, m, tea.KeyCtrlR)
	if m.CurrentPath() != nav.PathLogin {
		t.Error("navigation should be ignored under the help overlay")
	}

	m, _ = press(t, m, tea.KeyEsc)
	if m.showHelp {
		t.Error("esc should close help")
	}

	_, cmd := press(t, m, tea.KeyCtrlC)
	if cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should return tea.Quit")
	}
}

func TestView(t *testing.T) {
	m, env := createTestModel(t, nav.PathLogin)
	if m.View() != "Loading..." {
		t.Error("view before window size should be a placeholder")
	}

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	view := m.View()
	for _, want := range []string{"INTAKE", "Login", "Email", "Password", "not signed in", "/login"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	_ = env.session.SetToken(context.Background(), "opaque-token")
	m, _ = press(t, m, tea.KeyCtrlF)
	view = m.View()
	if !strings.Contains(view, "Intake Form") || !strings.Contains(view, "Patient details") {
		t.Error("intake form not rendered")
	}
	if !strings.Contains(view, "signed in") || strings.Contains(view, "not signed in") {
		t.Error("header should show the signed in state")
	}
}

func TestDebugPanel(t *testing.T) {
	m := NewRootModel(Options{Debug: true, Start: nav.PathRegister})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m, _ = update(t, m, DebugEventMsg{Line: "INFO api request path=/login"})

	lines := m.debug.Lines()
	if len(lines) < 2 {
		t.Fatalf("lines = %v", lines)
	}
	if !strings.HasSuffix(lines[len(lines)-1], "INFO api request path=/login") {
		t.Errorf("last line = %q", lines[len(lines)-1])
	}
	if !strings.Contains(lines[0], "[nav]") {
		t.Errorf("first line = %q, want navigation event", lines[0])
	}
	if !strings.Contains(m.View(), "DEBUG") {
		t.Error("debug panel not rendered")
	}

	disabled := NewDebugPanel(false)
	disabled.AddLine("ignored")
	if len(disabled.Lines()) != 0 {
		t.Error("disabled panel should not record")
	}
}

func TestDebugPanelBuffer(t *testing.T) {
	d := NewDebugPanel(true)
	for i := 0; i < 150; i++ {
		d.AddEvent("tick", "")
	}
	if len(d.Lines()) != 100 {
		t.Errorf("kept %d lines, want 100", len(d.Lines()))
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"ééééééé", 5, "éé..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestFocusCycles(t *testing.T) {
	m, _ := createTestModel(t, nav.PathRegister)
	f := m.forms[nav.PathRegister]

	if !f.fields[0].input.Focused() {
		t.Fatal("first field should start focused")
	}
	m, _ = press(t, m, tea.KeyShiftTab)
	if f.focus != 2 || !f.fields[2].input.Focused() || f.fields[0].input.Focused() {
		t.Errorf("shift+tab should wrap to the last field, focus = %d", f.focus)
	}
	press(t, m, tea.KeyTab)
	if f.focus != 0 {
		t.Errorf("tab should wrap to the first field, focus = %d", f.focus)
	}
}

// keep the tick helper honest: it must produce spinnerTickMsg
func TestSpinnerTickCmd(t *testing.T) {
	start := time.Now()
	if _, ok := spinnerTickCmd()().(spinnerTickMsg); !ok {
		t.Error("expected spinnerTickMsg")
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("tick fired too early")
	}
}
