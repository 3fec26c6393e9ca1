package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/clive/intake-tui/internal/flow"
	"github.com/clive/intake-tui/internal/intake"
	"github.com/clive/intake-tui/internal/nav"
)

// field is one editable input, single-line or multi-line
type field interface {
	Focus() tea.Cmd
	Blur()
	Focused() bool
	Value() string
	SetValue(string)
	SetWidth(int)
	Update(tea.Msg) tea.Cmd
	View() string
	Multiline() bool
}

type lineField struct {
	input textinput.Model
}

func newLineField(placeholder string, secret bool) *lineField {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "❯ "
	ti.PromptStyle = InputPromptStyle
	ti.CharLimit = 256
	ti.Width = 40
	if secret {
		ti.EchoMode = textinput.EchoPassword
	}
	return &lineField{input: ti}
}

func (f *lineField) Focus() tea.Cmd { return f.input.Focus() }
func (f *lineField) Blur() { f.input.Blur() }
func (f *lineField) Focused() bool { return f.input.Focused() }
func (f *lineField) Value() string { return f.input.Value() }
func (f *lineField) SetValue(v string) { f.input.SetValue(v) }
func (f *lineField) SetWidth(w int) { f.input.Width = w }
func (f *lineField) View() string { return f.input.View() }
func (f *lineField) Multiline() bool { return false }

func (f *lineField) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return cmd
}

type areaField struct {
	area textarea.Model
}

func newAreaField(placeholder string, maxLength int) *areaField {
	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.ShowLineNumbers = false
	ta.CharLimit = maxLength // 0 is unlimited
	ta.SetWidth(50)
	ta.SetHeight(6)
	return &areaField{area: ta}
}

func (f *areaField) Focus() tea.Cmd { return f.area.Focus() }
func (f *areaField) Blur() { f.area.Blur() }
func (f *areaField) Focused() bool { return f.area.Focused() }
func (f *areaField) Value() string { return f.area.Value() }
func (f *areaField) SetValue(v string) { f.area.SetValue(v) }
func (f *areaField) SetWidth(w int) { f.area.SetWidth(w) }
func (f *areaField) View() string { return f.area.View() }
func (f *areaField) Multiline() bool { return true }

func (f *areaField) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.area, cmd = f.area.Update(msg)
	return cmd
}

type formField struct {
	name     string
	label    string
	required bool
	input    field
}

// form is one view: its inputs, focus and submission guard
type form struct {
	path   nav.Path
	title  string
	fields []formField
	focus  int
	guard  flow.Guard
}

func newLoginForm() *form {
	return &form{
		path:  nav.PathLogin,
		title: "Login",
		fields: []formField{
			{name: "email", label: "Email", required: true, input: newLineField("you@example.com", false)},
			{name: "password", label: "Password", required: true, input: newLineField("Password", true)},
		},
	}
}

func newRegisterForm() *form {
	return &form{
		path:  nav.PathRegister,
		title: "Register",
		fields: []formField{
			{name: "name", label: "Name", required: true, input: newLineField("Full name", false)},
			{name: "email", label: "Email", required: true, input: newLineField("you@example.com", false)},
			{name: "password", label: "Password", required: true, input: newLineField("Password", true)},
		},
	}
}

func newIntakeForm(schema intake.Schema) *form {
	f := &form{path: nav.PathIntakeForm, title: schema.Title}
	for _, sf := range schema.Fields {
		var input field
		if sf.Multiline {
			input = newAreaField(sf.Placeholder, sf.MaxLength)
		} else {
			lf := newLineField(sf.Placeholder, false)
			if sf.MaxLength > 0 {
				lf.input.CharLimit = sf.MaxLength
			}
			input = lf
		}
		f.fields = append(f.fields, formField{
			name:     sf.Name,
			label:    sf.Label,
			required: sf.Required,
			input:    input,
		})
	}
	return f
}

// focusCmd blurs every field but the focused one
func (f *form) focusCmd() tea.Cmd {
	var cmd tea.Cmd
	for i := range f.fields {
		if i == f.focus {
			cmd = f.fields[i].input.Focus()
			continue
		}
		f.fields[i].input.Blur()
	}
	return cmd
}

func (f *form) next() tea.Cmd {
	if len(f.fields) == 0 {
		return nil
	}
	f.focus = (f.focus + 1) % len(f.fields)
	return f.focusCmd()
}

func (f *form) prev() tea.Cmd {
	if len(f.fields) == 0 {
		return nil
	}
	f.focus = (f.focus - 1 + len(f.fields)) % len(f.fields)
	return f.focusCmd()
}

func (f *form) focused() field {
	if f.focus < 0 || f.focus >= len(f.fields) {
		return nil
	}
	return f.fields[f.focus].input
}

func (f *form) onLastField() bool {
	return f.focus == len(f.fields)-1
}

func (f *form) value(name string) string {
	for _, ff := range f.fields {
		if ff.name == name {
			return ff.input.Value()
		}
	}
	return ""
}

func (f *form) set(name, value string) {
	for _, ff := range f.fields {
		if ff.name == name {
			ff.input.SetValue(value)
			return
		}
	}
}

// payload collects every field, blank ones included
func (f *form) payload() intake.Payload {
	p := intake.NewPayload()
	for _, ff := range f.fields {
		p.Set(ff.name, ff.input.Value())
	}
	return p
}

func (f *form) setWidth(w int) {
	for _, ff := range f.fields {
		ff.input.SetWidth(w)
	}
}

// view renders labels and inputs, one block per field
func (f *form) view() string {
	var b strings.Builder
	for i, ff := range f.fields {
		label := LabelStyle.Render("  " + ff.label)
		if i == f.focus {
			label = FocusedLabelStyle.Render("▸ " + ff.label)
		}
		if ff.required {
			label += RequiredStyle.Render(" *")
		}
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(ff.input.View())
		if i < len(f.fields)-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}
