// Package wizard is the terminal front end of the report submission workflow.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/geo"
	"github.com/pashurakshak/rakshak/internal/model"
	"github.com/pashurakshak/rakshak/internal/submission"
)

// SubmitFunc files a completed draft.
type SubmitFunc func(ctx context.Context, d *submission.Draft) (model.Report, error)

// LocateFunc resolves the device position, address included.
type LocateFunc func(ctx context.Context) (model.Position, error)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	focusStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle     = lipgloss.NewStyle().Faint(true)
)

type locatedMsg struct {
	pos model.Position
	err error
}

// submittedMsg carries the copy that was submitted so its uploads can be
// folded back into the live draft on the event loop.
type submittedMsg struct {
	sent   *submission.Draft
	report model.Report
	err    error
}

// Model is the bubbletea model of the three-step wizard.
type Model struct {
	ctx    context.Context
	wiz    *submission.Wizard
	submit SubmitFunc
	locate LocateFunc

	focus     int
	animalIdx int
	condIdx   int
	// text buffers by step, then by field
	inputs [submission.Steps + 1][3][]rune

	status  string
	failed  bool
	busy    bool
	report  *model.Report
	aborted bool
}

// New builds the wizard over d. locate may be nil when no device source is configured.
func New(ctx context.Context, d *submission.Draft, submit SubmitFunc, locate LocateFunc) Model {
	m := Model{ctx: ctx, wiz: submission.NewWizard(d), submit: submit, locate: locate}
	d = m.wiz.Draft
	// -1 leaves the list unselected until the user picks
	m.animalIdx = indexOf(model.AnimalTypes, d.AnimalType)
	m.condIdx = indexOf(model.Conditions, d.Condition)
	m.inputs[submission.StepDescription][0] = []rune(d.Description)
	m.inputs[submission.StepDescription][1] = []rune(d.InjuryDescription)
	m.inputs[submission.StepDescription][2] = []rune(d.AdditionalNotes)
	return m
}

// Report returns the created report once the wizard has submitted.
func (m Model) Report() (model.Report, bool) {
	if m.report == nil {
		return model.Report{}, false
	}
	return *m.report, true
}

// Aborted reports whether the user left without submitting.
func (m Model) Aborted() bool { return m.aborted }

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case locatedMsg:
		m.busy = false
		if msg.err != nil {
			m.setError(errors.New(geo.Message(msg.err)))
			return m, nil
		}
		m.wiz.Draft.SetPosition(msg.pos)
		m.setInfo("Location set: " + describe(msg.pos))
		return m, nil

	case submittedMsg:
		m.busy = false
		if msg.err != nil {
			m.wiz.Draft.KeepUploads(msg.sent)
			m.setError(msg.err)
			return m, nil
		}
		m.wiz.Draft.Reset()
		m.report = &msg.report
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.aborted = true
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		return m.key(msg)
	}
	return m, nil
}

func (m Model) key(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.Type {
	case tea.KeyEsc:
		if !m.wiz.Back() {
			m.aborted = true
			return m, tea.Quit
		}
		m.focus = 0
		m.status = ""
		return m, nil
	case tea.KeyTab:
		m.focus = (m.focus + 1) % m.fields()
		return m, nil
	case tea.KeyShiftTab:
		m.focus = (m.focus + m.fields() - 1) % m.fields()
		return m, nil
	}

	switch m.wiz.Step() {
	case submission.StepDetails:
		return m.keyDetails(k)
	case submission.StepDescription:
		return m.keyDescription(k)
	default:
		return m.keyEvidence(k)
	}
}

func (m Model) fields() int {
	switch m.wiz.Step() {
	case submission.StepDetails, submission.StepEvidence:
		return 2
	default:
		return 3
	}
}

func (m Model) keyDetails(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.Type {
	case tea.KeyUp, tea.KeyDown:
		delta := 1
		if k.Type == tea.KeyUp {
			delta = -1
		}
		if m.focus == 0 {
			m.animalIdx = move(m.animalIdx, delta, len(model.AnimalTypes))
			m.wiz.Draft.AnimalType = model.AnimalTypes[m.animalIdx]
		} else {
			m.condIdx = move(m.condIdx, delta, len(model.Conditions))
			m.wiz.Draft.Condition = model.Conditions[m.condIdx]
		}
	case tea.KeyEnter:
		return m.next()
	}
	return m, nil
}

func (m Model) keyDescription(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if k.Type == tea.KeyEnter {
		m.syncDescription()
		return m.next()
	}
	m.edit(k)
	m.syncDescription()
	return m, nil
}

func (m *Model) syncDescription() {
	in := m.inputs[submission.StepDescription]
	m.wiz.Draft.Description = string(in[0])
	m.wiz.Draft.InjuryDescription = string(in[1])
	m.wiz.Draft.AdditionalNotes = string(in[2])
}

func (m Model) keyEvidence(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case k.Type == tea.KeyCtrlL:
		if m.locate == nil {
			m.setError(errors.New("no location source configured; type lat,lon instead"))
			return m, nil
		}
		m.busy = true
		m.setInfo("Locating…")
		locate, ctx := m.locate, m.ctx
		return m, func() tea.Msg {
			pos, err := locate(ctx)
			return locatedMsg{pos: pos, err: err}
		}

	case k.Type == tea.KeyCtrlS:
		if err := m.wiz.Next(); err != nil {
			m.setError(err)
			return m, nil
		}
		m.busy = true
		m.setInfo("Submitting…")
		// submit works on a copy; View keeps reading the live draft meanwhile
		submit, ctx, d := m.submit, m.ctx, m.wiz.Draft.Clone()
		return m, func() tea.Msg {
			r, err := submit(ctx, d)
			return submittedMsg{sent: d, report: r, err: err}
		}

	case k.Type == tea.KeyEnter:
		text := strings.TrimSpace(string(m.inputs[submission.StepEvidence][m.focus]))
		if text == "" {
			return m, nil
		}
		if m.focus == 0 {
			if err := m.wiz.Draft.AddImage(text); err != nil {
				m.setError(err)
				return m, nil
			}
			m.setInfo(fmt.Sprintf("Added %s (%d/%d)", text, len(m.wiz.Draft.Images), submission.MaxImages))
		} else {
			pos, err := geo.ParsePosition(text)
			if err != nil {
				m.setError(err)
				return m, nil
			}
			m.wiz.Draft.SetPosition(pos)
			m.setInfo("Location set: " + describe(pos))
		}
		m.inputs[submission.StepEvidence][m.focus] = nil
		return m, nil
	}
	m.edit(k)
	return m, nil
}

func (m Model) next() (tea.Model, tea.Cmd) {
	if err := m.wiz.Next(); err != nil {
		m.setError(err)
		return m, nil
	}
	m.focus = 0
	m.status = ""
	return m, nil
}

func (m *Model) edit(k tea.KeyMsg) {
	buf := m.inputs[m.wiz.Step()][m.focus]
	switch k.Type {
	case tea.KeyRunes:
		buf = append(buf, k.Runes...)
	case tea.KeySpace:
		buf = append(buf, ' ')
	case tea.KeyBackspace:
		if len(buf) > 0 {
			buf = buf[:len(buf)-1]
		}
	}
	m.inputs[m.wiz.Step()][m.focus] = buf
}

func (m *Model) setError(err error) {
	var fe *errs.FieldError
	if errors.As(err, &fe) {
		m.status = fe.Field + ": " + fe.Reason
	} else {
		m.status = err.Error()
	}
	m.failed = true
}

func (m *Model) setInfo(s string) {
	m.status = s
	m.failed = false
}

func (m Model) View() string {
	var b strings.Builder
	step := m.wiz.Step()
	b.WriteString(titleStyle.Render("Report an animal in distress"))
	b.WriteString("  ")
	b.WriteString(progressStyle.Render(m.wiz.Progress() + " · " + step.String()))
	b.WriteString("\n\n")

	switch step {
	case submission.StepDetails:
		b.WriteString(m.list("Animal", m.focus == 0, m.animalIdx, len(model.AnimalTypes), func(i int) string { return string(model.AnimalTypes[i]) }))
		b.WriteString("\n")
		b.WriteString(m.list("Condition", m.focus == 1, m.condIdx, len(model.Conditions), func(i int) string { return string(model.Conditions[i]) }))
	case submission.StepDescription:
		n := len([]rune(strings.TrimSpace(m.wiz.Draft.Description)))
		b.WriteString(m.field(0, fmt.Sprintf("Description (%d/%d min)", n, submission.MinDescriptionLen)))
		b.WriteString(m.field(1, "Injury details (optional)"))
		b.WriteString(m.field(2, "Additional notes (optional)"))
	default:
		for i, im := range m.wiz.Draft.Images {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, im.Name())
		}
		b.WriteString(m.field(0, fmt.Sprintf("Photo path (%d/%d)", len(m.wiz.Draft.Images), submission.MaxImages)))
		loc := "not set"
		if p := m.wiz.Draft.Position; p != nil {
			loc = describe(*p)
		}
		b.WriteString(m.field(1, "Location lat,lon ["+loc+"]"))
	}

	b.WriteString("\n")
	if m.status != "" {
		style := okStyle
		if m.failed {
			style = errorStyle
		}
		b.WriteString(style.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(m.help()))
	b.WriteString("\n")
	return b.String()
}

func (m Model) help() string {
	switch m.wiz.Step() {
	case submission.StepDetails:
		return "↑/↓ choose · tab switch list · enter next · esc cancel"
	case submission.StepDescription:
		return "type · tab next field · enter continue · esc back"
	default:
		h := "enter add · tab switch · ctrl+s submit · esc back"
		if m.locate != nil {
			h = "enter add · tab switch · ctrl+l locate me · ctrl+s submit · esc back"
		}
		return h
	}
}

func (m Model) list(label string, focused bool, sel, n int, name func(int) string) string {
	var b strings.Builder
	head := label + ":"
	if focused {
		head = focusStyle.Render(head)
	}
	b.WriteString(head + "\n")
	for i := 0; i < n; i++ {
		cursor := "  "
		line := name(i)
		if i == sel {
			cursor = "> "
			if focused {
				line = focusStyle.Render(line)
			}
		}
		b.WriteString("  " + cursor + line + "\n")
	}
	return b.String()
}

func (m Model) field(i int, label string) string {
	head := label + ": "
	text := string(m.inputs[m.wiz.Step()][i])
	if i == m.focus {
		head = focusStyle.Render(head)
		text += "_"
	}
	return head + text + "\n"
}

func describe(p model.Position) string {
	if p.Address != "" {
		return p.Address
	}
	return geo.FormatCoordinates(p.Latitude, p.Longitude)
}

func wrap(i, n int) int { return (i%n + n) % n }

// move steps a list cursor; from no selection, down lands on the first entry
// and up on the last.
func move(i, delta, n int) int {
	if i < 0 {
		if delta > 0 {
			return 0
		}
		return n - 1
	}
	return wrap(i+delta, n)
}

func indexOf[T comparable](list []T, v T) int {
	for i, have := range list {
		if have == v {
			return i
		}
	}
	return -1
}

// Run shows the wizard on the terminal until the report is filed or the user leaves.
func Run(ctx context.Context, d *submission.Draft, submit SubmitFunc, locate LocateFunc) (model.Report, error) {
	final, err := tea.NewProgram(New(ctx, d, submit, locate), tea.WithContext(ctx)).Run()
	if err != nil {
		return model.Report{}, err
	}
	m := final.(Model)
	if r, ok := m.Report(); ok {
		return r, nil
	}
	return model.Report{}, ErrAborted
}

// ErrAborted is returned by Run when the user leaves the wizard.
var ErrAborted = errors.New("report cancelled")
