package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hostbridge/hostbridge/bridge"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	classStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type inspectModel struct {
	err      error
	bench    *workbench
	input    textinput.Model
	result   string
	gcNote   string
	selected int
	state    modelState
}

type modelState int

const (
	stateSelectObject modelState = iota
	stateEnterCall
	stateShowResult
)

type callResultMsg struct {
	err    error
	result string
}

func newInspectModel() (*inspectModel, error) {
	bench, err := buildWorkbench()
	if err != nil {
		return nil, err
	}
	ti := textinput.New()
	ti.Placeholder = "method arg1 arg2"
	ti.Prompt = "> "
	ti.Width = 40
	return &inspectModel{bench: bench, input: ti}, nil
}

func (m *inspectModel) Init() tea.Cmd {
	return nil
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.bench.release()
			return m, tea.Quit

		case "q":
			if m.state != stateEnterCall {
				m.bench.release()
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectObject && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectObject && m.selected < len(m.bench.exhibits)-1 {
				m.selected++
			}

		case "g":
			// compaction with the TUI open shows rooted exhibits keep
			// their serials while handles move underneath
			if m.state == stateSelectObject {
				before := m.bench.rt.Host().LiveObjects()
				m.bench.rt.GCStart(true)
				m.gcNote = fmt.Sprintf("compacted: %d -> %d live objects",
					before, m.bench.rt.Host().LiveObjects())
			}

		case "enter":
			switch m.state {
			case stateSelectObject:
				m.input = textinput.New()
				m.input.Placeholder = strings.Join(m.bench.exhibits[m.selected].methods, "  ")
				m.input.Prompt = "> "
				m.input.Width = 60
				m.input.Focus()
				m.state = stateEnterCall

			case stateEnterCall:
				return m, m.callSelected

			case stateShowResult:
				m.state = stateSelectObject
				m.result = ""
				m.err = nil
			}

		case "esc":
			switch m.state {
			case stateEnterCall:
				m.state = stateSelectObject
			case stateShowResult:
				m.state = stateSelectObject
				m.result = ""
				m.err = nil
			}
		}

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateEnterCall {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *inspectModel) callSelected() tea.Msg {
	name, words := splitCall(m.input.Value())
	if name == "" {
		return callResultMsg{err: fmt.Errorf("nothing to call")}
	}
	e := m.bench.exhibits[m.selected]
	out, err := callMethod(m.bench.rt, e.value.Get(), name, words)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: out}
}

// parseArg turns one word of user input into a host value: integers,
// floats, booleans, nil, :symbols and quoted strings are recognized;
// anything else passes through as a string.
func parseArg(rt *bridge.Runtime, word string) bridge.Value {
	switch word {
	case "nil":
		return rt.NilValue()
	case "true":
		return rt.TrueValue()
	case "false":
		return rt.FalseValue()
	}
	if n, err := strconv.ParseInt(word, 10, 64); err == nil {
		return rt.Int(n)
	}
	if f, err := strconv.ParseFloat(word, 64); err == nil {
		return rt.Float(f)
	}
	if strings.HasPrefix(word, ":") {
		return rt.Sym(word[1:]).Value
	}
	if len(word) >= 2 && word[0] == '"' && word[len(word)-1] == '"' {
		return rt.Str(word[1 : len(word)-1]).Value
	}
	return rt.Str(word).Value
}

func (m *inspectModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Object Inspector"))
	b.WriteString(fmt.Sprintf("  %d live objects\n\n", m.bench.rt.Host().LiveObjects()))

	switch m.state {
	case stateSelectObject:
		for i, e := range m.bench.exhibits {
			line := m.formatExhibit(e)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		if m.gcNote != "" {
			b.WriteString("\n")
			b.WriteString(resultStyle.Render(m.gcNote))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • g compact • q quit"))

	case stateEnterCall:
		e := m.bench.exhibits[m.selected]
		b.WriteString(fmt.Sprintf("Call on %s:\n\n", nameStyle.Render(e.name)))
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter call • esc back"))

	case stateShowResult:
		e := m.bench.exhibits[m.selected]
		b.WriteString(fmt.Sprintf("Result on %s:\n\n", nameStyle.Render(e.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *inspectModel) formatExhibit(e exhibit) string {
	v := e.value.Get()
	return fmt.Sprintf("%s %s #%d %s",
		nameStyle.Render(fmt.Sprintf("%-16s", e.name)),
		classStyle.Render(fmt.Sprintf("%-10s", v.ClassName())),
		v.Serial(), v.Inspect())
}

func runInteractive() error {
	model, err := newInspectModel()
	if err != nil {
		return err
	}
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
