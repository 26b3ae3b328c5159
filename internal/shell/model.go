// File: internal/shell/model.go
package shell

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
	"github.com/xkilldash9x/scrapedeck/internal/guard"
	"github.com/xkilldash9x/scrapedeck/internal/orchestrator"
	"github.com/xkilldash9x/scrapedeck/internal/run"
)

// maxLines bounds the output scrollback.
const maxLines = 2000

type outputMsg Result

// Model holds the terminal UI state.
type Model struct {
	ctx   context.Context
	orc   *orchestrator.Orchestrator
	shell *Shell
	cmds  *Commander

	input  textinput.Model
	output viewport.Model
	lines  []Line
	width  int
	height int

	dirty      bool
	pending    guard.Action
	hasPending bool
	runState   schemas.RunState
	items      int
	busy       bool
	quitting   bool
}

// NewModel returns the initial state.
func NewModel(ctx context.Context, orc *orchestrator.Orchestrator, sh *Shell) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command, help for the list"
	ti.Prompt = "> "
	ti.CharLimit = 2048
	ti.Focus()

	m := Model{
		ctx:      ctx,
		orc:      orc,
		shell:    sh,
		cmds:     NewCommander(orc),
		input:    ti,
		output:   viewport.New(80, 20),
		dirty:    orc.Profile().IsDirty(),
		runState: orc.Runs().State(),
	}
	if path := orc.Path(); path != "" {
		m.appendLines(Line{Level: schemas.LevelInfo, Text: "Opened " + path})
	}
	m.appendLines(Line{Level: schemas.LevelInfo, Text: "Type help for commands."})
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.shell.listen())
}

// Update handles events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.output.Width = msg.Width
		m.output.Height = max(msg.Height-4, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil

	case dirtyMsg:
		m.dirty = bool(msg)
		return m, m.shell.listen()

	case closeMsg:
		m.quitting = true
		m.shell.Stop()
		return m, tea.Quit

	case runMsg:
		m.applyRunUpdate(run.Update(msg))
		return m, m.shell.listen()

	case outputMsg:
		m.busy = false
		m.pending, m.hasPending = msg.Pending, msg.HasPending
		m.appendLines(msg.Lines...)
		return m, nil

	case tea.KeyMsg:
		if m.hasPending {
			return m.handlePromptKey(msg)
		}
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, m.exec("quit")
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			m.appendLines(Line{Level: schemas.LevelInfo, Text: "> " + line})
			return m, m.exec(line)
		case tea.KeyPgUp, tea.KeyPgDown:
			m.output, cmd = m.output.Update(msg)
			return m, cmd
		}
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, cmd
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	key := msg.String()
	if msg.Type == tea.KeyEsc || msg.Type == tea.KeyCtrlC {
		key = "c"
	}
	d, ok := guard.ParseDecision(key)
	if !ok {
		return m, nil
	}
	m.busy = true
	cmds, ctx := m.cmds, m.ctx
	return m, func() tea.Msg { return outputMsg(cmds.Decide(ctx, d)) }
}

// exec runs a command off the UI goroutine; the orchestrator may block on
// file I/O and signals the shell back through its inbox.
func (m *Model) exec(line string) tea.Cmd {
	m.busy = true
	cmds, ctx := m.cmds, m.ctx
	return func() tea.Msg { return outputMsg(cmds.Exec(ctx, line)) }
}

func (m *Model) applyRunUpdate(u run.Update) {
	switch u.Kind {
	case run.UpdateState:
		m.runState = u.State
		switch u.State {
		case schemas.RunRunning:
			m.items = 0
		case schemas.RunCompleted:
			m.appendLines(Line{Level: schemas.LevelSuccess, Text: fmt.Sprintf("Run finished: %d records in %s", u.Summary.ItemCount, u.Summary.FileName)})
		case schemas.RunError:
			m.appendLines(Line{Level: schemas.LevelError, Text: "Run failed: " + u.Summary.FailureReason})
		}
	case run.UpdateLog:
		if u.Log != nil {
			m.appendLines(Line{Level: u.Log.Level, Text: u.Log.Timestamp.Format("15:04:05") + " " + u.Log.Text})
		}
	case run.UpdateItem:
		m.items++
		m.appendLines(Line{Level: schemas.LevelInfo, Text: fmt.Sprintf("  #%d %s", m.items, formatItem(u.Item))})
	}
}

func (m *Model) appendLines(lines ...Line) {
	m.lines = append(m.lines, lines...)
	if over := len(m.lines) - maxLines; over > 0 {
		m.lines = m.lines[over:]
	}
	m.refresh()
}

func (m *Model) refresh() {
	var b strings.Builder
	for i, l := range m.lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(levelStyle(l.Level).Render(l.Text))
	}
	m.output.SetContent(b.String())
	m.output.GotoBottom()
}

func formatItem(item schemas.ResultItem) string {
	parts := make([]string, 0, len(item))
	for _, f := range item {
		v := "null"
		if f.Value != nil {
			v = *f.Value
		}
		parts = append(parts, f.Name+"="+v)
	}
	return strings.Join(parts, "  ")
}
