package shell

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
	"github.com/xkilldash9x/scrapedeck/internal/bridge"
	"github.com/xkilldash9x/scrapedeck/internal/guard"
	"github.com/xkilldash9x/scrapedeck/internal/orchestrator"
	"github.com/xkilldash9x/scrapedeck/internal/persistence"
	"github.com/xkilldash9x/scrapedeck/internal/run"
)

// -- Setup --

type recordingEngine struct {
	mu   sync.Mutex
	reqs []schemas.RunRequest
}

func (e *recordingEngine) StartRun(_ context.Context, req schemas.RunRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reqs = append(e.reqs, req)
	return nil
}

type shellHarness struct {
	sh     *Shell
	orc    *orchestrator.Orchestrator
	cmds   *Commander
	engine *recordingEngine
	dir    string
}

func newShellHarness(t *testing.T) *shellHarness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	dir := t.TempDir()
	bus := bridge.NewEventBus(logger, 16)
	files, err := persistence.NewFileStore(logger, dir, "")
	require.NoError(t, err)

	sh := New()
	engine := &recordingEngine{}
	orc, err := orchestrator.New(logger, orchestrator.Deps{
		Engine:      engine,
		Events:      bus,
		Persistence: files,
		Shell:       sh,
	}, orchestrator.WithRunOptions(run.WithClock(func() time.Time {
		return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	})))
	require.NoError(t, err)
	t.Cleanup(func() {
		sh.Stop()
		orc.Shutdown()
		bus.Shutdown()
	})
	return &shellHarness{sh: sh, orc: orc, cmds: NewCommander(orc), engine: engine, dir: dir}
}

func (h *shellHarness) exec(t *testing.T, line string) Result {
	t.Helper()
	return h.cmds.Exec(context.Background(), line)
}

func texts(res Result) string {
	var b strings.Builder
	for _, l := range res.Lines {
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

func hasLevel(res Result, level schemas.LogLevel) bool {
	for _, l := range res.Lines {
		if l.Level == level {
			return true
		}
	}
	return false
}

// drain returns the signals queued for the program so far.
func (h *shellHarness) drain() []tea.Msg {
	var out []tea.Msg
	for {
		select {
		case msg := <-h.sh.inbox:
			out = append(out, msg)
		default:
			return out
		}
	}
}

// -- Tests --

func TestCommander_EditsProfile(t *testing.T) {
	h := newShellHarness(t)

	h.exec(t, "url https://shop.example.com/list")
	h.exec(t, "format csv")
	h.exec(t, "add name li.product h2")
	h.exec(t, "add image li.product img")
	h.exec(t, "mode 2 attribute src")
	h.exec(t, "mv 2 1")

	p := h.orc.Profile().Current()
	assert.Equal(t, "https://shop.example.com/list", p.TargetURL)
	assert.Equal(t, schemas.FormatCSV, p.ExportFormat)
	require.Len(t, p.Extractors, 2)
	assert.Equal(t, "image", p.Extractors[0].FieldName)
	assert.Equal(t, schemas.ModeAttribute, p.Extractors[0].Mode)
	assert.Equal(t, "src", p.Extractors[0].AttributeName)
	assert.Equal(t, "li.product h2", p.Extractors[1].Selector, "selectors keep their spaces")

	res := h.exec(t, "rm 1")
	assert.Empty(t, res.Lines)
	assert.Len(t, h.orc.Profile().Current().Extractors, 1)

	assert.Contains(t, texts(h.exec(t, "show")), "li.product h2")
}

func TestCommander_RejectsBadInput(t *testing.T) {
	h := newShellHarness(t)
	for _, line := range []string{"format pdf", "debug maybe", "rm 1", "field x name", "mode 1 text", "frobnicate"} {
		res := h.exec(t, line)
		assert.True(t, hasLevel(res, schemas.LevelError), line)
	}
}

func TestCommander_RunAndValidation(t *testing.T) {
	h := newShellHarness(t)
	h.exec(t, "url example.com")
	h.exec(t, "add title h1")
	h.exec(t, "selector 1   ")

	res := h.exec(t, "run")
	assert.True(t, hasLevel(res, schemas.LevelError))
	assert.Contains(t, texts(res), "missing selector")
	assert.Empty(t, h.engine.reqs)

	h.exec(t, "selector 1 h1.title")
	res = h.exec(t, "run")
	require.False(t, hasLevel(res, schemas.LevelError), texts(res))
	assert.Contains(t, texts(res), "example.com_20240309-140507.json")
	require.Len(t, h.engine.reqs, 1)
}

func TestCommander_SaveLoadAndDirtySignals(t *testing.T) {
	h := newShellHarness(t)
	h.exec(t, "url example.com")
	h.exec(t, "add title h1")

	res := h.exec(t, "save")
	assert.True(t, hasLevel(res, schemas.LevelWarning), "no path yet")

	res = h.exec(t, "save first")
	require.True(t, hasLevel(res, schemas.LevelSuccess), texts(res))
	assert.Equal(t, filepath.Join(h.dir, "first.json"), h.orc.Path())

	assert.Equal(t, []tea.Msg{dirtyMsg(true), dirtyMsg(false)}, h.drain())

	h.exec(t, "reset")
	assert.Empty(t, h.orc.Profile().Current().Extractors)

	res = h.exec(t, "load first")
	require.True(t, hasLevel(res, schemas.LevelSuccess), texts(res))
	assert.Equal(t, "example.com", h.orc.Profile().Current().TargetURL)
	assert.False(t, h.orc.Profile().IsDirty())

	res = h.exec(t, "load")
	assert.False(t, hasLevel(res, schemas.LevelSuccess), texts(res))
	assert.True(t, hasLevel(res, schemas.LevelWarning))
	assert.NotContains(t, texts(res), "Loaded")
	assert.Equal(t, filepath.Join(h.dir, "first.json"), h.orc.Path())
}

func TestCommander_GuardedResetAndClose(t *testing.T) {
	h := newShellHarness(t)
	h.exec(t, "add title h1")

	res := h.exec(t, "reset")
	require.True(t, res.HasPending)
	assert.Equal(t, guard.ActionReset, res.Pending)

	res = h.cmds.Decide(context.Background(), guard.DecisionDiscard)
	assert.False(t, res.HasPending)
	assert.Empty(t, h.orc.Profile().Current().Extractors)
	h.drain()

	h.exec(t, "add title h1")
	res = h.exec(t, "quit")
	require.True(t, res.HasPending)

	res = h.cmds.Decide(context.Background(), guard.DecisionSave)
	assert.True(t, res.HasPending, "a save with no path keeps the prompt up")
	assert.True(t, hasLevel(res, schemas.LevelError))
	assert.NotContains(t, h.drain(), tea.Msg(closeMsg{force: true}))

	res = h.cmds.Decide(context.Background(), guard.DecisionDiscard)
	assert.False(t, res.HasPending)
	assert.Contains(t, h.drain(), tea.Msg(closeMsg{force: true}))
}

func TestCommander_CleanQuitProceeds(t *testing.T) {
	h := newShellHarness(t)
	res := h.exec(t, "quit")
	assert.False(t, res.HasPending)
	assert.Equal(t, []tea.Msg{closeMsg{}}, h.drain())
}

func TestModel_Signals(t *testing.T) {
	h := newShellHarness(t)
	m := NewModel(context.Background(), h.orc, h.sh)

	next, cmd := m.Update(dirtyMsg(true))
	m = next.(Model)
	assert.True(t, m.dirty)
	assert.NotNil(t, cmd, "the model keeps listening")
	assert.Contains(t, m.View(), "unsaved")

	next, _ = m.Update(runMsg(run.Update{Kind: run.UpdateLog, Log: &schemas.LogMessage{Level: schemas.LevelInfo, Text: "Opening page"}}))
	m = next.(Model)
	assert.Contains(t, m.lines[len(m.lines)-1].Text, "Opening page")

	next, _ = m.Update(runMsg(run.Update{Kind: run.UpdateItem, Item: schemas.ResultItem{{Name: "name", Value: schemas.StringPtr("Rug")}, {Name: "url"}}}))
	m = next.(Model)
	assert.Equal(t, "  #1 name=Rug  url=null", m.lines[len(m.lines)-1].Text)

	_, cmd = m.Update(closeMsg{force: true})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestModel_PromptKeys(t *testing.T) {
	h := newShellHarness(t)
	h.exec(t, "add title h1")
	m := NewModel(context.Background(), h.orc, h.sh)

	next, cmd := m.Update(outputMsg(h.exec(t, "reset")))
	m = next.(Model)
	assert.Nil(t, cmd)
	require.True(t, m.hasPending)
	assert.Contains(t, m.View(), "[s]ave")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Nil(t, cmd, "other keys are ignored while the prompt is up")

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	m = next.(Model)
	require.NotNil(t, cmd)
	out, ok := cmd().(outputMsg)
	require.True(t, ok)

	next, _ = m.Update(out)
	m = next.(Model)
	assert.False(t, m.hasPending)
	assert.Empty(t, h.orc.Profile().Current().Extractors)
}
