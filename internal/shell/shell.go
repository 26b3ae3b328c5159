// internal/shell/shell.go

// Package shell is the interactive terminal host: a bubbletea program that
// edits the live profile through typed commands, streams run progress and
// asks save / discard / cancel when a destructive action meets unsaved work.
package shell

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xkilldash9x/scrapedeck/internal/bridge"
	"github.com/xkilldash9x/scrapedeck/internal/orchestrator"
	"github.com/xkilldash9x/scrapedeck/internal/run"
)

const inboxSize = 256

type (
	dirtyMsg bool
	closeMsg struct{ force bool }
	runMsg   run.Update
)

// Shell implements bridge.HostShell for the terminal program. Signals are
// queued until the program reads them, so they may arrive before it starts.
type Shell struct {
	inbox chan tea.Msg
	done  chan struct{}
	once  sync.Once
}

var _ bridge.HostShell = (*Shell)(nil)

// New creates a Shell. Pass it to the orchestrator as its host shell.
func New() *Shell {
	return &Shell{
		inbox: make(chan tea.Msg, inboxSize),
		done:  make(chan struct{}),
	}
}

func (s *Shell) UnsavedStateChanged(dirty bool) { s.send(dirtyMsg(dirty)) }
func (s *Shell) ProceedClose()                  { s.send(closeMsg{}) }
func (s *Shell) ForceClose()                    { s.send(closeMsg{force: true}) }

// RunUpdate forwards run controller updates to the program.
func (s *Shell) RunUpdate(u run.Update) { s.send(runMsg(u)) }

// Stop releases any sender blocked on a full inbox.
func (s *Shell) Stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *Shell) send(msg tea.Msg) {
	select {
	case s.inbox <- msg:
	case <-s.done:
	}
}

// listen waits for the next queued signal. A nil message is dropped by the
// program once the shell has stopped.
func (s *Shell) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-s.inbox:
			return msg
		case <-s.done:
			return nil
		}
	}
}

// Run starts the terminal program and blocks until it exits.
func Run(ctx context.Context, orc *orchestrator.Orchestrator, sh *Shell) error {
	defer sh.Stop()
	orc.Runs().OnUpdate(sh.RunUpdate)

	m := NewModel(ctx, orc, sh)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("shell exited: %w", err)
	}
	return nil
}
