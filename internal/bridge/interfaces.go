// internal/bridge/interfaces.go

// Package bridge defines the narrow interfaces through which the controller
// talks to the automation engine, profile persistence, the session store and
// the host shell, plus the event bus that carries engine events.
package bridge

import (
	"context"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
)

// Engine dispatches extraction runs. StartRun returns once the command is
// dispatched; progress arrives on the EventSource.
type Engine interface {
	StartRun(ctx context.Context, req schemas.RunRequest) error
}

// EventSource delivers engine events. The returned function ends the
// subscription.
type EventSource interface {
	Subscribe(kinds ...schemas.EventKind) (<-chan schemas.EngineEvent, func())
}

// EventSink accepts engine events.
type EventSink interface {
	Post(ctx context.Context, ev schemas.EngineEvent) error
}

// ProfilePersistence saves and loads profiles. A dismissed path prompt is
// reported through the result's Canceled flag, not as an error. hint is an
// optional path; empty means ask.
type ProfilePersistence interface {
	Save(ctx context.Context, p schemas.Profile, hint string) (schemas.SaveResult, error)
	Load(ctx context.Context, hint string) (schemas.LoadResult, error)
	// LoadStartup loads the profile the process was opened with, if any.
	// It reports Canceled when there is none.
	LoadStartup(ctx context.Context) (schemas.LoadResult, error)
}

// SessionStore lists stored browser sessions.
type SessionStore interface {
	List(ctx context.Context) ([]schemas.SessionProfile, error)
	Get(ctx context.Context, id string) (schemas.SessionProfile, error)
}

// HostShell is the window or terminal hosting the controller.
type HostShell interface {
	UnsavedStateChanged(dirty bool)
	// ProceedClose tears down a clean application.
	ProceedClose()
	// ForceClose tears down after the user resolved an unsaved-changes prompt,
	// bypassing the shell's own close interception.
	ForceClose()
}

// NopShell is a HostShell that ignores every signal.
type NopShell struct{}

func (NopShell) UnsavedStateChanged(bool) {}
func (NopShell) ProceedClose()            {}
func (NopShell) ForceClose()              {}
