// File: internal/orchestrator/orchestrator.go

// Package orchestrator ties the profile store, the destructive-action guard
// and the run controller to their collaborators. The shell and the headless
// CLI both drive the application through it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
	"github.com/xkilldash9x/scrapedeck/internal/bridge"
	"github.com/xkilldash9x/scrapedeck/internal/guard"
	"github.com/xkilldash9x/scrapedeck/internal/persistence"
	"github.com/xkilldash9x/scrapedeck/internal/profile"
	"github.com/xkilldash9x/scrapedeck/internal/run"
	"github.com/xkilldash9x/scrapedeck/internal/validation"
)

// Deps are the collaborators an Orchestrator is built from. Sessions, Shell
// and Recorder are optional.
type Deps struct {
	Engine      bridge.Engine
	Events      bridge.EventSource
	Persistence bridge.ProfilePersistence
	Sessions    bridge.SessionStore
	Shell       bridge.HostShell
	Recorder    run.Recorder
}

// Option configures an Orchestrator.
type Option func(*options)

type options struct {
	profileOpts []profile.Option
	runOpts     []run.Option
}

// WithProfileOptions passes options through to the profile store.
func WithProfileOptions(opts ...profile.Option) Option {
	return func(o *options) { o.profileOpts = append(o.profileOpts, opts...) }
}

// WithRunOptions passes options through to the run controller.
func WithRunOptions(opts ...run.Option) Option {
	return func(o *options) { o.runOpts = append(o.runOpts, opts...) }
}

// inlineKey marks the context of a close request whose continuation runs
// synchronously because nothing was dirty.
type inlineKey struct{}

// Orchestrator is the single entry point for profile edits, persistence,
// guarded actions and runs.
type Orchestrator struct {
	logger      *zap.Logger
	store       *profile.Store
	guard       *guard.Guard
	runs        *run.Controller
	persistence bridge.ProfilePersistence
	sessions    bridge.SessionStore
	shell       bridge.HostShell

	mu          sync.Mutex
	path        string
	sessionList []schemas.SessionProfile
	fieldErrs   validation.ErrorSet
}

// New wires an Orchestrator. The engine, its event source and persistence
// are required.
func New(logger *zap.Logger, deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.Engine == nil || deps.Events == nil || deps.Persistence == nil {
		return nil, errors.New("cannot initialize orchestrator with nil dependencies")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	shell := deps.Shell
	if shell == nil {
		shell = bridge.NopShell{}
	}

	runOpts := o.runOpts
	if deps.Recorder != nil {
		runOpts = append([]run.Option{run.WithRecorder(deps.Recorder)}, runOpts...)
	}
	runs, err := run.New(logger, deps.Engine, deps.Events, runOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create run controller: %w", err)
	}

	orc := &Orchestrator{
		logger:      logger.Named("orchestrator"),
		store:       profile.NewStore(logger, o.profileOpts...),
		runs:        runs,
		persistence: deps.Persistence,
		sessions:    deps.Sessions,
		shell:       shell,
	}

	g, err := guard.New(logger, orc.store, orc.saveForGuard)
	if err != nil {
		return nil, fmt.Errorf("failed to create guard: %w", err)
	}
	orc.guard = g
	orc.store.OnDirtyChange(orc.shell.UnsavedStateChanged)
	return orc, nil
}

// Profile exposes the live profile store for edits.
func (o *Orchestrator) Profile() *profile.Store { return o.store }

// Runs exposes the run controller for state, logs and results.
func (o *Orchestrator) Runs() *run.Controller { return o.runs }

// Path returns the file the live profile was last loaded from or saved to.
func (o *Orchestrator) Path() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.path
}

func (o *Orchestrator) setPath(p string) {
	o.mu.Lock()
	o.path = p
	o.mu.Unlock()
}

// Startup loads the profile the process was opened with and prefetches the
// session list. Neither failure is fatal: a missing or unreadable startup
// profile leaves the empty profile in place as the baseline.
func (o *Orchestrator) Startup(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	var loaded schemas.LoadResult
	g.Go(func() error {
		res, err := o.persistence.LoadStartup(gctx)
		if err != nil {
			o.logger.Warn("Startup profile could not be loaded", zap.Error(err))
			return nil
		}
		loaded = res
		return nil
	})
	g.Go(func() error {
		if err := o.RefreshSessions(gctx); err != nil {
			o.logger.Warn("Session list unavailable", zap.Error(err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !loaded.Canceled && loaded.Path != "" {
		o.store.Replace(loaded.Profile)
		o.setPath(loaded.Path)
		o.logger.Info("Startup profile loaded", zap.String("path", loaded.Path))
	}
	o.store.MarkBaseline()
	return nil
}

// Save persists the live profile. An empty hint reuses the last path. The
// baseline moves only when the save actually happened.
func (o *Orchestrator) Save(ctx context.Context, hint string) (schemas.SaveResult, error) {
	if hint == "" {
		hint = o.Path()
	}
	res, err := o.persistence.Save(ctx, o.store.Current(), hint)
	if err != nil {
		return res, err
	}
	if res.Canceled {
		o.logger.Debug("Save canceled")
		return res, nil
	}
	o.store.MarkBaseline()
	o.setPath(res.Path)
	o.logger.Info("Profile saved", zap.String("path", res.Path))
	return res, nil
}

// saveForGuard reports a dismissed save prompt as an error so the guard keeps
// the action pending.
func (o *Orchestrator) saveForGuard(ctx context.Context) error {
	res, err := o.Save(ctx, "")
	if err != nil {
		return err
	}
	if res.Canceled {
		return persistence.ErrCanceled
	}
	return nil
}

// RequestReset replaces the live profile with the empty one, asking first
// when there are unsaved changes.
func (o *Orchestrator) RequestReset(ctx context.Context) (guard.Outcome, error) {
	return o.guard.Request(ctx, guard.ActionReset, func(context.Context) error {
		o.store.Reset()
		o.store.MarkBaseline()
		o.setPath("")
		o.clearFieldErrors()
		o.logger.Info("Profile reset")
		return nil
	})
}

// RequestLoad loads the profile at hint, asking first when there are unsaved
// changes. A dismissed file prompt leaves the live profile untouched. The
// returned result is only filled in when the load ran inline, that is when
// the outcome is OutcomeProceeded.
//
// Discarding unsaved changes rebaselines before the load runs, so a load that
// then fails leaves the edits in place but no longer counted as unsaved.
func (o *Orchestrator) RequestLoad(ctx context.Context, hint string) (schemas.LoadResult, guard.Outcome, error) {
	var loaded schemas.LoadResult
	outcome, err := o.guard.Request(ctx, guard.ActionLoad, func(ctx context.Context) error {
		res, err := o.persistence.Load(ctx, hint)
		if err != nil {
			return err
		}
		if res.Canceled {
			o.logger.Debug("Load canceled")
			return nil
		}
		o.store.Replace(res.Profile)
		o.store.MarkBaseline()
		o.setPath(res.Path)
		o.clearFieldErrors()
		o.logger.Info("Profile loaded", zap.String("path", res.Path))
		loaded = res
		return nil
	})
	if err != nil || outcome != guard.OutcomeProceeded {
		return schemas.LoadResult{}, outcome, err
	}
	return loaded, outcome, nil
}

// RequestClose handles a close request from the host shell. A clean profile
// closes right away; otherwise the shell is told to force close once the
// decision lets the close proceed.
func (o *Orchestrator) RequestClose(ctx context.Context) (guard.Outcome, error) {
	token := new(int)
	ctx = context.WithValue(ctx, inlineKey{}, token)
	return o.guard.Request(ctx, guard.ActionClose, func(ctx context.Context) error {
		if ctx.Value(inlineKey{}) == token {
			o.shell.ProceedClose()
			return nil
		}
		o.shell.ForceClose()
		return nil
	})
}

// Pending returns the action awaiting a decision, if any.
func (o *Orchestrator) Pending() (guard.Action, bool) {
	return o.guard.Pending()
}

// Resolve applies the user's answer to the pending unsaved-changes prompt.
func (o *Orchestrator) Resolve(ctx context.Context, decision guard.Decision) error {
	return o.guard.Resolve(ctx, decision)
}

// Validate runs the field checks on the live profile and keeps the result
// for the edit-time error display.
func (o *Orchestrator) Validate() validation.ErrorSet {
	set := validation.Validate(o.store.Current().Extractors)
	o.mu.Lock()
	o.fieldErrs = set
	o.mu.Unlock()
	return cloneErrors(set)
}

// FieldErrors returns the errors recorded by the last validation.
func (o *Orchestrator) FieldErrors() validation.ErrorSet {
	o.mu.Lock()
	defer o.mu.Unlock()
	return cloneErrors(o.fieldErrs)
}

// EditExtractor applies an edit to one extractor and clears the recorded
// error for the field being corrected.
func (o *Orchestrator) EditExtractor(id string, field validation.Field, fn func(e *schemas.Extractor)) error {
	if err := o.store.UpdateExtractor(id, fn); err != nil {
		return err
	}
	o.mu.Lock()
	if o.fieldErrs != nil {
		o.fieldErrs.Clear(id, field)
	}
	o.mu.Unlock()
	return nil
}

// RemoveExtractor deletes an extractor and forgets its recorded errors.
func (o *Orchestrator) RemoveExtractor(id string) error {
	if err := o.store.RemoveExtractor(id); err != nil {
		return err
	}
	o.mu.Lock()
	delete(o.fieldErrs, id)
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) clearFieldErrors() {
	o.mu.Lock()
	o.fieldErrs = nil
	o.mu.Unlock()
}

// StartRun dispatches a run of the live profile. A field validation failure
// is kept for display as well as returned.
func (o *Orchestrator) StartRun(ctx context.Context) (schemas.RunRequest, error) {
	req, err := o.runs.Start(ctx, o.store.Current())
	var verr *validation.ValidationError
	switch {
	case errors.As(err, &verr):
		o.mu.Lock()
		o.fieldErrs = cloneErrors(verr.Errors)
		o.mu.Unlock()
	case err == nil:
		o.clearFieldErrors()
	}
	return req, err
}

// RefreshSessions reloads the session list from the session store.
func (o *Orchestrator) RefreshSessions(ctx context.Context) error {
	if o.sessions == nil {
		return nil
	}
	list, err := o.sessions.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	o.mu.Lock()
	o.sessionList = list
	o.mu.Unlock()
	return nil
}

// Sessions returns the session list fetched by the last refresh.
func (o *Orchestrator) Sessions() []schemas.SessionProfile {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]schemas.SessionProfile, len(o.sessionList))
	copy(out, o.sessionList)
	return out
}

// Shutdown closes the run controller's subscription and detaches the shell.
func (o *Orchestrator) Shutdown() {
	o.store.OnDirtyChange(nil)
	o.runs.Close()
	o.logger.Debug("Orchestrator shut down")
}

func cloneErrors(set validation.ErrorSet) validation.ErrorSet {
	if set == nil {
		return nil
	}
	out := make(validation.ErrorSet, len(set))
	for k, v := range set {
		out[k] = v
	}
	return out
}
