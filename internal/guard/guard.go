// File: internal/guard/guard.go

// Package guard intercepts actions that would discard unsaved profile state
// and routes them through a save / discard / cancel decision.
package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Action identifies a destructive action.
type Action string

const (
	ActionReset Action = "reset"
	ActionLoad  Action = "load"
	ActionClose Action = "close"
)

// Decision is the user's answer to an unsaved-changes prompt.
type Decision string

const (
	DecisionSave    Decision = "save"
	DecisionDiscard Decision = "discard"
	DecisionCancel  Decision = "cancel"
)

// ParseDecision accepts the full words and their first letters.
func ParseDecision(s string) (Decision, bool) {
	switch s {
	case "s", "save":
		return DecisionSave, true
	case "d", "discard":
		return DecisionDiscard, true
	case "c", "cancel":
		return DecisionCancel, true
	}
	return "", false
}

// Outcome reports what Request did with an action.
type Outcome string

const (
	// OutcomeProceeded means the action ran immediately because nothing was dirty.
	OutcomeProceeded Outcome = "proceeded"
	// OutcomeAwaitingDecision means the action is deferred until Resolve.
	OutcomeAwaitingDecision Outcome = "awaiting_decision"
)

var (
	// ErrDecisionPending is returned when an action is requested while another
	// one is still waiting for a decision.
	ErrDecisionPending = errors.New("another action is awaiting a decision")
	// ErrNoPendingAction is returned by Resolve when nothing is pending.
	ErrNoPendingAction = errors.New("no action is awaiting a decision")
)

// Continuation performs the destructive action once it is allowed to proceed.
type Continuation func(ctx context.Context) error

// Tracker is the slice of the profile store the guard needs.
type Tracker interface {
	IsDirty() bool
	MarkBaseline()
}

// SaveFunc persists the current profile. A canceled save prompt must be
// reported as an error so the guard stays awaiting a decision.
type SaveFunc func(ctx context.Context) error

type pendingAction struct {
	action Action
	cont   Continuation
}

// Guard is a two-state machine: quiescent, or awaiting a decision on one
// deferred action.
type Guard struct {
	logger  *zap.Logger
	tracker Tracker
	save    SaveFunc

	mu      sync.Mutex
	pending *pendingAction
}

// New creates a Guard.
func New(logger *zap.Logger, tracker Tracker, save SaveFunc) (*Guard, error) {
	if tracker == nil {
		return nil, errors.New("tracker cannot be nil")
	}
	if save == nil {
		return nil, errors.New("save func cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		logger:  logger.Named("guard"),
		tracker: tracker,
		save:    save,
	}, nil
}

// Pending returns the action awaiting a decision, if any.
func (g *Guard) Pending() (Action, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return "", false
	}
	return g.pending.action, true
}

// Request runs cont immediately when the profile is clean. Otherwise the
// continuation is deferred and the guard waits for Resolve.
func (g *Guard) Request(ctx context.Context, action Action, cont Continuation) (Outcome, error) {
	g.mu.Lock()
	if g.pending != nil {
		g.mu.Unlock()
		return "", ErrDecisionPending
	}
	if !g.tracker.IsDirty() {
		g.mu.Unlock()
		g.logger.Debug("Profile clean, action proceeds", zap.String("action", string(action)))
		return OutcomeProceeded, cont(ctx)
	}
	g.pending = &pendingAction{action: action, cont: cont}
	g.mu.Unlock()

	g.logger.Info("Unsaved changes, awaiting decision", zap.String("action", string(action)))
	return OutcomeAwaitingDecision, nil
}

// Resolve applies the user's decision to the pending action. A failed save
// leaves the guard awaiting a decision and the action is not executed.
func (g *Guard) Resolve(ctx context.Context, decision Decision) error {
	g.mu.Lock()
	p := g.pending
	if p == nil {
		g.mu.Unlock()
		return ErrNoPendingAction
	}

	logger := g.logger.With(zap.String("action", string(p.action)), zap.String("decision", string(decision)))

	switch decision {
	case DecisionCancel:
		g.pending = nil
		g.mu.Unlock()
		logger.Info("Action abandoned")
		return nil

	case DecisionDiscard:
		g.pending = nil
		g.mu.Unlock()
		g.tracker.MarkBaseline()
		logger.Info("Unsaved changes discarded")
		return g.run(ctx, p)

	case DecisionSave:
		// The lock is held through the save so no second decision can race it.
		if err := g.save(ctx); err != nil {
			g.mu.Unlock()
			logger.Warn("Save failed, action not executed", zap.Error(err))
			return fmt.Errorf("save before %s failed: %w", p.action, err)
		}
		g.pending = nil
		g.mu.Unlock()
		g.tracker.MarkBaseline()
		logger.Info("Profile saved, action proceeds")
		return g.run(ctx, p)

	default:
		g.mu.Unlock()
		return fmt.Errorf("unknown decision %q", decision)
	}
}

func (g *Guard) run(ctx context.Context, p *pendingAction) error {
	if err := p.cont(ctx); err != nil {
		return fmt.Errorf("%s failed: %w", p.action, err)
	}
	return nil
}
