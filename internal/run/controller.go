// internal/run/controller.go

// Package run owns the extraction run state machine: it validates and
// dispatches a start command to the automation engine, then consumes the
// engine's event stream until a terminal event arrives.
package run

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
	"github.com/xkilldash9x/scrapedeck/internal/bridge"
	"github.com/xkilldash9x/scrapedeck/internal/validation"
)

// Recorder keeps a history of runs. Failures are logged and never affect the run.
type Recorder interface {
	RecordStart(ctx context.Context, req schemas.RunRequest, startedAt time.Time) error
	RecordFinish(ctx context.Context, summary schemas.RunSummary) error
}

// UpdateKind tells a listener what changed.
type UpdateKind string

const (
	UpdateState UpdateKind = "state"
	UpdateLog   UpdateKind = "log"
	UpdateItem  UpdateKind = "item"
)

// Update is pushed to listeners after every state change or appended entry.
type Update struct {
	Kind    UpdateKind
	RunID   string
	State   schemas.RunState
	Log     *schemas.LogMessage
	Item    schemas.ResultItem
	Summary schemas.RunSummary
}

// Controller drives at most one run at a time.
type Controller struct {
	logger   *zap.Logger
	engine   bridge.Engine
	events   bridge.EventSource
	recorder Recorder
	now      func() time.Time
	newRunID func() string

	mu          sync.Mutex
	state       schemas.RunState
	runID       string
	logs        []schemas.LogMessage
	results     []schemas.ResultItem
	summary     schemas.RunSummary
	unsubscribe func()
	done        chan struct{}
	closed      bool

	listenerMu sync.RWMutex
	listeners  []func(Update)
}

// Option configures a Controller.
type Option func(*Controller)

// WithRecorder attaches a run history recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithClock overrides the time source used for file names and timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithRunIDGenerator overrides run id generation.
func WithRunIDGenerator(fn func() string) Option {
	return func(c *Controller) { c.newRunID = fn }
}

// New creates an idle Controller.
func New(logger *zap.Logger, engine bridge.Engine, events bridge.EventSource, opts ...Option) (*Controller, error) {
	if engine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if events == nil {
		return nil, errors.New("event source cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		logger:   logger.Named("run_controller"),
		engine:   engine,
		events:   events,
		now:      time.Now,
		newRunID: uuid.NewString,
		state:    schemas.RunIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// OnUpdate registers a listener. Listeners run on the goroutine that caused
// the change and must not block.
func (c *Controller) OnUpdate(fn func(Update)) {
	c.listenerMu.Lock()
	c.listeners = append(c.listeners, fn)
	c.listenerMu.Unlock()
}

// Start checks the profile, then dispatches a run of a snapshot of it. It
// returns once the command is dispatched; it does not wait for completion.
func (c *Controller) Start(ctx context.Context, p schemas.Profile) (schemas.RunRequest, error) {
	snapshot := p.Clone()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return schemas.RunRequest{}, errors.New("run controller is closed")
	}
	if c.state == schemas.RunRunning {
		c.mu.Unlock()
		return schemas.RunRequest{}, ErrRunInProgress
	}
	if err := CheckRunnable(snapshot); err != nil {
		c.mu.Unlock()
		return schemas.RunRequest{}, err
	}

	startedAt := c.now()
	req := schemas.RunRequest{
		RunID:    c.newRunID(),
		Profile:  snapshot,
		FileName: DeriveFileName(snapshot, startedAt),
	}

	c.logs = nil
	c.results = nil
	c.state = schemas.RunRunning
	c.runID = req.RunID
	c.summary = schemas.RunSummary{
		RunID:     req.RunID,
		State:     schemas.RunRunning,
		FileName:  req.FileName,
		StartedAt: startedAt,
	}

	// Subscribe before dispatch so no event can be missed.
	events, unsubscribe := c.events.Subscribe(schemas.AllEventKinds...)
	c.unsubscribe = unsubscribe
	done := make(chan struct{})
	c.done = done
	summary := c.summary
	c.mu.Unlock()

	logger := c.logger.With(zap.String("run_id", req.RunID))
	logger.Info("Starting extraction run",
		zap.String("url", snapshot.TargetURL),
		zap.String("file_name", req.FileName),
		zap.Int("extractors", len(snapshot.Extractors)),
	)
	c.notify(Update{Kind: UpdateState, RunID: req.RunID, State: schemas.RunRunning, Summary: summary})

	go c.consume(req.RunID, events, done)

	if c.recorder != nil {
		if err := c.recorder.RecordStart(ctx, req, startedAt); err != nil {
			logger.Warn("Failed to record run start", zap.Error(err))
		}
	}

	if err := c.engine.StartRun(ctx, req); err != nil {
		reason := "failed to dispatch run: " + err.Error()
		c.appendLocalLog(req.RunID, schemas.LevelError, reason)
		c.finish(req.RunID, schemas.RunError, schemas.EngineEvent{Failure: &schemas.FailurePayload{Reason: reason}})
		return req, &EngineFailure{RunID: req.RunID, Reason: reason, Err: err}
	}
	return req, nil
}

// CheckRunnable applies the start guards: configuration first, then fields.
func CheckRunnable(p schemas.Profile) error {
	if strings.TrimSpace(p.TargetURL) == "" {
		return &ConfigError{Reason: "target URL is required"}
	}
	if len(p.Extractors) == 0 {
		return &ConfigError{Reason: "at least one extractor is required"}
	}
	if set := validation.Validate(p.Extractors); !set.OK() {
		return &validation.ValidationError{Errors: set}
	}
	return nil
}

// consume drains the run's subscription until the run ends.
func (c *Controller) consume(runID string, events <-chan schemas.EngineEvent, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handle(runID, ev)
		}
	}
}

// handle applies one engine event to the run it was subscribed for.
func (c *Controller) handle(runID string, ev schemas.EngineEvent) {
	if ev.RunID != runID {
		return
	}

	switch ev.Kind {
	case schemas.EventLog:
		if ev.Log == nil {
			return
		}
		msg := *ev.Log
		if msg.Timestamp.IsZero() {
			msg.Timestamp = c.now()
		}
		if !c.appendIfRunning(runID, func() { c.logs = append(c.logs, msg) }) {
			return
		}
		c.notify(Update{Kind: UpdateLog, RunID: runID, State: schemas.RunRunning, Log: &msg})

	case schemas.EventData:
		item := ev.Item.Clone()
		if !c.appendIfRunning(runID, func() { c.results = append(c.results, item) }) {
			return
		}
		c.notify(Update{Kind: UpdateItem, RunID: runID, State: schemas.RunRunning, Item: item})

	case schemas.EventComplete:
		c.finish(runID, schemas.RunCompleted, ev)

	case schemas.EventFailure:
		c.finish(runID, schemas.RunError, ev)
	}
}

func (c *Controller) appendIfRunning(runID string, appendFn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runID != runID || c.state != schemas.RunRunning {
		return false
	}
	appendFn()
	return true
}

func (c *Controller) appendLocalLog(runID string, level schemas.LogLevel, text string) {
	msg := schemas.LogMessage{Timestamp: c.now(), Level: level, Text: text}
	if c.appendIfRunning(runID, func() { c.logs = append(c.logs, msg) }) {
		c.notify(Update{Kind: UpdateLog, RunID: runID, State: schemas.RunRunning, Log: &msg})
	}
}

// finish moves the run to a terminal state exactly once and closes its
// subscription.
func (c *Controller) finish(runID string, state schemas.RunState, ev schemas.EngineEvent) {
	c.mu.Lock()
	if c.runID != runID || c.state != schemas.RunRunning {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.summary.State = state
	c.summary.FinishedAt = c.now()
	if ev.Complete != nil {
		c.summary.ItemCount = ev.Complete.ItemCount
		if ev.Complete.FileName != "" {
			c.summary.FileName = ev.Complete.FileName
		}
	}
	if ev.Failure != nil {
		c.summary.FailureReason = ev.Failure.Reason
	}
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	done := c.done
	summary := c.summary
	c.mu.Unlock()

	// Waiters are released only after history and listeners have seen the end.
	defer close(done)

	if unsubscribe != nil {
		unsubscribe()
	}

	logger := c.logger.With(zap.String("run_id", runID))
	if state == schemas.RunCompleted {
		logger.Info("Extraction run completed", zap.Int("items", summary.ItemCount), zap.String("file_name", summary.FileName))
	} else {
		logger.Warn("Extraction run failed", zap.String("reason", summary.FailureReason))
	}

	if c.recorder != nil {
		// The caller's context may be long gone; history is best effort.
		recCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := c.recorder.RecordFinish(recCtx, summary); err != nil {
			logger.Warn("Failed to record run finish", zap.Error(err))
		}
		cancel()
	}

	c.notify(Update{Kind: UpdateState, RunID: runID, State: state, Summary: summary})
}

func (c *Controller) notify(u Update) {
	c.listenerMu.RLock()
	listeners := make([]func(Update), len(c.listeners))
	copy(listeners, c.listeners)
	c.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(u)
	}
}

// State returns the current run state.
func (c *Controller) State() schemas.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Summary returns the latest run's summary.
func (c *Controller) Summary() schemas.RunSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

// Logs returns a copy of the current run's log.
func (c *Controller) Logs() []schemas.LogMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]schemas.LogMessage, len(c.logs))
	copy(out, c.logs)
	return out
}

// Results returns a copy of the current run's accumulated items.
func (c *Controller) Results() []schemas.ResultItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]schemas.ResultItem, len(c.results))
	for i, r := range c.results {
		out[i] = r.Clone()
	}
	return out
}

// Wait blocks until the current run reaches a terminal state or ctx ends.
// With no run in flight it returns the current state at once.
func (c *Controller) Wait(ctx context.Context) (schemas.RunState, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return c.State(), nil
	}
	select {
	case <-done:
		return c.State(), nil
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}
}

// Close ends any live subscription. The controller refuses new runs afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	if c.state == schemas.RunRunning {
		// Detach from the engine; the run is abandoned in its running state.
		c.runID = ""
		close(c.done)
	}
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
