// File: internal/engine/engine.go

// Package engine is the automation engine: it renders the target page,
// evaluates the extractors, exports the records and reports progress as
// events on the bus.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
	"github.com/xkilldash9x/scrapedeck/internal/bridge"
	"github.com/xkilldash9x/scrapedeck/internal/browser"
	"github.com/xkilldash9x/scrapedeck/internal/config"
	"github.com/xkilldash9x/scrapedeck/internal/export"
)

// Archive stores a run's records after export.
type Archive interface {
	ArchiveItems(ctx context.Context, runID string, items []schemas.ResultItem) error
}

const queueSize = 4

// ErrEngineStopped is returned by StartRun after Stop.
var ErrEngineStopped = errors.New("engine is stopped")

// Engine executes runs one at a time on a single worker goroutine.
type Engine struct {
	cfg      config.EngineConfig
	logger   *zap.Logger
	renderer browser.Renderer
	sink     bridge.EventSink
	sessions bridge.SessionStore
	archive  Archive
	now      func() time.Time

	queue   chan schemas.RunRequest
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool
}

var _ bridge.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithSessions lets runs that reference a session load its cookies.
func WithSessions(s bridge.SessionStore) Option {
	return func(e *Engine) { e.sessions = s }
}

// WithArchive stores every run's records after export.
func WithArchive(a Archive) Option {
	return func(e *Engine) { e.archive = a }
}

// New creates an Engine. Call Start before dispatching runs.
func New(cfg config.EngineConfig, logger *zap.Logger, renderer browser.Renderer, sink bridge.EventSink, opts ...Option) (*Engine, error) {
	if renderer == nil {
		return nil, errors.New("renderer cannot be nil")
	}
	if sink == nil {
		return nil, errors.New("event sink cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:      cfg,
		logger:   logger.Named("engine"),
		renderer: renderer,
		sink:     sink,
		now:      time.Now,
		queue:    make(chan schemas.RunRequest, queueSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Start launches the worker. Runs in flight are abandoned when ctx ends.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.stopped {
		return
	}
	e.started = true
	e.wg.Add(1)
	go e.runWorker(ctx)
}

// Stop stops accepting runs and waits for queued ones to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.queue)
	e.mu.Unlock()

	e.logger.Debug("Stopping engine, waiting for the worker")
	e.wg.Wait()
}

// StartRun queues a run. It returns as soon as the run is accepted.
func (e *Engine) StartRun(ctx context.Context, req schemas.RunRequest) error {
	if req.RunID == "" {
		return errors.New("run id is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrEngineStopped
	}
	if !e.started {
		return errors.New("engine is not started")
	}
	select {
	case e.queue <- req:
		return nil
	default:
		return fmt.Errorf("engine queue is full (%d runs pending)", queueSize)
	}
}

func (e *Engine) runWorker(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			e.logger.Debug("Context cancelled, engine worker exiting", zap.Error(ctx.Err()))
			return
		case req, ok := <-e.queue:
			if !ok {
				return
			}
			e.process(ctx, req)
		}
	}
}

// runEmitter posts the events of one run. After a failed post every later
// post is skipped; the bus is gone.
type runEmitter struct {
	ctx    context.Context
	sink   bridge.EventSink
	runID  string
	now    func() time.Time
	logger *zap.Logger
	broken bool
}

func (r *runEmitter) post(ev schemas.EngineEvent) {
	if r.broken {
		return
	}
	ev.RunID = r.runID
	if err := r.sink.Post(r.ctx, ev); err != nil {
		r.logger.Warn("Failed to post engine event", zap.String("kind", string(ev.Kind)), zap.Error(err))
		r.broken = true
	}
}

func (r *runEmitter) log(level schemas.LogLevel, format string, args ...interface{}) {
	r.post(schemas.EngineEvent{
		Kind: schemas.EventLog,
		Log:  &schemas.LogMessage{Timestamp: r.now(), Level: level, Text: fmt.Sprintf(format, args...)},
	})
}

func (r *runEmitter) fail(reason string) {
	r.log(schemas.LevelError, "%s", reason)
	r.post(schemas.EngineEvent{Kind: schemas.EventFailure, Failure: &schemas.FailurePayload{Reason: reason}})
}

// process executes one run and always ends with a complete or failure event.
func (e *Engine) process(ctx context.Context, req schemas.RunRequest) {
	logger := e.logger.With(zap.String("run_id", req.RunID))
	emit := &runEmitter{ctx: ctx, sink: e.sink, runID: req.RunID, now: e.now, logger: logger}
	p := req.Profile

	if ctx.Err() != nil {
		return
	}
	logger.Info("Processing run", zap.String("url", p.TargetURL))

	pageReq := browser.PageRequest{URL: normalizeURL(p.TargetURL), Visible: p.Debug}
	if p.SessionID != "" {
		if e.sessions == nil {
			emit.fail(fmt.Sprintf("session %q requested but no session store is configured", p.SessionID))
			return
		}
		sess, err := e.sessions.Get(ctx, p.SessionID)
		if err != nil {
			emit.fail(fmt.Sprintf("failed to load session %q: %v", p.SessionID, err))
			return
		}
		pageReq.Cookies = sess.Cookies
		emit.log(schemas.LevelInfo, "Using session %s (%d cookies)", sess.Name, len(sess.Cookies))
	}

	emit.log(schemas.LevelInfo, "Opening %s", pageReq.URL)
	page, err := e.renderer.Render(ctx, pageReq)
	if err != nil {
		emit.fail(err.Error())
		return
	}
	if page.URL == "" {
		page.URL = pageReq.URL
	}
	emit.log(schemas.LevelInfo, "Page loaded (%d bytes)", len(page.HTML))

	items, stats, err := Extract(page.HTML, page.URL, p.Extractors)
	if err != nil {
		emit.fail(err.Error())
		return
	}
	for _, st := range stats {
		switch {
		case st.Err != nil:
			emit.log(schemas.LevelWarning, "Field %q: %v", st.FieldName, st.Err)
		case st.Matches == 0:
			emit.log(schemas.LevelWarning, "Field %q matched nothing", st.FieldName)
		case p.Debug:
			emit.log(schemas.LevelInfo, "Field %q matched %d elements", st.FieldName, st.Matches)
		}
	}

	if e.cfg.MaxItems > 0 && len(items) > e.cfg.MaxItems {
		emit.log(schemas.LevelWarning, "Keeping the first %d of %d records", e.cfg.MaxItems, len(items))
		items = items[:e.cfg.MaxItems]
	}

	for _, item := range items {
		emit.post(schemas.EngineEvent{Kind: schemas.EventData, Item: item})
	}

	path := filepath.Join(e.cfg.OutputDir, req.FileName)
	if err := export.WriteAll(p.ExportFormat, path, fieldNames(p.Extractors), items); err != nil {
		emit.fail(fmt.Sprintf("export failed: %v", err))
		return
	}

	if e.archive != nil {
		if err := e.archive.ArchiveItems(ctx, req.RunID, items); err != nil {
			logger.Warn("Failed to archive items", zap.Error(err))
			emit.log(schemas.LevelWarning, "Run history archive failed: %v", err)
		}
	}

	if len(items) == 0 {
		emit.log(schemas.LevelWarning, "No records extracted; wrote an empty %s file", p.ExportFormat)
	}
	emit.log(schemas.LevelSuccess, "Exported %d records to %s", len(items), path)
	emit.post(schemas.EngineEvent{
		Kind:     schemas.EventComplete,
		Complete: &schemas.CompletePayload{ItemCount: len(items), FileName: path},
	})
	logger.Info("Run finished", zap.Int("items", len(items)), zap.String("path", path))
}

func fieldNames(extractors []schemas.Extractor) []string {
	names := make([]string, len(extractors))
	for i, ex := range extractors {
		names[i] = ex.FieldName
	}
	return names
}

// normalizeURL adds a scheme to bare hosts such as "example.com/list".
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		return "https://" + raw
	}
	return raw
}
