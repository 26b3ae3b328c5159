// File: cmd/components.go
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scrapedeck/internal/bridge"
	"github.com/xkilldash9x/scrapedeck/internal/browser"
	"github.com/xkilldash9x/scrapedeck/internal/config"
	"github.com/xkilldash9x/scrapedeck/internal/engine"
	"github.com/xkilldash9x/scrapedeck/internal/orchestrator"
	"github.com/xkilldash9x/scrapedeck/internal/persistence"
	"github.com/xkilldash9x/scrapedeck/internal/session"
	"github.com/xkilldash9x/scrapedeck/internal/store"
)

// Function variables so tests can swap the browser and the database.
var (
	newRenderer = func(logger *zap.Logger, cfg config.BrowserConfig) browser.Renderer {
		return browser.NewChromeRenderer(logger, cfg)
	}
	newCapturer = func(logger *zap.Logger, cfg config.BrowserConfig) sessionCapturer {
		return browser.NewChromeRenderer(logger, cfg)
	}
	connectDB = func(ctx context.Context, url string) (store.DBPool, func(), error) {
		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			return nil, nil, err
		}
		return pool, pool.Close, nil
	}
)

// components holds the wired application.
type components struct {
	Bus          *bridge.EventBus
	Engine       *engine.Engine
	Orchestrator *orchestrator.Orchestrator
	Profiles     *persistence.FileStore
	Sessions     *session.DirStore
	Store        *store.Store

	stopEngine context.CancelFunc
	closeDB    func()
}

// buildComponents handles dependency injection. On error the partially built
// components are shut down before returning.
func buildComponents(ctx context.Context, cfg config.Interface, logger *zap.Logger, host bridge.HostShell) (c *components, err error) {
	c = &components{}
	defer func() {
		if err != nil {
			c.Shutdown()
			c = nil
		}
	}()

	// 1. Run history, when a database is configured.
	c.Store, c.closeDB, err = openStore(ctx, cfg.Database(), logger)
	if err != nil {
		return c, err
	}

	// 2. Files.
	c.Profiles, err = persistence.NewFileStore(logger, cfg.Profiles().Dir, cfg.Profiles().StartupProfile)
	if err != nil {
		return c, fmt.Errorf("failed to initialize profile store: %w", err)
	}
	c.Sessions, err = session.NewDirStore(logger, cfg.Sessions().Dir)
	if err != nil {
		return c, fmt.Errorf("failed to initialize session store: %w", err)
	}

	// 3. Engine.
	c.Bus = bridge.NewEventBus(logger, cfg.Engine().EventBuffer)
	engineOpts := []engine.Option{engine.WithSessions(c.Sessions)}
	if c.Store != nil && cfg.Database().ArchiveItems {
		engineOpts = append(engineOpts, engine.WithArchive(c.Store))
	}
	c.Engine, err = engine.New(cfg.Engine(), logger, newRenderer(logger, cfg.Browser()), c.Bus, engineOpts...)
	if err != nil {
		return c, fmt.Errorf("failed to initialize engine: %w", err)
	}
	engineCtx, stopEngine := context.WithCancel(ctx)
	c.stopEngine = stopEngine
	c.Engine.Start(engineCtx)

	// 4. Orchestrator.
	deps := orchestrator.Deps{
		Engine:      c.Engine,
		Events:      c.Bus,
		Persistence: c.Profiles,
		Sessions:    c.Sessions,
		Shell:       host,
	}
	if c.Store != nil {
		deps.Recorder = c.Store
	}
	c.Orchestrator, err = orchestrator.New(logger, deps)
	if err != nil {
		return c, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	return c, nil
}

// openStore connects to the run history database. It returns a nil store
// when no database is configured.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*store.Store, func(), error) {
	if cfg.URL == "" {
		return nil, nil, nil
	}
	pool, closePool, err := connectDB(ctx, cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s, err := store.New(ctx, pool, logger)
	if err != nil {
		closePool()
		return nil, nil, fmt.Errorf("failed to initialize database store: %w", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		closePool()
		return nil, nil, err
	}
	return s, closePool, nil
}

// Shutdown stops the engine and releases every resource. Safe on a partially
// built value.
func (c *components) Shutdown() {
	if c == nil {
		return
	}
	if c.Orchestrator != nil {
		c.Orchestrator.Shutdown()
	}
	if c.stopEngine != nil {
		c.stopEngine()
	}
	if c.Engine != nil {
		c.Engine.Stop()
	}
	if c.Bus != nil {
		c.Bus.Shutdown()
	}
	if c.closeDB != nil {
		c.closeDB()
	}
}
