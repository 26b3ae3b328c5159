// internal/mocks/mocks.go

// Package mocks provides testify mocks for the collaborators the controller
// is built against.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
	"github.com/xkilldash9x/scrapedeck/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Database() config.DatabaseConfig {
	args := m.Called()
	return args.Get(0).(config.DatabaseConfig)
}

func (m *MockConfig) Engine() config.EngineConfig {
	args := m.Called()
	return args.Get(0).(config.EngineConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Profiles() config.ProfilesConfig {
	args := m.Called()
	return args.Get(0).(config.ProfilesConfig)
}

func (m *MockConfig) Sessions() config.SessionsConfig {
	args := m.Called()
	return args.Get(0).(config.SessionsConfig)
}

// --- Setters ---

func (m *MockConfig) SetBrowserHeadless(b bool) {
	m.Called(b)
}

func (m *MockConfig) SetBrowserNavigationTimeout(d time.Duration) {
	m.Called(d)
}

func (m *MockConfig) SetEngineOutputDir(dir string) {
	m.Called(dir)
}

func (m *MockConfig) SetStartupProfile(path string) {
	m.Called(path)
}

// -- Engine Mock --

// MockEngine mocks bridge.Engine. Dispatched requests are kept so tests can
// post events for the run they started.
type MockEngine struct {
	mock.Mock
	mu       sync.Mutex
	requests []schemas.RunRequest
}

func (m *MockEngine) StartRun(ctx context.Context, req schemas.RunRequest) error {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	args := m.Called(ctx, req)
	return args.Error(0)
}

// Requests returns the run requests seen so far.
func (m *MockEngine) Requests() []schemas.RunRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]schemas.RunRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// -- Persistence Mock --

// MockPersistence mocks bridge.ProfilePersistence.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Save(ctx context.Context, p schemas.Profile, hint string) (schemas.SaveResult, error) {
	args := m.Called(ctx, p, hint)
	return args.Get(0).(schemas.SaveResult), args.Error(1)
}

func (m *MockPersistence) Load(ctx context.Context, hint string) (schemas.LoadResult, error) {
	args := m.Called(ctx, hint)
	return args.Get(0).(schemas.LoadResult), args.Error(1)
}

func (m *MockPersistence) LoadStartup(ctx context.Context) (schemas.LoadResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(schemas.LoadResult), args.Error(1)
}

// -- Session Store Mock --

// MockSessionStore mocks bridge.SessionStore.
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) List(ctx context.Context) ([]schemas.SessionProfile, error) {
	args := m.Called(ctx)
	if list := args.Get(0); list != nil {
		return list.([]schemas.SessionProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionStore) Get(ctx context.Context, id string) (schemas.SessionProfile, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(schemas.SessionProfile), args.Error(1)
}

// -- Host Shell Mock --

// MockHostShell mocks bridge.HostShell.
type MockHostShell struct {
	mock.Mock
}

func (m *MockHostShell) UnsavedStateChanged(dirty bool) {
	m.Called(dirty)
}

func (m *MockHostShell) ProceedClose() {
	m.Called()
}

func (m *MockHostShell) ForceClose() {
	m.Called()
}

// -- Recorder Mock --

// MockRecorder mocks run.Recorder.
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordStart(ctx context.Context, req schemas.RunRequest, startedAt time.Time) error {
	args := m.Called(ctx, req, startedAt)
	return args.Error(0)
}

func (m *MockRecorder) RecordFinish(ctx context.Context, summary schemas.RunSummary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}
