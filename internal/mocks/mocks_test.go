package mocks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
	"github.com/xkilldash9x/scrapedeck/internal/bridge"
	"github.com/xkilldash9x/scrapedeck/internal/config"
	"github.com/xkilldash9x/scrapedeck/internal/mocks"
	"github.com/xkilldash9x/scrapedeck/internal/run"
)

var (
	_ config.Interface          = (*mocks.MockConfig)(nil)
	_ bridge.Engine             = (*mocks.MockEngine)(nil)
	_ bridge.ProfilePersistence = (*mocks.MockPersistence)(nil)
	_ bridge.SessionStore       = (*mocks.MockSessionStore)(nil)
	_ bridge.HostShell          = (*mocks.MockHostShell)(nil)
	_ run.Recorder              = (*mocks.MockRecorder)(nil)
)

func TestMockEngine_KeepsRequests(t *testing.T) {
	m := new(mocks.MockEngine)
	m.On("StartRun", mock.Anything, mock.Anything).Return(nil).Once()
	m.On("StartRun", mock.Anything, mock.Anything).Return(errors.New("busy")).Once()

	require.NoError(t, m.StartRun(context.Background(), schemas.RunRequest{RunID: "a"}))
	assert.Error(t, m.StartRun(context.Background(), schemas.RunRequest{RunID: "b"}))

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "a", reqs[0].RunID)
	m.AssertExpectations(t)
}

func TestMockSessionStore_NilList(t *testing.T) {
	m := new(mocks.MockSessionStore)
	m.On("List", mock.Anything).Return(nil, errors.New("unavailable"))

	list, err := m.List(context.Background())
	assert.Nil(t, list)
	assert.EqualError(t, err, "unavailable")
}

func TestMockConfig_Getters(t *testing.T) {
	m := new(mocks.MockConfig)
	m.On("Engine").Return(config.EngineConfig{OutputDir: "out"})
	m.On("SetEngineOutputDir", "elsewhere").Return()

	assert.Equal(t, "out", m.Engine().OutputDir)
	m.SetEngineOutputDir("elsewhere")
	m.AssertExpectations(t)
}
