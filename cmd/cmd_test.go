package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
	"github.com/xkilldash9x/scrapedeck/internal/browser"
	"github.com/xkilldash9x/scrapedeck/internal/config"
	"github.com/xkilldash9x/scrapedeck/internal/observability"
	"github.com/xkilldash9x/scrapedeck/internal/store"
)

// -- Setup --

const listingHTML = `<html><body>
<div class="card"><h2>Brass Lamp</h2><a href="/p/lamp">more</a></div>
<div class="card"><h2>Oak Chair</h2><a href="/p/chair">more</a></div>
</body></html>`

type stubRenderer struct {
	html string
	err  error
}

func (r stubRenderer) Render(_ context.Context, req browser.PageRequest) (browser.Page, error) {
	if r.err != nil {
		return browser.Page{}, r.err
	}
	return browser.Page{URL: req.URL, HTML: r.html}, nil
}

type stubCapturer struct {
	cookies []schemas.Cookie
}

func (c stubCapturer) CaptureSession(context.Context, string, time.Duration) ([]schemas.Cookie, error) {
	return c.cookies, nil
}

type testEnv struct {
	root     string
	profiles string
	sessions string
	exports  string
}

// resetForTest isolates a command run: every configured path points into a
// temp dir and the swappable collaborators are restored afterwards.
func resetForTest(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		root:     root,
		profiles: filepath.Join(root, "profiles"),
		sessions: filepath.Join(root, "sessions"),
		exports:  filepath.Join(root, "exports"),
	}
	t.Setenv("SCRAPEDECK_PROFILES_DIR", env.profiles)
	t.Setenv("SCRAPEDECK_SESSIONS_DIR", env.sessions)
	t.Setenv("SCRAPEDECK_ENGINE_OUTPUT_DIR", env.exports)
	t.Setenv("SCRAPEDECK_LOGGER_LOG_FILE", filepath.Join(root, "scrapedeck.log"))
	t.Setenv("SCRAPEDECK_LOGGER_LEVEL", "error")
	t.Setenv("SCRAPEDECK_BROWSER_POST_LOAD_WAIT", "0s")
	t.Setenv("SCRAPEDECK_DATABASE_URL", "")

	origRenderer, origCapturer, origConnect := newRenderer, newCapturer, connectDB
	t.Cleanup(func() {
		newRenderer, newCapturer, connectDB = origRenderer, origCapturer, origConnect
		observability.ResetForTest()
	})
	newRenderer = func(*zap.Logger, config.BrowserConfig) browser.Renderer {
		return stubRenderer{html: listingHTML}
	}
	return env
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeProfile(t *testing.T, dir, name string, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const goodProfile = `{
  "url": "shop.example.com/list",
  "fileName": "listing",
  "exportFormat": "csv",
  "debugMode": false,
  "extractors": [
    {"id": "a", "fieldName": "name", "selector": ".card h2", "mode": "text"},
    {"id": "b", "fieldName": "link", "selector": ".card", "mode": "child-link-url"}
  ]
}`

const incompleteProfile = `{
  "url": "shop.example.com/list",
  "exportFormat": "json",
  "extractors": [
    {"id": "a", "fieldName": "name", "selector": "", "mode": "text"},
    {"id": "b", "fieldName": "img", "selector": "img", "mode": "attribute"}
  ]
}`

// -- Tests --

func TestVersion(t *testing.T) {
	resetForTest(t)

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "scrapedeck dev\n", out)

	out, err = execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "scrapedeck version dev")
}

func TestRoot_NoArgsPrintsHelp(t *testing.T) {
	resetForTest(t)
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "CSS selector profiles")
	assert.Contains(t, out, "validate")
}

func TestRoot_InvalidConfigIsRejected(t *testing.T) {
	resetForTest(t)
	t.Setenv("SCRAPEDECK_LOGGER_LEVEL", "chatty")
	_, err := execute(t, "sessions")
	assert.ErrorContains(t, err, "logger.level")
}

func TestValidate(t *testing.T) {
	env := resetForTest(t)

	good := writeProfile(t, env.root, "good.json", goodProfile)
	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "ready to run (2 extractors, csv export)")

	bad := writeProfile(t, env.root, "bad.json", incompleteProfile)
	out, err = execute(t, "validate", bad)
	require.Error(t, err)
	assert.Contains(t, out, "extractor 1 name: selector missing;")
	assert.Contains(t, out, "extractor 2 img: attribute name missing;")

	_, err = execute(t, "validate", filepath.Join(env.root, "missing.json"))
	assert.Error(t, err)
}

func TestRun_ExportsRecords(t *testing.T) {
	env := resetForTest(t)
	profile := writeProfile(t, env.root, "listing.json", goodProfile)
	outDir := filepath.Join(env.root, "out")

	out, err := execute(t, "run", profile, "--output-dir", outDir, "--print-items")
	require.NoError(t, err, out)

	exported := filepath.Join(outDir, "listing.csv")
	assert.Contains(t, out, "Extracted 2 records to "+exported)
	assert.Contains(t, out, `{"name":"Oak Chair","link":"https://shop.example.com/p/chair"}`)
	assert.Contains(t, out, "Opening https://shop.example.com/list")

	content, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Equal(t, "name,link\nBrass Lamp,https://shop.example.com/p/lamp\nOak Chair,https://shop.example.com/p/chair\n", string(content))
}

func TestRun_FormatOverride(t *testing.T) {
	env := resetForTest(t)
	profile := writeProfile(t, env.root, "listing.json", goodProfile)

	out, err := execute(t, "run", profile, "--format", "json")
	require.NoError(t, err, out)
	assert.FileExists(t, filepath.Join(env.exports, "listing.json"))

	_, err = execute(t, "run", profile, "--format", "pdf")
	assert.ErrorContains(t, err, "unknown export format")
}

func TestRun_Failures(t *testing.T) {
	env := resetForTest(t)

	bad := writeProfile(t, env.root, "bad.json", incompleteProfile)
	out, err := execute(t, "run", bad)
	require.Error(t, err)
	assert.Contains(t, out, "selector missing")

	newRenderer = func(*zap.Logger, config.BrowserConfig) browser.Renderer {
		return stubRenderer{err: errors.New("navigation to https://shop.example.com/list timed out after 60s")}
	}
	good := writeProfile(t, env.root, "good.json", goodProfile)
	out, err = execute(t, "run", good)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run failed: navigation")
	assert.Contains(t, out, "timed out")
	assert.NoFileExists(t, filepath.Join(env.exports, "listing.csv"))
}

func TestSessions_CaptureAndList(t *testing.T) {
	env := resetForTest(t)

	out, err := execute(t, "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions in "+env.sessions)

	newCapturer = func(*zap.Logger, config.BrowserConfig) sessionCapturer {
		return stubCapturer{cookies: []schemas.Cookie{{Name: "sid", Value: "1", Domain: "shop.example.com"}}}
	}
	out, err = execute(t, "sessions", "capture", "shop", "shop.example.com/login", "--name", "Shop", "--wait", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "Stored session shop with 1 cookies")

	out, err = execute(t, "sessions")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`shop\s+Shop\s+shop\.example\.com\s+1 cookies`), out)
}

func TestHistory(t *testing.T) {
	resetForTest(t)

	_, err := execute(t, "history")
	assert.ErrorContains(t, err, "database URL is not configured")

	t.Setenv("SCRAPEDECK_DATABASE_URL", "postgres://localhost/scrapedeck")
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()
	connectDB = func(_ context.Context, url string) (store.DBPool, func(), error) {
		assert.Equal(t, "postgres://localhost/scrapedeck", url)
		return mockPool, func() {}, nil
	}

	started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mockPool.ExpectPing().WillReturnError(nil)
	mockPool.ExpectExec("CREATE TABLE IF NOT EXISTS runs").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mockPool.ExpectQuery("SELECT id, state, file_name").
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "state", "file_name", "item_count", "failure_reason", "started_at", "finished_at"}).
			AddRow("r1", "completed", "exports/shop.csv", 12, "", started, started.Add(time.Minute)).
			AddRow("r2", "error", "exports/bad.json", 0, "navigation timed out", started, started))

	out, err := execute(t, "history", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "exports/shop.csv")
	assert.Contains(t, out, "navigation timed out")
	assert.True(t, strings.Contains(out, "STATE"), out)
	require.NoError(t, mockPool.ExpectationsWereMet())
}
