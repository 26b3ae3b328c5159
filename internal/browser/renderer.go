// internal/browser/renderer.go

// Package browser renders target pages in Chrome through the DevTools protocol
// and captures browser sessions.
package browser

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
	"github.com/xkilldash9x/scrapedeck/internal/config"
)

// PageRequest describes one page to render.
type PageRequest struct {
	URL     string
	Cookies []schemas.Cookie
	// Visible opens a headed window regardless of the headless setting.
	Visible bool
}

// Page is a rendered document.
type Page struct {
	// URL is the address after redirects.
	URL  string
	HTML string
}

// Renderer turns a URL into its rendered HTML.
type Renderer interface {
	Render(ctx context.Context, req PageRequest) (Page, error)
}

// ChromeRenderer starts a fresh browser per render.
type ChromeRenderer struct {
	logger *zap.Logger
	cfg    config.BrowserConfig
}

var _ Renderer = (*ChromeRenderer)(nil)

// NewChromeRenderer creates a renderer for the given browser settings.
func NewChromeRenderer(logger *zap.Logger, cfg config.BrowserConfig) *ChromeRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeRenderer{logger: logger.Named("renderer"), cfg: cfg}
}

// AllocatorOptions builds the Chrome launch flags from the configuration.
func AllocatorOptions(cfg config.BrowserConfig, visible bool) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
	}
	if cfg.Headless && !visible {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	for _, arg := range cfg.Args {
		arg = strings.TrimLeft(arg, "-")
		if key, value, found := strings.Cut(arg, "="); found {
			opts = append(opts, chromedp.Flag(key, value))
		} else if arg != "" {
			opts = append(opts, chromedp.Flag(arg, true))
		}
	}
	return opts
}

// Render navigates to req.URL, waits for the body and the configured settle
// time, and returns the document's outer HTML.
func (r *ChromeRenderer) Render(ctx context.Context, req PageRequest) (Page, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, AllocatorOptions(r.cfg, req.Visible)...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(r.logger.Sugar().Debugf),
	)
	defer cancelBrowser()

	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, r.cfg.NavigationTimeout)
	defer cancelTimeout()

	var page Page
	actions := []chromedp.Action{network.Enable()}
	if len(req.Cookies) > 0 {
		actions = append(actions, setCookies(req.Cookies))
	}
	actions = append(actions,
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if r.cfg.PostLoadWait > 0 {
		actions = append(actions, chromedp.Sleep(r.cfg.PostLoadWait))
	}
	actions = append(actions,
		chromedp.Location(&page.URL),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	)

	start := time.Now()
	if err := chromedp.Run(timeoutCtx, actions...); err != nil {
		if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return Page{}, fmt.Errorf("navigation to %s timed out after %s", req.URL, r.cfg.NavigationTimeout)
		}
		return Page{}, fmt.Errorf("browser rendering failed: %w", err)
	}

	r.logger.Debug("Page rendered",
		zap.String("url", page.URL),
		zap.Int("bytes", len(page.HTML)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return page, nil
}

// setCookies installs session cookies before navigation.
func setCookies(cookies []schemas.Cookie) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		for _, c := range cookies {
			params := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if !c.Expires.IsZero() {
				expires := cdp.TimeSinceEpoch(c.Expires)
				params = params.WithExpires(&expires)
			}
			if err := params.Do(ctx); err != nil {
				return fmt.Errorf("failed to set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}
}

// CaptureSession opens a visible browser at url, leaves it to the user for
// the given duration (or until ctx ends), then returns the browser's cookies.
func (r *ChromeRenderer) CaptureSession(ctx context.Context, url string, wait time.Duration) ([]schemas.Cookie, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, AllocatorOptions(r.cfg, true)...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if err := chromedp.Run(browserCtx, network.Enable(), chromedp.Navigate(url)); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", url, err)
	}

	r.logger.Info("Waiting for sign-in", zap.String("url", url), zap.Duration("wait", wait))
	select {
	case <-time.After(wait):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var raw []*network.Cookie
	if err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	})); err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	return FromNetworkCookies(raw), nil
}

// FromNetworkCookies converts protocol cookies into stored session cookies.
// Session cookies (no expiry) keep a zero Expires.
func FromNetworkCookies(raw []*network.Cookie) []schemas.Cookie {
	out := make([]schemas.Cookie, 0, len(raw))
	for _, c := range raw {
		if c == nil {
			continue
		}
		cookie := schemas.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Expires > 0 && !c.Session {
			sec, frac := math.Modf(c.Expires)
			cookie.Expires = time.Unix(int64(sec), int64(frac*1e9)).UTC()
		}
		out = append(out, cookie)
	}
	return out
}
