package render

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/pardeepdhingra/urllens/config"
	"github.com/pardeepdhingra/urllens/models"
)

// minVisibleChars is the visible-text length above which a rendered page
// counts as carrying substantive content — the same floor the static
// probe applies before flagging a page as JavaScript-dependent.
const minVisibleChars = 100

// maxPages bounds the reusable page pool.
const maxPages = 4

// Browser is a rod-backed Renderer sharing one headless Chromium across
// checks via a page pool. Safe for concurrent use.
type Browser struct {
	browser *rod.Browser
	pool    rod.Pool[rod.Page]
	cfg     config.RenderConfig
}

// NewBrowser launches a headless browser and initialises the page pool.
func NewBrowser(cfg config.RenderConfig) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	// Stealth flags: challenge pages probe for automation markers.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("render: launch browser: %w", err)
	}
	slog.Info("render browser launched", "control_url", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("render: connect to browser: %w", err)
	}

	return &Browser{
		browser: browser,
		pool:    rod.NewPagePool(maxPages),
		cfg:     cfg,
	}, nil
}

func (b *Browser) Available() bool { return true }

// Check navigates to the URL with stealth JS installed, waits for the
// DOM to settle, and measures the visible body text.
func (b *Browser) Check(ctx context.Context, rawURL string) (*models.RenderCheck, error) {
	timeout := b.cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := b.pool.Get(func() (*rod.Page, error) {
		return b.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, fmt.Errorf("render: acquire page: %w", err)
	}

	// Cleanup uses the original page reference so it succeeds even after
	// the request context has expired.
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("render cleanup: failed to navigate to about:blank", "error", navErr)
		}
		b.pool.Put(page)
	}()

	// Stealth must be installed before navigation to take effect.
	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
	}

	if u, parseErr := url.Parse(rawURL); parseErr == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{
				"Referer": "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()),
			}),
		}.Call(page)
	}

	p := page.Context(ctx)
	if navErr := p.Navigate(rawURL); navErr != nil {
		return nil, fmt.Errorf("render: navigate: %w", navErr)
	}
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", stableErr)
	}

	visible := 0
	if res, evalErr := p.Eval(`() => ((document.body && document.body.innerText) || "").trim().length`); evalErr == nil {
		visible = res.Value.Int()
	}

	return &models.RenderCheck{
		Performed:          true,
		ContentAfterRender: visible >= minVisibleChars,
		VisibleChars:       visible,
	}, nil
}

// Close drains the page pool and kills the browser process. Call on
// graceful shutdown to prevent zombie Chromium processes.
func (b *Browser) Close() {
	slog.Info("render browser shutting down")
	b.pool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	b.browser.MustClose()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders
// type (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
