package fetchstrategy

import (
	"context"
	"errors"
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

	"github.com/webpeel/webpeel/internal/enginesupport"
)

// BrowserFetcherConfig configures the headless browser and its page pool.
type BrowserFetcherConfig struct {
	Headless       bool
	NoSandbox      bool
	BrowserBin     string
	DefaultProxy   string
	MaxPages       int
	BlockedDefault []string // resource classes blocked when a request doesn't override
}

// Defaults fills zero-valued fields with production defaults.
func (c BrowserFetcherConfig) Defaults() BrowserFetcherConfig {
	if c.MaxPages <= 0 {
		c.MaxPages = 5
	}
	return c
}

// BrowserFetcher drives a pooled headless Chrome instance through go-rod.
// A single instance serves both the plain-browser and stealth strategies;
// forceStealth pins anti-fingerprinting hardening on regardless of the
// per-request flag.
//
// Grounded on scraper.Scraper (scraper/scraper.go, scraper/page.go): the
// launcher flag set, stealth injection, hijack router, and
// WaitDOMStable-based wait strategy are carried over; the page pool is
// reimplemented on internal/enginesupport.AdaptivePool (health-scored
// retirement) rather than rod.Pool[rod.Page], so the same pool backs both
// browser strategies and the memory-pressure scaling logic applies to them.
type BrowserFetcher struct {
	browser      *rod.Browser
	pool         *enginesupport.AdaptivePool
	forceStealth bool
	name         string
}

// NewBrowserFetcher launches a headless browser with stealth launcher flags
// and wires an AdaptivePool of pages in front of it.
func NewBrowserFetcher(cfg BrowserFetcherConfig, forceStealth bool) (*BrowserFetcher, error) {
	cfg = cfg.Defaults()

	l := launcher.New().Headless(cfg.Headless).NoSandbox(cfg.NoSandbox)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, NewFetchError(ErrNetwork, "failed to launch browser", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, NewFetchError(ErrNetwork, "failed to connect to browser", err)
	}

	name := "browser"
	if forceStealth {
		name = "stealth"
	}

	factory := func(ctx context.Context) (any, error) {
		return browser.Page(proto.TargetCreateTarget{})
	}
	destroy := func(page any) {
		if p, ok := page.(*rod.Page); ok {
			_ = p.Close()
		}
	}

	pool := enginesupport.NewAdaptivePool(enginesupport.AdaptivePoolConfig{MaxSize: cfg.MaxPages}, factory, destroy)

	return &BrowserFetcher{browser: browser, pool: pool, forceStealth: forceStealth, name: name}, nil
}

func (f *BrowserFetcher) Name() string { return f.name }

// Pool exposes the underlying page pool for the service health endpoint.
func (f *BrowserFetcher) Pool() *enginesupport.AdaptivePool { return f.pool }

// Close drains the page pool and terminates the browser process.
func (f *BrowserFetcher) Close() {
	f.pool.Stop()
	f.browser.MustClose()
}

func (f *BrowserFetcher) Fetch(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	handle, err := f.pool.Get(ctx)
	if err != nil {
		return nil, NewFetchError(ErrNetwork, "failed to acquire browser page", err)
	}
	page, ok := handle.Page.(*rod.Page)
	if !ok {
		return nil, NewFetchError(ErrNetwork, "pooled resource was not a page", nil)
	}

	succeeded := false
	defer func() {
		if req.KeepPageOpen && succeeded {
			// Caller asked to keep the tab alive; skip the blank-page reset
			// and simply release it back without navigating away.
			f.pool.Put(handle)
			return
		}
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("browser fetch cleanup: navigate about:blank failed", "error", navErr)
		}
		if succeeded {
			handle.RecordSuccess()
		} else {
			handle.RecordFailure()
		}
		f.pool.Put(handle)
	}()

	if f.forceStealth || req.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	applyDeviceEmulation(page, req.Device)
	applyHeadersAndCookies(page, req)

	router := setupHijack(page, req.BlockResources)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	if err := p.Navigate(req.URL); err != nil {
		return nil, categorizeBrowserError(err, "navigation to target URL failed")
	}

	waitForStability(p, req.WaitMs)

	statusCode := readNavigationStatus(p)

	if len(req.Actions) > 0 {
		if err := executeActions(ctx, page, req.Actions); err != nil {
			return nil, err
		}
	}

	var screenshot []byte
	if req.Screenshot {
		shot, shotErr := page.Screenshot(false, nil)
		if shotErr != nil {
			slog.Warn("screenshot capture failed", "error", shotErr)
		} else {
			screenshot = shot
		}
	}

	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return nil, categorizeBrowserError(htmlErr, "failed to extract page HTML")
	}

	title := evalStringOrEmpty(p, `() => document.title`)
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	succeeded = true
	return &Result{
		HTML:       rawHTML,
		Title:      title,
		StatusCode: statusCode,
		FinalURL:   finalURL,
		Method:     f.name,
		Screenshot: screenshot,
		Timing:     Timing{Total: time.Since(start)},
	}, nil
}

func applyDeviceEmulation(page *rod.Page, device DeviceProfile) {
	if device.Width == 0 || device.Height == 0 {
		return
	}
	_ = proto.EmulationSetDeviceMetricsOverride{
		Width:  device.Width,
		Height: device.Height,
		Mobile: device.Name == "mobile" || device.Name == "tablet",
	}.Call(page)
}

func applyHeadersAndCookies(page *rod.Page, req *Request) {
	extraHeaders := make(map[string]string, len(req.Headers)+1)
	if _, hasReferer := req.Headers["Referer"]; !hasReferer {
		if u, parseErr := url.Parse(req.URL); parseErr == nil {
			extraHeaders["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
		}
	}
	for k, v := range req.Headers {
		extraHeaders[k] = v
	}
	if len(extraHeaders) > 0 {
		m := make(proto.NetworkHeaders, len(extraHeaders))
		for k, v := range extraHeaders {
			m[k] = gson.New(v)
		}
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: m}.Call(page)
	}

	for _, cookie := range req.Cookies {
		domain := cookie.Domain
		if domain == "" {
			if u, parseErr := url.Parse(req.URL); parseErr == nil {
				domain = u.Host
			}
		}
		path := cookie.Path
		if path == "" {
			path = "/"
		}
		_, _ = proto.NetworkSetCookie{
			Name:   cookie.Name,
			Value:  cookie.Value,
			Domain: domain,
			Path:   path,
		}.Call(page)
	}
}

func waitForStability(p *rod.Page, waitMs int) {
	if waitMs > 0 {
		select {
		case <-time.After(time.Duration(waitMs) * time.Millisecond):
		case <-p.GetContext().Done():
		}
		return
	}
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", stableErr)
	}
}

func readNavigationStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// categorizeBrowserError wraps raw rod errors into FetchErrors so the
// escalation engine can classify them.
func categorizeBrowserError(err error, msg string) *FetchError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewFetchError(ErrTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return NewFetchError(ErrTimeout, "request canceled", err)
	default:
		lower := fmt.Sprint(err)
		if isTLSHandshakeError(errors.New(lower)) {
			return NewFetchError(ErrNetwork, "TLS/SSL error: "+msg, err)
		}
		return NewFetchError(ErrNetwork, msg, err)
	}
}
