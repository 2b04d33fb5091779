// Package escalate implements the sequential staged fetch escalation that
// chains the strategies in internal/fetchstrategy: plain HTTP first, then a
// headless browser, then a stealth-hardened browser, then optional mirror
// and edge-worker terminal fallbacks.
//
// Grounded on the teacher's engine.Dispatcher (engine/dispatcher.go), but
// changed from that file's parallel engine-racing model to sequential
// staged escalation with classification-driven fallback, per the explicit
// algorithm this package implements (fallback-on-failure, not a race).
// engine.DomainMemory's idea is kept as an optional accelerator via
// internal/enginesupport.DomainMemory: a remembered last-successful method
// is tried first but does not replace the escalation order on failure.
package escalate

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/webpeel/webpeel/internal/enginesupport"
	"github.com/webpeel/webpeel/internal/fetchstrategy"
	"github.com/webpeel/webpeel/internal/respcache"
)

// forceBrowserHosts and forceStealthHosts implement spec's per-host
// override table. Matching is by exact host or any subdomain suffix.
var (
	forceBrowserHosts = []string{"reddit.com"}
	forceStealthHosts = []string{"glassdoor.com", "bloomberg.com"}
)

// Options mirrors the escalation engine's input contract.
type Options struct {
	ForceBrowser   bool
	Stealth        bool
	Screenshot     bool
	WaitMs         int
	TimeoutMs      int
	UserAgent      string
	Headers        map[string]string
	Cookies        []*http.Cookie
	Actions        []fetchstrategy.Action
	KeepPageOpen   bool
	Device         fetchstrategy.DeviceProfile
	BlockResources []string
	Location       string
}

// Result augments a fetchstrategy.Result with cache provenance.
type Result struct {
	*fetchstrategy.Result
	FromCache bool
	Stale     bool
}

// Engine chains the fetch strategies. Mirror, edge-worker, and the two
// browser fetchers are optional; a nil field is simply skipped. Fields are
// typed as the Fetcher interface so tests can substitute stubs for the
// real browser-/network-backed implementations.
type Engine struct {
	Plain      fetchstrategy.Fetcher
	Browser    fetchstrategy.Fetcher
	Stealth    fetchstrategy.Fetcher
	Mirror     fetchstrategy.Fetcher
	EdgeWorker fetchstrategy.Fetcher

	Cache  *respcache.Cache
	Memory *enginesupport.DomainMemory
}

// Fetch resolves a URL through the cache (SWR-aware) and, on a miss,
// through the staged escalation chain.
func (e *Engine) Fetch(ctx context.Context, target string, opts Options) (*Result, error) {
	if e.Cache != nil {
		if v, ok := e.Cache.Get(target); ok {
			return &Result{Result: v.(*fetchstrategy.Result), FromCache: true}, nil
		}
		if swr, ok := e.Cache.GetWithSWR(target); ok && swr.Stale {
			if e.Cache.MarkRevalidating(target) {
				go e.backgroundRevalidate(target, opts)
			}
			return &Result{Result: swr.Value.(*fetchstrategy.Result), FromCache: true, Stale: true}, nil
		}
	}

	res, err := e.fetchChain(ctx, target, opts)
	if err != nil {
		return nil, err
	}
	if e.Cache != nil {
		e.Cache.Set(target, res)
	}
	return &Result{Result: res}, nil
}

// backgroundRevalidate runs the fetch chain without a caller waiting on it,
// refreshing the cache entry on success. Failures are silently dropped;
// the stale entry remains servable until the next successful refresh.
func (e *Engine) backgroundRevalidate(target string, opts Options) {
	ctx := context.Background()
	res, err := e.fetchChain(ctx, target, opts)
	if err != nil || e.Cache == nil {
		return
	}
	e.Cache.Set(target, res)
}

func (e *Engine) fetchChain(ctx context.Context, target string, opts Options) (*fetchstrategy.Result, error) {
	host := hostOf(target)

	forceBrowser := opts.ForceBrowser
	stealthFlag := opts.Stealth

	// 1. Per-host override.
	if hostMatches(host, forceBrowserHosts) {
		forceBrowser = true
	}
	if hostMatches(host, forceStealthHosts) {
		stealthFlag = true
		forceBrowser = true
	}

	// Domain-memory accelerator: a remembered method skips straight past
	// plain if it previously needed a browser, without altering the
	// fallback order should it fail again.
	if e.Memory != nil {
		switch e.Memory.Get(host) {
		case "browser":
			forceBrowser = true
		case "stealth":
			forceBrowser = true
			stealthFlag = true
		}
	}

	// 2. Need-browser?
	needBrowser := forceBrowser || opts.Screenshot || stealthFlag

	req := e.buildRequest(target, opts, stealthFlag)

	// 3. Plain first, if not needBrowser.
	if !needBrowser && e.Plain != nil {
		res, err := e.Plain.Fetch(ctx, req)
		if err == nil {
			if looksClientRenderedShell(res.HTML) {
				// Escalate: fall through to the browser attempt below.
			} else {
				e.remember(host, "plain")
				return res, nil
			}
		} else if !isEscalatable(err) {
			return nil, err
		}
	}

	// 4. Browser attempt, using the stealth flag determined above.
	if e.Browser == nil && e.Stealth == nil {
		return nil, fetchstrategy.NewFetchError(fetchstrategy.ErrUnsupported, "no browser fetcher configured", nil)
	}

	primary := e.Browser
	primaryMethod := "browser"
	if stealthFlag {
		primary = e.Stealth
		primaryMethod = "stealth"
	}
	if primary == nil {
		primary = e.Stealth
		primaryMethod = "stealth"
	}
	if primary == nil {
		return nil, fetchstrategy.NewFetchError(fetchstrategy.ErrUnsupported, "requested browser strategy unavailable", nil)
	}

	browserReq := e.buildRequest(target, opts, stealthFlag)
	res, err := primary.Fetch(ctx, browserReq)
	if err == nil {
		e.remember(host, primaryMethod)
		return res, nil
	}

	// 5. Stealth fallback: a non-stealth Blocked failure retries stealth.
	if !stealthFlag && isKind(err, fetchstrategy.ErrBlocked) && e.Stealth != nil {
		stealthReq := e.buildRequest(target, opts, true)
		res2, err2 := e.Stealth.Fetch(ctx, stealthReq)
		if err2 == nil {
			e.remember(host, "stealth")
			return res2, nil
		}
		err = err2
		primaryMethod = "stealth"
	}

	// 6. Cloudflare retry: one retry with waitMs=5000, same stealth flag.
	if isCloudflareNetworkError(err) {
		retryReq := e.buildRequest(target, opts, stealthFlag)
		retryReq.WaitMs = 5000
		fetcher := e.Browser
		if stealthFlag && e.Stealth != nil {
			fetcher = e.Stealth
		}
		if fetcher != nil {
			if res3, err3 := fetcher.Fetch(ctx, retryReq); err3 == nil {
				e.remember(host, primaryMethod)
				return res3, nil
			}
		}
	}

	// 7. Mirror / edge-worker terminal fallbacks.
	if e.Mirror != nil {
		if mres, merr := e.Mirror.Fetch(ctx, req); merr == nil {
			return mres, nil
		}
	}
	if e.EdgeWorker != nil {
		if eres, eerr := e.EdgeWorker.Fetch(ctx, req); eerr == nil {
			return eres, nil
		}
	}

	return nil, err
}

func (e *Engine) remember(host, method string) {
	if e.Memory != nil && host != "" {
		e.Memory.Set(host, method)
	}
}

func (e *Engine) buildRequest(target string, opts Options, stealth bool) *fetchstrategy.Request {
	return &fetchstrategy.Request{
		URL:            target,
		Headers:        opts.Headers,
		Cookies:        opts.Cookies,
		Timeout:        msToDuration(opts.TimeoutMs),
		Stealth:        stealth,
		ForceBrowser:   opts.ForceBrowser,
		Screenshot:     opts.Screenshot,
		WaitMs:         opts.WaitMs,
		UserAgent:      opts.UserAgent,
		Actions:        opts.Actions,
		KeepPageOpen:   opts.KeepPageOpen,
		Device:         opts.Device,
		BlockResources: opts.BlockResources,
		Location:       opts.Location,
	}
}

func isEscalatable(err error) bool {
	fe, ok := err.(*fetchstrategy.FetchError)
	if !ok {
		return false
	}
	if fe.Kind == fetchstrategy.ErrBlocked {
		return true
	}
	if fe.Kind == fetchstrategy.ErrNetwork && strings.Contains(strings.ToLower(fe.Msg), "tls") {
		return true
	}
	return false
}

func isKind(err error, kind fetchstrategy.ErrorKind) bool {
	fe, ok := err.(*fetchstrategy.FetchError)
	return ok && fe.Kind == kind
}

func isCloudflareNetworkError(err error) bool {
	fe, ok := err.(*fetchstrategy.FetchError)
	if !ok || fe.Kind != fetchstrategy.ErrNetwork {
		return false
	}
	return strings.Contains(strings.ToLower(fe.Msg), "cloudflare")
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func hostMatches(host string, suffixes []string) bool {
	host = strings.ToLower(host)
	for _, s := range suffixes {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

// looksClientRenderedShell implements spec's client-rendered-shell
// detection: text after stripping tags is under 500 chars while the raw
// HTML is over 1000 chars, indicating a JS-hydrated shell the plain
// fetcher could not render.
func looksClientRenderedShell(rawHTML string) bool {
	if len(rawHTML) <= 1000 {
		return false
	}
	return len(strippedText(rawHTML)) < 500
}

func strippedText(rawHTML string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))
	var sb strings.Builder
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return strings.TrimSpace(sb.String())
		}
		if tt == html.TextToken {
			sb.Write(tokenizer.Text())
		}
	}
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
