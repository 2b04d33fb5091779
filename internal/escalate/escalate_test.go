package escalate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/webpeel/webpeel/internal/enginesupport"
	"github.com/webpeel/webpeel/internal/fetchstrategy"
	"github.com/webpeel/webpeel/internal/respcache"
)

type stubFetcher struct {
	name    string
	results []stubOutcome
	calls   int
}

type stubOutcome struct {
	res *fetchstrategy.Result
	err error
}

func (s *stubFetcher) Name() string { return s.name }

func (s *stubFetcher) Fetch(ctx context.Context, req *fetchstrategy.Request) (*fetchstrategy.Result, error) {
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	o := s.results[i]
	if o.res != nil {
		r := *o.res
		r.Method = s.name
		return &r, o.err
	}
	return nil, o.err
}

func okResult(html string) stubOutcome {
	return stubOutcome{res: &fetchstrategy.Result{HTML: html, StatusCode: 200}}
}

func errResult(kind fetchstrategy.ErrorKind, msg string) stubOutcome {
	return stubOutcome{err: fetchstrategy.NewFetchError(kind, msg, nil)}
}

func TestFetch_PlainSucceedsWithoutEscalating(t *testing.T) {
	plain := &stubFetcher{name: "plain", results: []stubOutcome{okResult("<html><body>hello world</body></html>")}}
	browser := &stubFetcher{name: "browser", results: []stubOutcome{errResult(fetchstrategy.ErrNetwork, "should not be called")}}
	e := &Engine{Plain: plain, Browser: browser}

	res, err := e.Fetch(context.Background(), "https://example.com", Options{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Method != "plain" {
		t.Errorf("Method = %q, want plain", res.Method)
	}
	if browser.calls != 0 {
		t.Errorf("browser.calls = %d, want 0 (should not escalate)", browser.calls)
	}
}

func TestFetch_EscalatesOnBlocked(t *testing.T) {
	plain := &stubFetcher{name: "plain", results: []stubOutcome{errResult(fetchstrategy.ErrBlocked, "bot-blocked")}}
	browser := &stubFetcher{name: "browser", results: []stubOutcome{okResult("<html>rendered</html>")}}
	e := &Engine{Plain: plain, Browser: browser}

	res, err := e.Fetch(context.Background(), "https://example.com", Options{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Method != "browser" {
		t.Errorf("Method = %q, want browser", res.Method)
	}
}

func TestFetch_EscalatesOnClientRenderedShell(t *testing.T) {
	shell := "<html><body>" + strings.Repeat("<div></div>", 200) + "</body></html>"
	plain := &stubFetcher{name: "plain", results: []stubOutcome{okResult(shell)}}
	browser := &stubFetcher{name: "browser", results: []stubOutcome{okResult("<html>real content here</html>")}}
	e := &Engine{Plain: plain, Browser: browser}

	res, err := e.Fetch(context.Background(), "https://example.com", Options{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Method != "browser" {
		t.Errorf("Method = %q, want browser (escalated from client-rendered shell)", res.Method)
	}
}

func TestFetch_StealthFallbackOnBrowserBlocked(t *testing.T) {
	browser := &stubFetcher{name: "browser", results: []stubOutcome{errResult(fetchstrategy.ErrBlocked, "blocked")}}
	stealth := &stubFetcher{name: "stealth", results: []stubOutcome{okResult("<html>ok</html>")}}
	e := &Engine{Browser: browser, Stealth: stealth}

	res, err := e.Fetch(context.Background(), "https://example.com", Options{ForceBrowser: true})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Method != "stealth" {
		t.Errorf("Method = %q, want stealth", res.Method)
	}
}

func TestFetch_CloudflareRetryWithWait(t *testing.T) {
	calls := 0
	browser := &stubFetcherFunc{
		fn: func(req *fetchstrategy.Request) (*fetchstrategy.Result, error) {
			calls++
			if calls == 1 {
				return nil, fetchstrategy.NewFetchError(fetchstrategy.ErrNetwork, "cloudflare challenge detected", nil)
			}
			if req.WaitMs != 5000 {
				t.Errorf("retry WaitMs = %d, want 5000", req.WaitMs)
			}
			return &fetchstrategy.Result{HTML: "ok", Method: "browser"}, nil
		},
	}
	e := &Engine{Browser: browser}

	res, err := e.Fetch(context.Background(), "https://example.com", Options{ForceBrowser: true})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.HTML != "ok" {
		t.Errorf("HTML = %q", res.HTML)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestFetch_PerHostOverrideForcesBrowser(t *testing.T) {
	plain := &stubFetcher{name: "plain", results: []stubOutcome{errResult(fetchstrategy.ErrNetwork, "should not be called")}}
	browser := &stubFetcher{name: "browser", results: []stubOutcome{okResult("<html>reddit</html>")}}
	e := &Engine{Plain: plain, Browser: browser}

	res, err := e.Fetch(context.Background(), "https://www.reddit.com/r/golang", Options{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Method != "browser" {
		t.Errorf("Method = %q, want browser", res.Method)
	}
	if plain.calls != 0 {
		t.Errorf("plain.calls = %d, want 0 (host override should skip plain)", plain.calls)
	}
}

func TestFetch_FreshCacheHitSkipsChain(t *testing.T) {
	cache := respcache.New()
	cache.Set("https://example.com", &fetchstrategy.Result{HTML: "cached", Method: "plain"})
	plain := &stubFetcher{name: "plain", results: []stubOutcome{errResult(fetchstrategy.ErrNetwork, "should not be called")}}
	e := &Engine{Plain: plain, Cache: cache}

	res, err := e.Fetch(context.Background(), "https://example.com", Options{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !res.FromCache || res.HTML != "cached" {
		t.Errorf("expected cached hit, got %+v", res)
	}
	if plain.calls != 0 {
		t.Errorf("plain.calls = %d, want 0", plain.calls)
	}
}

func TestFetch_DomainMemoryAcceleratesToBrowser(t *testing.T) {
	mem := enginesupport.NewDomainMemory(time.Hour)
	defer mem.Stop()
	mem.Set("example.com", "browser")

	plain := &stubFetcher{name: "plain", results: []stubOutcome{errResult(fetchstrategy.ErrNetwork, "should not be called")}}
	browser := &stubFetcher{name: "browser", results: []stubOutcome{okResult("<html>ok</html>")}}
	e := &Engine{Plain: plain, Browser: browser, Memory: mem}

	_, err := e.Fetch(context.Background(), "https://example.com", Options{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if plain.calls != 0 {
		t.Errorf("plain.calls = %d, want 0 (domain memory should skip plain)", plain.calls)
	}
}

type stubFetcherFunc struct {
	fn func(*fetchstrategy.Request) (*fetchstrategy.Result, error)
}

func (s *stubFetcherFunc) Name() string { return "browser" }

func (s *stubFetcherFunc) Fetch(ctx context.Context, req *fetchstrategy.Request) (*fetchstrategy.Result, error) {
	return s.fn(req)
}
