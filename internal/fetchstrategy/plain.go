package fetchstrategy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"

	"github.com/webpeel/webpeel/internal/dnscache"
)

const maxPlainBodyBytes = 10 << 20

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to
// http/1.1 only, computed once and reused for every connection.
//
// Grounded on engine.HTTPEngine's init-time utls spec construction
// (engine/http_engine.go).
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// PlainFetcher issues a single direct HTTP request with a Chrome-mimicking
// TLS fingerprint, resolving hosts through a dnscache.Cache so repeated
// fetches to the same domain skip redundant DNS round-trips.
//
// Grounded on engine.HTTPEngine (engine/http_engine.go); wired to
// internal/dnscache's DialContext in place of the teacher's bare
// net.Dialer.
type PlainFetcher struct {
	client *http.Client
	retry  RetryPolicy
}

// NewPlainFetcher builds a PlainFetcher whose dialer resolves through dns.
// A nil dns falls back to the default resolver.
func NewPlainFetcher(dns *dnscache.Cache) *PlainFetcher {
	dial := (&net.Dialer{Timeout: 10 * time.Second}).DialContext
	if dns != nil {
		dial = dns.DialContext
	}

	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dial(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("fetchstrategy: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}

	return &PlainFetcher{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		retry: DefaultRetryPolicy,
	}
}

func (f *PlainFetcher) Name() string { return "plain" }

// Fetch wraps a single attempt in the retry policy: up to 3 attempts with
// exponential backoff, retrying only Network/Timeout failures.
func (f *PlainFetcher) Fetch(ctx context.Context, req *Request) (*Result, error) {
	return withRetry(ctx, f.retry, func() (*Result, error) {
		return f.attempt(ctx, req)
	})
}

func (f *PlainFetcher) attempt(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, NewFetchError(ErrInvalidURL, "build request", err)
	}

	ua := req.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"
	}
	httpReq.Header.Set("User-Agent", ua)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "identity")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	for _, c := range req.Cookies {
		httpReq.AddCookie(c)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewFetchError(ErrTimeout, "request deadline exceeded", err)
		}
		if isTLSHandshakeError(err) {
			return nil, NewFetchError(ErrNetwork, "TLS/SSL handshake failed", err)
		}
		return nil, NewFetchError(ErrNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlainBodyBytes))
	if err != nil {
		return nil, NewFetchError(ErrNetwork, "read body", err)
	}
	bodyStr := string(body)
	ct := resp.Header.Get("Content-Type")

	if kind := classifyBlocked(resp.StatusCode, ct, bodyStr); kind != "" {
		return nil, NewFetchError(ErrBlocked, fmt.Sprintf("status %d looked bot-blocked", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return nil, NewFetchError(ErrNetwork, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	return &Result{
		HTML:       bodyStr,
		Title:      extractTitle(bodyStr),
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		Method:     f.Name(),
		Timing:     Timing{Total: time.Since(start)},
	}, nil
}

// classifyBlocked returns a non-empty reason if the response looks like a
// bot-block rather than a legitimate error: 403 with a common challenge
// marker, 503 with a Cloudflare marker, or an empty body despite an
// HTML content-type.
func classifyBlocked(status int, contentType, body string) string {
	lower := strings.ToLower(body)
	switch {
	case status == 403 && (strings.Contains(lower, "captcha") || strings.Contains(lower, "access denied") || strings.Contains(lower, "cf-browser-verification")):
		return "challenge marker"
	case status == 503 && (strings.Contains(lower, "cloudflare") || strings.Contains(lower, "cf-ray")):
		return "cloudflare challenge"
	case strings.TrimSpace(body) == "" && isHTMLContentType(contentType):
		return "empty body with html content-type"
	default:
		return ""
	}
}

func isTLSHandshakeError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "tls") || strings.Contains(msg, "handshake") || strings.Contains(msg, "certificate")
}

func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// extractTitle scans for the first <title> element using the Go HTML
// tokenizer, grounded on engine.HTTPEngine's extractTitle.
func extractTitle(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	inTitle := false
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
