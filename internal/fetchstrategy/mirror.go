package fetchstrategy

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// MirrorFetcher retrieves a cached copy of a page from a public mirror
// host, stripping the mirror's wrapper chrome before returning the result.
//
// The HTTP plumbing follows the same pattern as PlainFetcher; the
// wrapper-stripping heuristics (first <hr> after a notice keyword,
// wrapper DIV removal by id) are bespoke to this strategy and implemented
// with golang.org/x/net/html, already a pack dependency, for structural
// robustness over a regex-only approach.
type MirrorFetcher struct {
	client      *http.Client
	mirrorHost  string
	noticeWords []string
	wrapperIDs  []string
}

// NewMirrorFetcher builds a MirrorFetcher against the given mirror host
// (e.g. "webcache.example.org"). noticeWords and wrapperIDs tune the
// wrapper-stripping heuristics; sensible defaults are used when empty.
func NewMirrorFetcher(mirrorHost string, noticeWords, wrapperIDs []string) *MirrorFetcher {
	if len(noticeWords) == 0 {
		noticeWords = []string{"cached page", "this is a cached copy", "archived version"}
	}
	if len(wrapperIDs) == 0 {
		wrapperIDs = []string{"mirror-banner", "mirror-header", "mirror-notice"}
	}
	return &MirrorFetcher{
		client:      &http.Client{Timeout: 20 * time.Second},
		mirrorHost:  mirrorHost,
		noticeWords: noticeWords,
		wrapperIDs:  wrapperIDs,
	}
}

func (f *MirrorFetcher) Name() string { return "mirror" }

func (f *MirrorFetcher) Fetch(ctx context.Context, req *Request) (*Result, error) {
	if f.mirrorHost == "" {
		return nil, NewFetchError(ErrUnsupported, "no mirror host configured", nil)
	}

	mirrorURL := "https://" + f.mirrorHost + "/" + req.URL
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, mirrorURL, nil)
	if err != nil {
		return nil, NewFetchError(ErrInvalidURL, "build mirror request", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, NewFetchError(ErrNetwork, "mirror request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlainBodyBytes))
	if err != nil {
		return nil, NewFetchError(ErrNetwork, "read mirror body", err)
	}

	finalHost := resp.Request.URL.Host
	if reason := mirrorMiss(resp.StatusCode, finalHost, f.mirrorHost, body); reason != "" {
		return nil, NewFetchError(ErrNetwork, "mirror miss: "+reason, nil)
	}

	stripped, cachedAt := stripMirrorChrome(body, f.noticeWords, f.wrapperIDs)

	result := &Result{
		HTML:       stripped,
		StatusCode: resp.StatusCode,
		FinalURL:   req.URL,
		Method:     f.Name(),
	}
	if cachedAt != nil {
		result.MirrorCachedAt = cachedAt
	}
	return result, nil
}

// mirrorMiss detects the absence of a usable cached copy: a 404, a
// redirect away from the mirror host, a page that looks like the
// mirror's own search results, or a suspiciously short body.
func mirrorMiss(status int, finalHost, mirrorHost string, body []byte) string {
	switch {
	case status == http.StatusNotFound:
		return "404"
	case finalHost != "" && !strings.EqualFold(finalHost, mirrorHost):
		return "redirected away from mirror host"
	case len(body) < 200:
		return "body shorter than 200 bytes"
	}
	lower := strings.ToLower(string(body))
	if strings.Contains(lower, "search results") || strings.Contains(lower, "no cached page found") {
		return "search-results marker present"
	}
	return ""
}

// stripMirrorChrome removes the mirror's wrapper chrome: everything up to
// and including the first <hr> that follows a known notice keyword, plus
// any element whose id matches a known wrapper id. Falls through with the
// body unchanged when no markers are found.
func stripMirrorChrome(body []byte, noticeWords, wrapperIDs []string) (string, *time.Time) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return string(body), nil
	}

	var cachedAt *time.Time
	removeWrapperNodes(doc, wrapperIDs, noticeWords, &cachedAt)

	var sb strings.Builder
	_ = html.Render(&sb, doc)
	return sb.String(), cachedAt
}

func removeWrapperNodes(n *html.Node, wrapperIDs, noticeWords []string, cachedAt **time.Time) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.ElementNode && hasWrapperID(c, wrapperIDs) {
			if ts := extractCachedAtTimestamp(c); ts != nil {
				*cachedAt = ts
			}
			n.RemoveChild(c)
			continue
		}
		if c.Type == html.ElementNode && c.Data == "hr" && precededByNotice(c, noticeWords) {
			// Remove this <hr> and everything before it within the parent,
			// retaining only the suffix starting at its next sibling.
			removeUpToAndIncluding(n, c)
			continue
		}
		removeWrapperNodes(c, wrapperIDs, noticeWords, cachedAt)
	}
}

func hasWrapperID(n *html.Node, wrapperIDs []string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "id" {
			continue
		}
		for _, id := range wrapperIDs {
			if attr.Val == id {
				return true
			}
		}
	}
	return false
}

// precededByNotice reports whether any earlier sibling's text content
// contains one of the notice keywords.
func precededByNotice(hr *html.Node, noticeWords []string) bool {
	for sib := hr.PrevSibling; sib != nil; sib = sib.PrevSibling {
		text := strings.ToLower(textContent(sib))
		for _, word := range noticeWords {
			if strings.Contains(text, strings.ToLower(word)) {
				return true
			}
		}
	}
	return false
}

func removeUpToAndIncluding(parent, target *html.Node) {
	for c := parent.FirstChild; c != nil; {
		toRemove := c
		c = c.NextSibling
		parent.RemoveChild(toRemove)
		if toRemove == target {
			return
		}
	}
}

func extractCachedAtTimestamp(n *html.Node) *time.Time {
	text := textContent(n)
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "Jan 2, 2006"} {
		if t, err := time.Parse(layout, strings.TrimSpace(text)); err == nil {
			return &t
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}
