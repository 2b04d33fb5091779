package cleaner

import (
	"strings"
	"testing"
)

func TestNoopExtractor_PassesThroughRawHTML(t *testing.T) {
	var e Extractor = NoopExtractor{}
	resp, err := e.Extract("<p>hello</p>", "https://example.com", "markdown", "readability")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success || resp.Content != "<p>hello</p>" {
		t.Errorf("NoopExtractor.Extract() = %+v, want passthrough content", resp)
	}
	if resp.Metadata.SourceURL != "https://example.com" {
		t.Errorf("Metadata.SourceURL = %q, want source URL", resp.Metadata.SourceURL)
	}
}

func TestNoopExtractor_LinksAlwaysEmpty(t *testing.T) {
	var e Extractor = NoopExtractor{}
	links := e.Links(`<a href="/a">a</a>`, "https://example.com")
	if len(links.Internal) != 0 || len(links.External) != 0 {
		t.Errorf("NoopExtractor.Links() = %+v, want empty", links)
	}
}

func TestReadabilityExtractor_RawModeSkipsReadability(t *testing.T) {
	e := NewReadabilityExtractor()
	rawHTML := `<html><body><article><p>Some article text that is long enough to pass readability's minimum content length threshold easily.</p></article></body></html>`
	resp, err := e.Extract(rawHTML, "https://example.com/a", "text", "raw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resp.Content, "Some article text") {
		t.Errorf("raw mode should preserve original text, got: %q", resp.Content)
	}
}

func TestReadabilityExtractor_CSSSelectorScoping(t *testing.T) {
	e := NewReadabilityExtractor()
	rawHTML := `<html><body><nav>skip me</nav><div id="main"><p>keep me, this is the real content block with enough text.</p></div></body></html>`
	resp, err := e.Extract(rawHTML, "https://example.com/a", "text", "raw", Options{CSSSelector: "#main"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(resp.Content, "skip me") {
		t.Errorf("CSSSelector should have excluded the nav element, got: %q", resp.Content)
	}
	if !strings.Contains(resp.Content, "keep me") {
		t.Errorf("CSSSelector should have kept the #main element, got: %q", resp.Content)
	}
}

func TestReadabilityExtractor_CitationsRewritesMarkdownLinks(t *testing.T) {
	e := NewReadabilityExtractor()
	rawHTML := `<html><body><article><p>See <a href="https://go.dev">Go</a> for details, plus enough filler text to satisfy the minimum content length check that readability enforces before accepting extracted text as valid.</p></article></body></html>`
	resp, err := e.Extract(rawHTML, "https://example.com/a", "markdown", "raw", Options{Citations: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resp.Content, "[1]: https://go.dev") {
		t.Errorf("Citations option should append a reference list, got: %q", resp.Content)
	}
}
