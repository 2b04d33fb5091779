package fetchstrategy

import (
	"strings"
	"testing"
)

func TestStripMirrorChrome_RemovesWrapperDiv(t *testing.T) {
	body := []byte(`<html><body><div id="mirror-banner">This is a cached copy</div><p>Real content</p></body></html>`)
	stripped, _ := stripMirrorChrome(body, nil, nil)
	if strings.Contains(stripped, "mirror-banner") {
		t.Errorf("expected wrapper div removed, got %s", stripped)
	}
	if !strings.Contains(stripped, "Real content") {
		t.Errorf("expected real content preserved, got %s", stripped)
	}
}

func TestStripMirrorChrome_RemovesNoticeThenHR(t *testing.T) {
	body := []byte(`<html><body><p>This is a cached copy of the page</p><hr/><p>Real content</p></body></html>`)
	stripped, _ := stripMirrorChrome(body, nil, nil)
	if strings.Contains(stripped, "cached copy") {
		t.Errorf("expected notice text removed, got %s", stripped)
	}
	if !strings.Contains(stripped, "Real content") {
		t.Errorf("expected real content preserved, got %s", stripped)
	}
}

func TestStripMirrorChrome_FallsThroughWhenNoMarkers(t *testing.T) {
	body := []byte(`<html><body><p>Just a plain page</p></body></html>`)
	stripped, cachedAt := stripMirrorChrome(body, nil, nil)
	if !strings.Contains(stripped, "Just a plain page") {
		t.Errorf("expected content unchanged, got %s", stripped)
	}
	if cachedAt != nil {
		t.Error("expected no cached-at timestamp without markers")
	}
}

func TestMirrorMiss_DetectsShortBody(t *testing.T) {
	if reason := mirrorMiss(200, "mirror.example", "mirror.example", []byte("short")); reason == "" {
		t.Error("expected short body to be classified as a mirror miss")
	}
}

func TestMirrorMiss_DetectsRedirectAway(t *testing.T) {
	body := make([]byte, 300)
	if reason := mirrorMiss(200, "other.example", "mirror.example", body); reason == "" {
		t.Error("expected host mismatch to be classified as a mirror miss")
	}
}

func TestMirrorMiss_AcceptsValidBody(t *testing.T) {
	body := []byte(strings.Repeat("x", 300))
	if reason := mirrorMiss(200, "mirror.example", "mirror.example", body); reason != "" {
		t.Errorf("expected no miss, got %q", reason)
	}
}
