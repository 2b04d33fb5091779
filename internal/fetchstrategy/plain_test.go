package fetchstrategy

import "testing"

func TestClassifyBlocked_ChallengeMarker(t *testing.T) {
	if reason := classifyBlocked(403, "text/html", "Please complete the captcha to continue"); reason == "" {
		t.Error("expected 403+captcha to classify as blocked")
	}
}

func TestClassifyBlocked_CloudflareChallenge(t *testing.T) {
	if reason := classifyBlocked(503, "text/html", "cf-ray: abc123 cloudflare"); reason == "" {
		t.Error("expected 503+cloudflare to classify as blocked")
	}
}

func TestClassifyBlocked_EmptyHTMLBody(t *testing.T) {
	if reason := classifyBlocked(200, "text/html; charset=utf-8", "   "); reason == "" {
		t.Error("expected empty html body to classify as blocked")
	}
}

func TestClassifyBlocked_OrdinaryErrorNotBlocked(t *testing.T) {
	if reason := classifyBlocked(500, "text/html", "internal server error"); reason != "" {
		t.Errorf("expected ordinary 500 not classified as blocked, got %q", reason)
	}
}

func TestExtractTitle_FindsTitle(t *testing.T) {
	html := `<html><head><title>  Example Page  </title></head><body></body></html>`
	if got := extractTitle(html); got != "Example Page" {
		t.Errorf("extractTitle() = %q, want %q", got, "Example Page")
	}
}

func TestExtractTitle_NoTitleReturnsEmpty(t *testing.T) {
	html := `<html><head></head><body></body></html>`
	if got := extractTitle(html); got != "" {
		t.Errorf("extractTitle() = %q, want empty", got)
	}
}
