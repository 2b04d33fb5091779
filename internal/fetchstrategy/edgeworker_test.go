package fetchstrategy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEdgeWorkerFetcher_ParsesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":   200,
			"body":     "<html>hi</html>",
			"finalUrl": "https://example.com/",
			"edge":     "sfo",
		})
	}))
	defer srv.Close()

	f := &EdgeWorkerFetcher{client: srv.Client(), endpoint: srv.URL, token: "secret"}
	res, err := f.Fetch(context.Background(), &Request{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.HTML != "<html>hi</html>" {
		t.Errorf("HTML = %q", res.HTML)
	}
	if res.Method != "edge-worker(sfo)" {
		t.Errorf("Method = %q", res.Method)
	}
}

func TestEdgeWorkerFetcher_SurfacesEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "origin unreachable"})
	}))
	defer srv.Close()

	f := &EdgeWorkerFetcher{client: srv.Client(), endpoint: srv.URL}
	_, err := f.Fetch(context.Background(), &Request{URL: "https://example.com"})
	if err == nil {
		t.Fatal("expected error from envelope error field")
	}
}

func TestNewEdgeWorkerFetcherFromEnv_UnsetReturnsUnavailable(t *testing.T) {
	t.Setenv("WEBPEEL_CF_WORKER_URL", "")
	if _, ok := NewEdgeWorkerFetcherFromEnv(); ok {
		t.Error("expected unavailable when WEBPEEL_CF_WORKER_URL unset")
	}
}
