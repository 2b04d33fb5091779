package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/webpeel/webpeel/models"
)

func TestExtract_ParsesStructuredResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"content": "{\"title\":\"hello\"}"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	c := NewClient(nil)
	res, err := c.Extract(context.Background(), "some content", json.RawMessage(`{"type":"object"}`), ExtractParams{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		BaseURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if string(res.Data) != `{"title":"hello"}` {
		t.Errorf("Data = %s", res.Data)
	}
	if res.Usage.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d, want 15", res.Usage.TotalTokens)
	}
}

func TestExtract_UnauthorizedMapsToLLMAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	c := NewClient(nil)
	_, err := c.Extract(context.Background(), "content", json.RawMessage(`{}`), ExtractParams{BaseURL: srv.URL})
	if err == nil {
		t.Fatal("expected error")
	}
	se, ok := err.(*models.ScrapeError)
	if !ok {
		t.Fatalf("error type = %T, want *models.ScrapeError", err)
	}
	if se.Code != models.ErrCodeLLMAuthFailure {
		t.Errorf("Code = %q, want %q", se.Code, models.ErrCodeLLMAuthFailure)
	}
}

func TestExtract_RateLimitedMapsToLLMRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	c := NewClient(nil)
	_, err := c.Extract(context.Background(), "content", json.RawMessage(`{}`), ExtractParams{BaseURL: srv.URL})
	se, ok := err.(*models.ScrapeError)
	if !ok {
		t.Fatalf("error type = %T, want *models.ScrapeError", err)
	}
	if se.Code != models.ErrCodeLLMRateLimited {
		t.Errorf("Code = %q, want %q", se.Code, models.ErrCodeLLMRateLimited)
	}
}

func TestExtract_InvalidJSONContentErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"content": "not json"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(nil)
	_, err := c.Extract(context.Background(), "content", json.RawMessage(`{}`), ExtractParams{BaseURL: srv.URL})
	if err == nil {
		t.Fatal("expected error for invalid JSON content")
	}
}

func TestExtract_NoChoicesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	c := NewClient(nil)
	_, err := c.Extract(context.Background(), "content", json.RawMessage(`{}`), ExtractParams{BaseURL: srv.URL})
	if err == nil {
		t.Fatal("expected error when no choices returned")
	}
}
