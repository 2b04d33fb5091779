// Package webhook delivers job lifecycle events to a caller-configured URL,
// with optional HMAC-SHA256 request signing.
//
// Grounded on the teacher's webhook/webhook.go (HMAC-SHA256 signing,
// 3-retry async delivery schedule), adapted to the spec's event set
// (started|page|completed|failed) and signature header name.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Event names a job subscribes to, matching the job queue's event set.
type Event string

const (
	EventStarted   Event = "started"
	EventPage      Event = "page"
	EventCompleted Event = "completed"
	EventFailed    Event = "failed"
)

// Payload is the JSON body posted to webhook endpoints.
type Payload struct {
	JobID     string            `json:"jobId"`
	Event     Event             `json:"event"`
	Data      any               `json:"data,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// Config names a webhook target, its event subscription, signing secret,
// and caller-supplied metadata echoed back on every delivery.
//
// An empty Events subscribes to every event, matching the common case of a
// caller that just wants to be notified of everything.
type Config struct {
	URL      string
	Secret   string
	Events   []Event
	Metadata map[string]string
}

// ParseEvents converts wire-level event names (e.g. from a JSON request
// body) into Events, skipping any that don't match a known Event.
func ParseEvents(names []string) []Event {
	if len(names) == 0 {
		return nil
	}
	events := make([]Event, 0, len(names))
	for _, n := range names {
		switch Event(n) {
		case EventStarted, EventPage, EventCompleted, EventFailed:
			events = append(events, Event(n))
		}
	}
	return events
}

// Subscribed reports whether cfg's subscription includes event. An empty
// Events set means "all events".
func (cfg Config) Subscribed(event Event) bool {
	if len(cfg.Events) == 0 {
		return true
	}
	for _, e := range cfg.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Deliver sends a webhook payload synchronously. When secret is non-empty
// the body is signed with HMAC-SHA256 and sent as
// X-WebPeel-Signature: sha256=<hex>.
func Deliver(ctx context.Context, cfg Config, jobID string, event Event, data any) error {
	payload := Payload{JobID: jobID, Event: event, Data: data, Metadata: cfg.Metadata, Timestamp: time.Now().Unix()}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "WebPeel-Webhook/1.0")

	if cfg.Secret != "" {
		mac := hmac.New(sha256.New, []byte(cfg.Secret))
		mac.Write(body)
		req.Header.Set("X-WebPeel-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync fires Deliver in the background with up to 3 retries
// (delays: 1s, 5s, 30s). Delivery failures are logged and never alter job
// state, per spec. A no-op if cfg isn't subscribed to event.
func DeliverAsync(cfg Config, jobID string, event Event, data any) {
	if !cfg.Subscribed(event) {
		return
	}
	go func() {
		delays := []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}
		for attempt, delay := range delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := Deliver(ctx, cfg, jobID, event, data)
			cancel()
			if err == nil {
				slog.Info("webhook delivered", "url", cfg.URL, "event", event, "job_id", jobID, "attempt", attempt+1)
				return
			}
			slog.Warn("webhook delivery failed", "url", cfg.URL, "event", event, "job_id", jobID, "attempt", attempt+1, "error", err)
		}
		slog.Error("webhook delivery exhausted all retries", "url", cfg.URL, "event", event, "job_id", jobID)
	}()
}
