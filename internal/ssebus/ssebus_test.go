package ssebus

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriter_WriteEventFramesDataLine(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if err := w.WriteEvent(Event{Type: EventStep, Data: map[string]string{"name": "fetch"}}); err != nil {
		t.Fatalf("WriteEvent() error = %v", err)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, "data: ") || !strings.HasSuffix(body, "\n\n") {
		t.Errorf("unexpected frame: %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestWriter_WriteDoneEmitsSentinel(t *testing.T) {
	rec := httptest.NewRecorder()
	w, _ := NewWriter(rec)
	if err := w.WriteDone(); err != nil {
		t.Fatalf("WriteDone() error = %v", err)
	}
	if rec.Body.String() != "data: [DONE]\n\n" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestRoundTrip_EncodeThenDecode(t *testing.T) {
	rec := httptest.NewRecorder()
	w, _ := NewWriter(rec)

	sent := []Event{
		{Type: EventStep, Data: map[string]any{"name": "plan"}},
		{Type: EventChunk, Data: map[string]any{"text": "hello"}},
		{Type: EventDone},
	}
	for _, ev := range sent {
		if err := w.WriteEvent(ev); err != nil {
			t.Fatalf("WriteEvent() error = %v", err)
		}
	}
	if err := w.WriteDone(); err != nil {
		t.Fatalf("WriteDone() error = %v", err)
	}

	var got []Event
	err := Decode(strings.NewReader(rec.Body.String()), func(ev Event) error {
		got = append(got, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != len(sent) {
		t.Fatalf("got %d events, want %d", len(got), len(sent))
	}
	for i, ev := range got {
		if ev.Type != sent[i].Type {
			t.Errorf("event[%d].Type = %q, want %q", i, ev.Type, sent[i].Type)
		}
	}
}

func TestDecode_SkipsCommentsAndBlankLines(t *testing.T) {
	input := ": keepalive\n\ndata: {\"type\":\"step\"}\n\n\ndata: [DONE]\n\n"
	var got []Event
	err := Decode(strings.NewReader(input), func(ev Event) error {
		got = append(got, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != 1 || got[0].Type != EventStep {
		t.Errorf("got = %+v", got)
	}
}

func TestDecode_StopsAtDoneSentinel(t *testing.T) {
	input := "data: {\"type\":\"chunk\"}\n\ndata: [DONE]\n\ndata: {\"type\":\"chunk\"}\n\n"
	var got []Event
	err := Decode(strings.NewReader(input), func(ev Event) error {
		got = append(got, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected decoding to stop at [DONE], got %d events", len(got))
	}
}
