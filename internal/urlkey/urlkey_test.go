package urlkey

import "testing"

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"HTTPS://Example.COM:443/a/?b=2&a=1#x",
		"http://example.com",
		"http://example.com:80/foo?z=1&z=2&a=3",
		"not a url at all",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestNormalize_Canonicalization(t *testing.T) {
	got := Normalize("HTTPS://Example.COM:443/a/?b=2&a=1#x")
	want := "https://example.com/a/?a=1&b=2"
	if got != want {
		t.Errorf("Normalize() = %q, want %q", got, want)
	}
}

func TestNormalize_EquivalentSpellings(t *testing.T) {
	a := Normalize("http://Example.com:80/path")
	b := Normalize("http://example.com/path")
	if a != b {
		t.Errorf("equivalent URLs normalized differently: %q vs %q", a, b)
	}
}

func TestNormalize_EmptyPathBecomesSlash(t *testing.T) {
	got := Normalize("https://example.com")
	if got != "https://example.com/" {
		t.Errorf("Normalize() = %q, want trailing slash", got)
	}
}

func TestNormalize_DuplicateQueryKeysPreserveOrder(t *testing.T) {
	got := Normalize("http://example.com/?z=1&a=x&z=2")
	want := "http://example.com/?a=x&z=1&z=2"
	if got != want {
		t.Errorf("Normalize() = %q, want %q", got, want)
	}
}

func TestNormalize_MalformedFallsBackToTrimmed(t *testing.T) {
	got := Normalize("  ::not-a-url::  ")
	if got != "::not-a-url::" {
		t.Errorf("Normalize() = %q, want trimmed original", got)
	}
}
