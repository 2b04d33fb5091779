package fingerprint

import "testing"

func TestOf_IdenticalTexts(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	if Of(text) != Of(text) {
		t.Error("identical texts produced different fingerprints")
	}
}

func TestOf_SimilarTexts(t *testing.T) {
	fp1 := Of("the quick brown fox jumps over the lazy dog")
	fp2 := Of("the quick brown fox leaps over the lazy dog")
	if dist := Distance(fp1, fp2); dist > 10 {
		t.Errorf("similar texts have too large distance: %d", dist)
	}
}

func TestOf_DifferentTexts(t *testing.T) {
	fp1 := Of("the quick brown fox jumps over the lazy dog")
	fp2 := Of("completely unrelated content about quantum physics and mathematics")
	if dist := Distance(fp1, fp2); dist < 5 {
		t.Errorf("very different texts have too small distance: %d", dist)
	}
}

func TestOf_EmptyInput(t *testing.T) {
	if Of("") != 0 {
		t.Error("empty input should produce fingerprint 0")
	}
	if Of("   \t\n  ") != 0 {
		t.Error("whitespace-only input should produce fingerprint 0")
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{"identical", 0xFF, 0xFF, 0},
		{"all different", 0, ^uint64(0), 64},
		{"one bit", 0, 1, 1},
		{"two bits", 0, 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); got != tt.want {
				t.Errorf("Distance(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilar(t *testing.T) {
	fp1 := Of("the quick brown fox")
	fp2 := Of("the quick brown fox")
	if !Similar(fp1, fp2, 0) {
		t.Error("identical fingerprints should be similar at threshold 0")
	}

	fp3 := Of("a completely different text about nothing related")
	dist := Distance(fp1, fp3)
	if Similar(fp1, fp3, dist-1) {
		t.Errorf("should not be similar below its own distance (%d)", dist)
	}
	if !Similar(fp1, fp3, dist) {
		t.Errorf("should be similar at threshold equal to distance (%d)", dist)
	}
}

func TestOfDOMShape_SimilarStructures(t *testing.T) {
	html1 := `<html><head><title>Page 1</title></head><body><div><h1>Hello</h1><p>World</p></div></body></html>`
	html2 := `<html><head><title>Page 2</title></head><body><div><h1>Hi</h1><p>Earth</p></div></body></html>`
	if OfDOMShape(html1) != OfDOMShape(html2) {
		t.Error("identical DOM structures should produce the same fingerprint")
	}
}

func TestOfDOMShape_DifferentStructures(t *testing.T) {
	html1 := `<html><body><div><h1>Title</h1><p>Text</p><p>More text</p></div></body></html>`
	html2 := `<html><body><table><tr><td>A</td><td>B</td></tr><tr><td>C</td><td>D</td></tr></table></body></html>`
	if dist := Distance(OfDOMShape(html1), OfDOMShape(html2)); dist < 3 {
		t.Errorf("different DOM structures should have larger distance, got: %d", dist)
	}
}

func TestOfDOMShape_EmptyAndPlainText(t *testing.T) {
	if OfDOMShape("") != 0 {
		t.Error("empty HTML should produce fingerprint 0")
	}
	if OfDOMShape("just some plain text with no tags") != 0 {
		t.Error("plain text with no tags should produce fingerprint 0")
	}
}

func TestExtractTags(t *testing.T) {
	htmlStr := `<html><head><title>Test</title></head><body><div><p>Hello</p></div></body></html>`
	tags := extractTags(htmlStr)
	expected := []string{"html", "head", "title", "body", "div", "p"}
	if len(tags) != len(expected) {
		t.Fatalf("expected %d tags, got %d: %v", len(expected), len(tags), tags)
	}
	for i, tag := range tags {
		if tag != expected[i] {
			t.Errorf("tag[%d] = %q, want %q", i, tag, expected[i])
		}
	}
}

func TestShingle(t *testing.T) {
	tokens := []string{"a", "b", "c", "d"}
	got := shingle(tokens, 3)
	want := []string{"a_b_c", "b_c_d"}
	if len(got) != len(want) {
		t.Fatalf("expected %d shingles, got %d: %v", len(want), len(got), got)
	}
	for i, s := range got {
		if s != want[i] {
			t.Errorf("shingle[%d] = %q, want %q", i, s, want[i])
		}
	}
}

func TestShingle_TooFewTokens(t *testing.T) {
	if got := shingle([]string{"a", "b"}, 3); got != nil {
		t.Errorf("expected nil for fewer tokens than n, got: %v", got)
	}
}
