// Package fingerprint computes SimHash content fingerprints used to detect
// when a mirror or cached response has drifted from the live page, and to
// deduplicate near-identical pages during a crawl.
//
// Grounded on the teacher's simhash/simhash.go (word-level SimHash over
// FNV-64a token hashes) and simhash/dom.go (tag-shingle DOM-structure
// fingerprint), merged into one package and exposed through
// FetchResult.ContentFingerprint.
package fingerprint

import (
	"hash/fnv"
	"math/bits"
	"strings"

	"golang.org/x/net/html"
)

// Of computes a 64-bit SimHash fingerprint over the whitespace-tokenized
// words of text.
func Of(text string) uint64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	var vector [64]int
	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(word))
		sum := h.Sum64()
		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// OfDOMShape computes a SimHash over 3-gram shingles of the document's open
// tag sequence, ignoring text and attributes. Two fetches of the same page
// via different strategies (plain vs. browser-rendered) that preserve
// structure will fingerprint close together even when text content shifts.
func OfDOMShape(htmlStr string) uint64 {
	tags := extractTags(htmlStr)
	if len(tags) == 0 {
		return 0
	}
	shingles := shingle(tags, 3)
	if len(shingles) == 0 {
		return Of(strings.Join(tags, " "))
	}
	return Of(strings.Join(shingles, " "))
}

// Distance is the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether a and b are within threshold Hamming distance.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

func extractTags(htmlStr string) []string {
	tok := html.NewTokenizer(strings.NewReader(htmlStr))
	var tags []string
	for {
		tt := tok.Next()
		switch tt {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tok.TagName()
			tags = append(tags, string(name))
		}
	}
}

func shingle(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i <= len(tokens)-n; i++ {
		out = append(out, strings.Join(tokens[i:i+n], "_"))
	}
	return out
}
