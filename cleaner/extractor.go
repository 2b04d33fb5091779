package cleaner

import "github.com/webpeel/webpeel/models"

// Extractor turns raw fetched HTML into the cleaned content, metadata, and
// link graph carried by a models.ScrapeResponse. HTML→markdown extraction
// sits outside this repository's core (the adaptive fetch pipeline, cache,
// job queue, and crawl checkpointer); Extractor is the narrow seam the core
// depends on so it compiles and is testable without a real extraction
// backend wired in.
type Extractor interface {
	// Extract runs the cleaning pipeline over rawHTML fetched from
	// sourceURL, producing content in the requested format.
	Extract(rawHTML, sourceURL, format, extractMode string, opts ...Options) (*models.ScrapeResponse, error)

	// Links returns the same-host/cross-host anchors found in rawHTML,
	// used by the site-map handler independent of a full Extract call.
	Links(rawHTML, sourceURL string) models.LinksResult
}

// NoopExtractor is the stub default: it passes rawHTML through unchanged as
// Content and returns no links. It satisfies Extractor for callers that
// only need the core fetch/cache/queue machinery to run — for example a
// unit test of the escalation engine that never touches real extraction.
type NoopExtractor struct{}

// Extract returns rawHTML verbatim as Content, with no token or markdown
// processing applied.
func (NoopExtractor) Extract(rawHTML, sourceURL, _ string, _ string, _ ...Options) (*models.ScrapeResponse, error) {
	return &models.ScrapeResponse{
		Success: true,
		Content: rawHTML,
		Metadata: models.Metadata{
			SourceURL: sourceURL,
		},
	}, nil
}

// Links always returns an empty result.
func (NoopExtractor) Links(string, string) models.LinksResult {
	return models.LinksResult{Internal: []models.Link{}, External: []models.Link{}}
}

var (
	_ Extractor = (*ReadabilityExtractor)(nil)
	_ Extractor = NoopExtractor{}
)
