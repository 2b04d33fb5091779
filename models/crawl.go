package models

// CrawlRequest is the payload for POST /v1/crawl.
type CrawlRequest struct {
	// URL is the starting page to crawl. Required.
	URL string `json:"url" binding:"required,url"`

	// MaxDepth limits the crawl depth from the starting URL.
	// Default: 3. Max: 10.
	MaxDepth int `json:"max_depth,omitempty" binding:"omitempty,min=1,max=10"`

	// MaxPages limits the total number of pages to crawl.
	// Default: 100. Max: 500.
	MaxPages int `json:"max_pages,omitempty" binding:"omitempty,min=1,max=500"`

	// Scope controls which links are followed.
	// "domain" (same domain), "subdomain" (same base domain), "page" (single page only).
	// Default: "subdomain".
	Scope string `json:"scope,omitempty" binding:"omitempty,oneof=domain subdomain page"`

	// ExcludePatterns is a list of glob patterns for paths to skip.
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`

	// Options contains shared scrape options for each crawled page.
	Options CrawlOptions `json:"options"`

	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`

	// WebhookEvents restricts delivery to a subset of started|page|completed|failed.
	// Empty subscribes to every event.
	WebhookEvents   []string          `json:"webhook_events,omitempty" binding:"omitempty,dive,oneof=started page completed failed"`
	WebhookMetadata map[string]string `json:"webhook_metadata,omitempty"`
}

// CrawlOptions are the scrape settings for each crawled page.
type CrawlOptions struct {
	OutputFormat string `json:"output_format,omitempty" binding:"omitempty,oneof=markdown html text"`
	ExtractMode  string `json:"extract_mode,omitempty" binding:"omitempty,oneof=readability raw"`
}

// CrawlResponse is the immediate response for POST /v1/crawl.
type CrawlResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CrawlStatusResponse is the response for GET /v1/crawl/:id.
type CrawlStatusResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Progress  int               `json:"progress"`
	Completed int               `json:"completed"`
	Total     int               `json:"total"`
	Results   []*ScrapeResponse `json:"results,omitempty"`
	Error     string            `json:"error,omitempty"`
}
