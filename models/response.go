package models

// ScrapeResponse is the response for POST /v1/scrape.
type ScrapeResponse struct {
	// Success indicates whether the scrape completed without errors.
	Success bool `json:"success"`

	// Content is the cleaned output in the requested format.
	Content string `json:"content"`

	// Metadata contains extracted page metadata.
	Metadata Metadata `json:"metadata"`

	// Tokens provides token estimates before and after cleaning.
	Tokens TokenInfo `json:"tokens"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`

	// StatusCode is the HTTP status the fetch strategy observed.
	StatusCode int `json:"status_code,omitempty"`

	// FinalURL is the URL after redirects.
	FinalURL string `json:"final_url,omitempty"`

	// EngineUsed names the fetch strategy that produced the result
	// (plain | browser | stealth | mirror | edge-worker).
	EngineUsed string `json:"engine_used,omitempty"`

	// CacheStatus is "hit", "stale", or "miss".
	CacheStatus string `json:"cache_status,omitempty"`

	// ScreenshotCaptured reports whether a screenshot was taken; the image
	// bytes are not included in this payload.
	ScreenshotCaptured bool `json:"screenshot_captured,omitempty"`

	// Links separates same-host and cross-host anchors found in the raw HTML.
	Links LinksResult `json:"links,omitempty"`

	// Images lists <img> elements found in the raw HTML, with relative src
	// values resolved against the source URL.
	Images []Image `json:"images,omitempty"`

	// OGMetadata holds Open Graph meta tags parsed from the raw HTML.
	OGMetadata OGMetadata `json:"og_metadata,omitempty"`
}

// LinksResult separates discovered anchors by whether their host matches
// the page's own host.
type LinksResult struct {
	Internal []Link `json:"internal"`
	External []Link `json:"external"`
}

// Link is one anchor tag with its resolved absolute href.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text,omitempty"`
}

// Image is one <img> element with its resolved absolute src.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}

// OGMetadata holds the Open Graph tags most useful for summarizing a page.
type OGMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Type        string `json:"type,omitempty"`
}

// Metadata holds page-level information extracted during scraping.
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	Author      string `json:"author,omitempty"`
	Language    string `json:"language,omitempty"`
	SourceURL   string `json:"source_url"`
	FetchMethod string `json:"fetch_method,omitempty"`
}

// TokenInfo provides before/after token estimates to show cleaning efficacy.
type TokenInfo struct {
	// OriginalEstimate is the estimated token count of the raw HTML.
	OriginalEstimate int `json:"original_estimate"`

	// CleanedEstimate is the estimated token count of the cleaned output.
	CleanedEstimate int `json:"cleaned_estimate"`

	// SavingsPercent is the percentage of tokens removed (0-100).
	SavingsPercent float64 `json:"savings_percent"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// NavigationMs is the time spent navigating and rendering the page.
	NavigationMs int64 `json:"navigation_ms"`

	// CleaningMs is the time spent extracting content and converting to markdown.
	CleaningMs int64 `json:"cleaning_ms"`
}

// HealthResponse is the response for GET /v1/health.
type HealthResponse struct {
	Status    string    `json:"status"`      // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
	BrowserPID  int `json:"browser_pid"`
}
