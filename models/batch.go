package models

// BatchRequest is the payload for POST /v1/batch.
type BatchRequest struct {
	// URLs is the list of target pages to scrape. Required.
	URLs []string `json:"urls" binding:"required,min=1,max=100"`

	// Options contains shared scrape options applied to all URLs.
	Options BatchOptions `json:"options"`
}

// BatchOptions are the shared scrape settings applied to every URL in a batch.
type BatchOptions struct {
	OutputFormat string `json:"output_format,omitempty" binding:"omitempty,oneof=markdown html text"`
	ExtractMode  string `json:"extract_mode,omitempty" binding:"omitempty,oneof=readability raw"`
	WaitMs       int    `json:"wait_ms,omitempty" binding:"omitempty,min=0,max=60000"`
	Timeout      int    `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`
	Stealth      bool   `json:"stealth,omitempty"`
	Webhook      string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`

	// WebhookEvents restricts delivery to a subset of started|page|completed|failed.
	// Empty subscribes to every event.
	WebhookEvents   []string          `json:"webhook_events,omitempty" binding:"omitempty,dive,oneof=started page completed failed"`
	WebhookMetadata map[string]string `json:"webhook_metadata,omitempty"`
}

// BatchResponse is the immediate response for POST /v1/batch.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /v1/batch/:id.
type BatchStatusResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Progress  int               `json:"progress"`
	Completed int               `json:"completed"`
	Total     int               `json:"total"`
	Results   []*ScrapeResponse `json:"results,omitempty"`
	Error     string            `json:"error,omitempty"`
}
