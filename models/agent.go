package models

import "encoding/json"

// AgentRequest is the payload for POST /v1/agent, /v1/agent/async, and
// /v1/agent/stream: a single free-form prompt plus BYOK LLM credentials.
// The full research-agent loop (multi-step browsing, tool use) is an
// out-of-scope collaborator; this is a thin one-shot completion pass-through.
type AgentRequest struct {
	Prompt     string          `json:"prompt" binding:"required"`
	Schema     json.RawMessage `json:"schema,omitempty"`
	LLMAPIKey  string          `json:"llm_api_key" binding:"required"`
	LLMModel   string          `json:"llm_model,omitempty"`
	LLMBaseURL string          `json:"llm_base_url,omitempty"`

	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`

	// WebhookEvents restricts delivery to a subset of started|page|completed|failed.
	// Empty subscribes to every event.
	WebhookEvents   []string          `json:"webhook_events,omitempty" binding:"omitempty,dive,oneof=started page completed failed"`
	WebhookMetadata map[string]string `json:"webhook_metadata,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *AgentRequest) Defaults() {
	if r.LLMModel == "" {
		r.LLMModel = "gpt-4o-mini"
	}
	if r.LLMBaseURL == "" {
		r.LLMBaseURL = "https://api.openai.com/v1"
	}
}

// AgentResponse is the synchronous response for POST /v1/agent.
type AgentResponse struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data,omitempty"`
	LLMUsage *LLMUsage       `json:"llm_usage,omitempty"`
	Error    *ErrorDetail    `json:"error,omitempty"`
}

// AgentJobResponse is the immediate response for POST /v1/agent/async.
type AgentJobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// AgentStatusResponse is the response for GET /v1/agent/async/:id.
type AgentStatusResponse struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data,omitempty"`
	LLMUsage *LLMUsage       `json:"llm_usage,omitempty"`
	Error    string          `json:"error,omitempty"`
}
