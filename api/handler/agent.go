package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/webpeel/webpeel/internal/jobqueue"
	"github.com/webpeel/webpeel/internal/llmclient"
	"github.com/webpeel/webpeel/internal/ssebus"
	"github.com/webpeel/webpeel/internal/webhook"
	"github.com/webpeel/webpeel/models"
)

const agentJobType = "agent"

// defaultAgentSchema is used when the caller doesn't supply one: a single
// free-text "answer" field.
var defaultAgentSchema = json.RawMessage(`{"type":"object","properties":{"answer":{"type":"string"}},"required":["answer"]}`)

func agentSchema(req *models.AgentRequest) json.RawMessage {
	if len(req.Schema) > 0 {
		return req.Schema
	}
	return defaultAgentSchema
}

// Agent returns a handler for POST /v1/agent: a synchronous one-shot BYOK
// completion pass-through. The full multi-step research-agent loop is an
// out-of-scope collaborator; this only wraps internal/llmclient.
func Agent(llmClient *llmclient.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AgentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.AgentResponse{Error: &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()}})
			return
		}
		req.Defaults()

		result, err := llmClient.Extract(c.Request.Context(), req.Prompt, agentSchema(&req), llmclient.ExtractParams{
			APIKey:  req.LLMAPIKey,
			Model:   req.LLMModel,
			BaseURL: req.LLMBaseURL,
		})
		if err != nil {
			respondAgentError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.AgentResponse{Success: true, Data: result.Data, LLMUsage: result.Usage})
	}
}

// PostAgentAsync returns a handler for POST /v1/agent/async: registers a job
// and runs the same completion in the background, firing a webhook (if
// configured) on completion.
func PostAgentAsync(queue *jobqueue.Queue, llmClient *llmclient.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AgentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.AgentResponse{Error: &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()}})
			return
		}
		req.Defaults()

		var wh *webhook.Config
		if req.WebhookURL != "" {
			wh = &webhook.Config{
				URL:      req.WebhookURL,
				Secret:   req.WebhookSecret,
				Events:   webhook.ParseEvents(req.WebhookEvents),
				Metadata: req.WebhookMetadata,
			}
		}
		job := queue.Create(agentJobType, 1, wh)

		go runAgentAsync(queue, llmClient, job.ID, req)

		c.JSON(http.StatusOK, models.AgentJobResponse{ID: job.ID, Status: string(jobqueue.StatusQueued)})
	}
}

// GetAgentAsync returns a handler for GET /v1/agent/async/:id.
func GetAgentAsync(queue *jobqueue.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := queue.Get(c.Param("id"))
		if !ok || job.Type != agentJobType {
			c.JSON(http.StatusNotFound, models.NewEnvelope(models.KindInvalidRequest, "agent job not found"))
			return
		}

		resp := models.AgentStatusResponse{ID: job.ID, Status: string(job.Status), Error: job.Error}
		if result, ok := job.Data.(*llmclient.ExtractResult); ok && result != nil {
			resp.Data = result.Data
			resp.LLMUsage = result.Usage
		}
		c.JSON(http.StatusOK, resp)
	}
}

func runAgentAsync(queue *jobqueue.Queue, llmClient *llmclient.Client, jobID string, req models.AgentRequest) {
	queue.Update(jobID, func(j *jobqueue.Job) { j.Status = jobqueue.StatusProcessing })

	result, err := llmClient.Extract(context.Background(), req.Prompt, agentSchema(&req), llmclient.ExtractParams{
		APIKey:  req.LLMAPIKey,
		Model:   req.LLMModel,
		BaseURL: req.LLMBaseURL,
	})

	var job *jobqueue.Job
	if err != nil {
		job, _ = queue.Update(jobID, func(j *jobqueue.Job) {
			j.Status = jobqueue.StatusFailed
			j.Completed = 1
			j.Error = err.Error()
		})
	} else {
		job, _ = queue.Update(jobID, func(j *jobqueue.Job) {
			j.Status = jobqueue.StatusCompleted
			j.Completed = 1
			j.Data = result
		})
	}

	if job != nil && job.Webhook != nil {
		ev := webhook.EventCompleted
		if err != nil {
			ev = webhook.EventFailed
		}
		webhook.DeliverAsync(*job.Webhook, jobID, ev, job.Data)
	}
}

// AgentStream returns a handler for POST /v1/agent/stream: the same
// one-shot completion, but framed as step/chunk/done SSE events via
// internal/ssebus instead of a single JSON response.
func AgentStream(llmClient *llmclient.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AgentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.AgentResponse{Error: &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()}})
			return
		}
		req.Defaults()

		sw, err := ssebus.NewWriter(c.Writer)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}

		sw.WriteEvent(ssebus.Event{Type: ssebus.EventStep, Data: map[string]any{"name": "started"}})

		result, err := llmClient.Extract(c.Request.Context(), req.Prompt, agentSchema(&req), llmclient.ExtractParams{
			APIKey:  req.LLMAPIKey,
			Model:   req.LLMModel,
			BaseURL: req.LLMBaseURL,
		})
		if err != nil {
			sw.WriteEvent(ssebus.Event{Type: ssebus.EventStep, Data: map[string]any{"name": "error", "message": err.Error()}})
			sw.WriteDone()
			return
		}

		sw.WriteEvent(ssebus.Event{Type: ssebus.EventChunk, Data: models.AgentResponse{Success: true, Data: result.Data, LLMUsage: result.Usage}})
		sw.WriteEvent(ssebus.Event{Type: ssebus.EventDone})
		sw.WriteDone()
	}
}

func respondAgentError(c *gin.Context, err error) {
	scrapeErr, ok := err.(*models.ScrapeError)
	if !ok {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}
	c.JSON(mapExtractErrorToStatus(scrapeErr), models.AgentResponse{Error: scrapeErr.ToDetail()})
}
