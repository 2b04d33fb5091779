package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/webpeel/webpeel/cleaner"
	"github.com/webpeel/webpeel/internal/escalate"
	"github.com/webpeel/webpeel/internal/jobqueue"
	"github.com/webpeel/webpeel/internal/webhook"
	"github.com/webpeel/webpeel/models"
)

const batchJobType = "batch"

// PostBatch returns a handler for POST /v1/batch. It validates the request,
// registers a job in the queue, and launches a bounded-concurrency fetch of
// every URL in the background.
func PostBatch(queue *jobqueue.Queue, engine *escalate.Engine, cl cleaner.Extractor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.NewEnvelope(models.KindInvalidRequest, err.Error()))
			return
		}

		var wh *webhook.Config
		if req.Options.Webhook != "" {
			wh = &webhook.Config{
				URL:      req.Options.Webhook,
				Secret:   req.Options.WebhookSecret,
				Events:   webhook.ParseEvents(req.Options.WebhookEvents),
				Metadata: req.Options.WebhookMetadata,
			}
		}

		job := queue.Create(batchJobType, len(req.URLs), wh)
		go runBatch(queue, engine, cl, job.ID, req)

		c.JSON(http.StatusOK, models.BatchResponse{ID: job.ID, Status: string(jobqueue.StatusProcessing), Total: len(req.URLs)})
	}
}

// GetBatch returns a handler for GET /v1/batch/:id.
func GetBatch(queue *jobqueue.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := queue.Get(c.Param("id"))
		if !ok || job.Type != batchJobType {
			c.JSON(http.StatusNotFound, models.NewEnvelope(models.KindInvalidRequest, "batch job not found"))
			return
		}

		results, _ := job.Data.([]*models.ScrapeResponse)
		c.JSON(http.StatusOK, models.BatchStatusResponse{
			ID:        job.ID,
			Status:    string(job.Status),
			Progress:  job.Progress,
			Completed: job.Completed,
			Total:     job.Total,
			Results:   results,
			Error:     job.Error,
		})
	}
}

// runBatch fetches every URL with bounded concurrency, updating the job's
// progress as each result lands, and fires the terminal webhook event.
func runBatch(queue *jobqueue.Queue, engine *escalate.Engine, cl cleaner.Extractor, jobID string, req models.BatchRequest) {
	queue.Update(jobID, func(j *jobqueue.Job) { j.Status = jobqueue.StatusProcessing })

	const maxConcurrent = 5

	results := make([]*models.ScrapeResponse, len(req.URLs))
	var succeeded, failed atomic.Int32

	var g errgroup.Group
	g.SetLimit(maxConcurrent)
	for i, rawURL := range req.URLs {
		idx, targetURL := i, rawURL
		g.Go(func() error {
			resp := scrapeOneBatch(engine, cl, targetURL, req.Options)
			results[idx] = resp
			if resp.Success {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}

			completed := int(succeeded.Load() + failed.Load())
			queue.Update(jobID, func(j *jobqueue.Job) {
				j.Completed = completed
				j.Data = results
			})
			if j, ok := queue.Get(jobID); ok && j.Webhook != nil {
				webhook.DeliverAsync(*j.Webhook, jobID, webhook.EventPage, resp)
			}
			return nil
		})
	}
	g.Wait()

	failedCount := int(failed.Load())
	status := jobqueue.StatusCompleted
	switch {
	case failedCount == len(req.URLs) && len(req.URLs) > 0:
		status = jobqueue.StatusFailed
	case failedCount > 0:
		status = jobqueue.StatusFailed
	}
	if failedCount > 0 && failedCount < len(req.URLs) {
		status = jobqueue.StatusCompleted // partial success still reports completed; per-URL errors ride in Results
	}

	job, _ := queue.Update(jobID, func(j *jobqueue.Job) { j.Status = status; j.Data = results })

	slog.Info("batch job finished", "id", jobID, "status", status, "succeeded", succeeded.Load(), "failed", failedCount, "total", len(req.URLs))

	if job != nil && job.Webhook != nil {
		ev := webhook.EventCompleted
		if status == jobqueue.StatusFailed {
			ev = webhook.EventFailed
		}
		webhook.DeliverAsync(*job.Webhook, jobID, ev, results)
	}
}

// scrapeOneBatch performs a single fetch+clean using shared batch options,
// mirroring the single-URL scrape handler's pipeline.
func scrapeOneBatch(engine *escalate.Engine, cl cleaner.Extractor, targetURL string, opts models.BatchOptions) *models.ScrapeResponse {
	totalStart := time.Now()

	navStart := time.Now()
	result, err := engine.Fetch(context.Background(), targetURL, escalate.Options{
		Stealth:   opts.Stealth,
		WaitMs:    opts.WaitMs,
		TimeoutMs: opts.Timeout * 1000,
	})
	navigationMs := time.Since(navStart).Milliseconds()
	if err != nil {
		kind, message := classifyError(err)
		return &models.ScrapeResponse{
			Success: false,
			Error:   &models.ErrorDetail{Code: string(kind), Message: message},
			Timing:  models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds(), NavigationMs: navigationMs},
		}
	}

	cleanStart := time.Now()
	format := opts.OutputFormat
	if format == "" {
		format = "markdown"
	}
	mode := opts.ExtractMode
	if mode == "" {
		mode = "readability"
	}
	resp, err := cl.Extract(result.HTML, targetURL, format, mode)
	cleaningMs := time.Since(cleanStart).Milliseconds()
	if err != nil {
		return &models.ScrapeResponse{
			Success: false,
			Error:   &models.ErrorDetail{Code: string(models.KindInternal), Message: err.Error()},
			Timing:  models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds(), NavigationMs: navigationMs, CleaningMs: cleaningMs},
		}
	}

	if resp.Metadata.Title == "" {
		resp.Metadata.Title = result.Title
	}
	resp.StatusCode = result.StatusCode
	resp.FinalURL = result.FinalURL
	resp.EngineUsed = result.Method
	resp.Timing = models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds(), NavigationMs: navigationMs, CleaningMs: cleaningMs}
	resp.Success = true
	return resp
}
