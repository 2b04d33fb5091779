package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webpeel/webpeel/cleaner"
	"github.com/webpeel/webpeel/internal/checkpoint"
	"github.com/webpeel/webpeel/internal/escalate"
	"github.com/webpeel/webpeel/internal/jobqueue"
	"github.com/webpeel/webpeel/internal/webhook"
	"github.com/webpeel/webpeel/models"
)

const crawlJobType = "crawl"

// PostCrawl returns a handler for POST /v1/crawl. It registers a job,
// derives a deterministic checkpoint id from the start URL and options, and
// launches a breadth-first crawl in the background.
func PostCrawl(queue *jobqueue.Queue, store *checkpoint.Store, engine *escalate.Engine, cl cleaner.Extractor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CrawlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.NewEnvelope(models.KindInvalidRequest, err.Error()))
			return
		}
		applyCrawlDefaults(&req)

		var wh *webhook.Config
		if req.WebhookURL != "" {
			wh = &webhook.Config{
				URL:      req.WebhookURL,
				Secret:   req.WebhookSecret,
				Events:   webhook.ParseEvents(req.WebhookEvents),
				Metadata: req.WebhookMetadata,
			}
		}

		job := queue.Create(crawlJobType, 0, wh)

		checkpointJobID, err := checkpoint.GenerateJobID(req.URL, req)
		if err != nil {
			checkpointJobID = job.ID
		}

		go runCrawl(queue, store, engine, cl, job.ID, checkpointJobID, req)

		c.JSON(http.StatusOK, models.CrawlResponse{ID: job.ID, Status: string(jobqueue.StatusQueued)})
	}
}

// GetCrawl returns a handler for GET /v1/crawl/:id.
func GetCrawl(queue *jobqueue.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := queue.Get(c.Param("id"))
		if !ok || job.Type != crawlJobType {
			c.JSON(http.StatusNotFound, models.NewEnvelope(models.KindInvalidRequest, "crawl job not found"))
			return
		}

		results, _ := job.Data.([]*models.ScrapeResponse)
		c.JSON(http.StatusOK, models.CrawlStatusResponse{
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

// DeleteCrawl returns a handler for DELETE /v1/crawl/:id, cancelling a
// queued or in-progress crawl.
func DeleteCrawl(queue *jobqueue.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !queue.Cancel(c.Param("id")) {
			c.JSON(http.StatusNotFound, models.NewEnvelope(models.KindInvalidRequest, "crawl job not found or already finished"))
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func applyCrawlDefaults(req *models.CrawlRequest) {
	if req.MaxDepth == 0 {
		req.MaxDepth = 3
	}
	if req.MaxPages == 0 {
		req.MaxPages = 100
	}
	if req.Scope == "" {
		req.Scope = "subdomain"
	}
	if req.Options.OutputFormat == "" {
		req.Options.OutputFormat = "markdown"
	}
	if req.Options.ExtractMode == "" {
		req.Options.ExtractMode = "readability"
	}
}

// crawlItem is one URL/depth pair awaiting a fetch.
type crawlItem struct {
	url   string
	depth int
}

// runCrawl performs a concurrency-bounded BFS crawl starting from the
// request URL, persisting a resumable checkpoint.Checkpoint as it goes and
// writing every completed page into the job queue.
func runCrawl(queue *jobqueue.Queue, store *checkpoint.Store, engine *escalate.Engine, cl cleaner.Extractor, queueJobID, checkpointJobID string, req models.CrawlRequest) {
	queue.Update(queueJobID, func(j *jobqueue.Job) { j.Status = jobqueue.StatusProcessing })

	baseURL, err := url.Parse(req.URL)
	if err != nil {
		queue.Update(queueJobID, func(j *jobqueue.Job) { j.Status = jobqueue.StatusFailed; j.Error = "invalid start url" })
		return
	}

	cp := &checkpoint.Checkpoint{
		JobID:     checkpointJobID,
		StartURL:  req.URL,
		Completed: make(map[string]checkpoint.PageRecord),
		Pending:   []string{req.URL},
		StartedAt: time.Now(),
		MaxPages:  req.MaxPages,
	}

	const maxConcurrent = 5
	sem := make(chan struct{}, maxConcurrent)

	visited := &sync.Map{}
	visited.Store(req.URL, struct{}{})

	var mu sync.Mutex
	var results []*models.ScrapeResponse
	var totalPages int

	queueItems := []crawlItem{{url: req.URL, depth: 0}}

	for len(queueItems) > 0 {
		mu.Lock()
		if totalPages >= req.MaxPages {
			mu.Unlock()
			break
		}
		mu.Unlock()

		currentLevel := queueItems
		queueItems = nil

		var wg sync.WaitGroup
		var nextLevel []crawlItem
		var nextMu sync.Mutex

		for _, item := range currentLevel {
			mu.Lock()
			if totalPages >= req.MaxPages {
				mu.Unlock()
				break
			}
			totalPages++
			mu.Unlock()

			wg.Add(1)
			go func(it crawlItem) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				resp := scrapeOneBatch(engine, cl, it.url, models.BatchOptions{
					OutputFormat: req.Options.OutputFormat,
					ExtractMode:  req.Options.ExtractMode,
				})

				mu.Lock()
				results = append(results, resp)
				status := checkpoint.PageStatusOK
				if !resp.Success {
					status = checkpoint.PageStatusFailed
				}
				cp.Completed[it.url] = checkpoint.PageRecord{Status: status, ContentLength: len(resp.Content), Timestamp: time.Now()}
				cp.Pending = removeURL(cp.Pending, it.url)
				completedCount := len(results)
				mu.Unlock()

				queue.Update(queueJobID, func(j *jobqueue.Job) { j.Completed = completedCount; j.Total = completedCount; j.Data = results })
				if j, ok := queue.Get(queueJobID); ok && j.Webhook != nil {
					webhook.DeliverAsync(*j.Webhook, queueJobID, webhook.EventPage, resp)
				}

				if it.depth < req.MaxDepth && resp.Success {
					for _, link := range resp.Links.Internal {
						linkURL := link.Href
						if isExcluded(linkURL, req.ExcludePatterns) {
							continue
						}
						if !isInScope(linkURL, baseURL, req.Scope) {
							continue
						}
						if _, loaded := visited.LoadOrStore(linkURL, struct{}{}); loaded {
							continue
						}
						nextMu.Lock()
						nextLevel = append(nextLevel, crawlItem{url: linkURL, depth: it.depth + 1})
						nextMu.Unlock()
						mu.Lock()
						cp.Discovered = append(cp.Discovered, linkURL)
						mu.Unlock()
					}
				}
			}(item)
		}

		wg.Wait()
		queueItems = append(queueItems, nextLevel...)

		// Links discovered this round are promoted from the discovered
		// frontier into pending now that they're actually scheduled,
		// keeping completed/pending/discovered pairwise disjoint.
		mu.Lock()
		for _, next := range nextLevel {
			cp.Discovered = removeURL(cp.Discovered, next.url)
			cp.Pending = append(cp.Pending, next.url)
		}
		mu.Unlock()

		if err := store.Save(cp); err != nil {
			slog.Warn("crawl checkpoint save failed", "job_id", checkpointJobID, "error", err)
		}
	}

	failedCount := 0
	for _, r := range results {
		if !r.Success {
			failedCount++
		}
	}

	status := jobqueue.StatusCompleted
	if failedCount == len(results) && len(results) > 0 {
		status = jobqueue.StatusFailed
	}

	job, _ := queue.Update(queueJobID, func(j *jobqueue.Job) {
		j.Status = status
		j.Total = len(results)
		j.Completed = len(results)
		j.Data = results
	})

	slog.Info("crawl job finished", "id", queueJobID, "checkpoint_id", checkpointJobID, "status", status, "total", len(results))

	if job != nil && job.Webhook != nil {
		ev := webhook.EventCompleted
		if status == jobqueue.StatusFailed {
			ev = webhook.EventFailed
		}
		webhook.DeliverAsync(*job.Webhook, queueJobID, ev, results)
	}
}

// isInScope checks whether a link URL is within the crawl scope relative to the base URL.
func isInScope(linkURL string, baseURL *url.URL, scope string) bool {
	parsed, err := url.Parse(linkURL)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	switch scope {
	case "page":
		return false
	case "domain":
		return strings.EqualFold(parsed.Host, baseURL.Host)
	case "subdomain":
		return sameBaseDomain(parsed.Host, baseURL.Host)
	default:
		return strings.EqualFold(parsed.Host, baseURL.Host)
	}
}

// sameBaseDomain checks if two hosts share the same base domain.
func sameBaseDomain(host1, host2 string) bool {
	return strings.EqualFold(baseDomain(host1), baseDomain(host2))
}

// baseDomain extracts the registrable-looking base domain from a host.
func baseDomain(host string) string {
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// removeURL returns urls with the first occurrence of target removed.
func removeURL(urls []string, target string) []string {
	for i, u := range urls {
		if u == target {
			return append(urls[:i], urls[i+1:]...)
		}
	}
	return urls
}

// isExcluded checks whether a URL matches any glob exclude pattern.
func isExcluded(rawURL string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, pattern := range patterns {
		if matched, _ := path.Match(pattern, parsed.Path); matched {
			return true
		}
		if matched, _ := path.Match(pattern, rawURL); matched {
			return true
		}
	}
	return false
}
