package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webpeel/webpeel/api/handler"
	"github.com/webpeel/webpeel/api/middleware"
	"github.com/webpeel/webpeel/cleaner"
	"github.com/webpeel/webpeel/internal/checkpoint"
	"github.com/webpeel/webpeel/internal/config"
	"github.com/webpeel/webpeel/internal/enginesupport"
	"github.com/webpeel/webpeel/internal/escalate"
	"github.com/webpeel/webpeel/internal/jobqueue"
	"github.com/webpeel/webpeel/internal/llmclient"
)

// Deps bundles every collaborator NewRouter wires into handlers. Assembled
// once in cmd/webpeeld/main.go and injected, per the teacher's
// construct-then-inject main.go wiring style (no package-level globals).
type Deps struct {
	Engine      *escalate.Engine
	Cleaner     cleaner.Extractor
	LLMClient   *llmclient.Client
	Queue       *jobqueue.Queue
	Checkpoints *checkpoint.Store
	Snapshots   *handler.SnapshotStore
	Pool        *enginesupport.AdaptivePool
	Config      *config.Config
	StartTime   time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(d Deps) *gin.Engine {
	mode := "release"
	if d.Config != nil {
		mode = d.Config.Server.Mode
	}
	gin.SetMode(mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(d.Pool, d.StartTime))

	protected := v1.Group("")
	if d.Config != nil && d.Config.Auth.Enabled {
		protected.Use(middleware.Auth(d.Config.Auth.APIKeys))
	}
	if d.Config != nil {
		protected.Use(middleware.RateLimit(d.Config.RateLimit))
	}

	// Scrape (and its /peel alias, per spec.md §6).
	protected.POST("/scrape", handler.Scrape(d.Engine, d.Cleaner))
	protected.POST("/peel", handler.Scrape(d.Engine, d.Cleaner))

	// Extract (structured extraction via LLM).
	protected.POST("/extract", handler.Extract(d.Engine, d.Cleaner, d.LLMClient))

	// Batch.
	protected.POST("/batch", handler.PostBatch(d.Queue, d.Engine, d.Cleaner))
	protected.GET("/batch/:id", handler.GetBatch(d.Queue))

	// Crawl.
	protected.POST("/crawl", handler.PostCrawl(d.Queue, d.Checkpoints, d.Engine, d.Cleaner))
	protected.GET("/crawl/:id", handler.GetCrawl(d.Queue))
	protected.DELETE("/crawl/:id", handler.DeleteCrawl(d.Queue))

	// Map.
	protected.POST("/map", handler.PostMap(d.Engine, d.Cleaner))

	// Watch (change detection).
	protected.POST("/watch", handler.Watch(d.Engine, d.Snapshots))

	// Agent (BYOK LLM pass-through).
	protected.POST("/agent", handler.Agent(d.LLMClient))
	protected.POST("/agent/async", handler.PostAgentAsync(d.Queue, d.LLMClient))
	protected.GET("/agent/async/:id", handler.GetAgentAsync(d.Queue))
	protected.POST("/agent/stream", handler.AgentStream(d.LLMClient))

	// Collaborator endpoints with no in-repo implementation.
	protected.POST("/youtube", handler.NotImplemented("YouTube transcript extraction"))
	protected.POST("/answer", handler.NotImplemented("question answering"))
	protected.GET("/activity", handler.NotImplemented("account activity history"))

	return r
}
