package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webpeel/webpeel/cleaner"
	"github.com/webpeel/webpeel/internal/escalate"
	"github.com/webpeel/webpeel/internal/fetchstrategy"
	"github.com/webpeel/webpeel/internal/ssebus"
	"github.com/webpeel/webpeel/models"
)

// Scrape returns a handler for POST /v1/scrape (and its /v1/peel alias).
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Engine.Fetch     → HTML + method, cache-aware        (records navigation_ms)
//  3. Extractor.Extract → Markdown/HTML/text                (records cleaning_ms)
//  4. Merge metadata (readability title → fetch-strategy title fallback).
//  5. Fill Timing, return 200.
func Scrape(engine *escalate.Engine, cl cleaner.Extractor) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.NewEnvelope(models.KindInvalidRequest, err.Error()))
			return
		}
		req.Defaults()

		if c.GetHeader("Accept") == "text/event-stream" {
			handleScrapeSSE(c, engine, cl, &req)
			return
		}

		resp, status, err := runScrape(c, engine, cl, &req, totalStart)
		if err != nil {
			respondFetchError(c, err, models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()})
			return
		}
		c.JSON(status, resp)
	}
}

// runScrape executes the fetch+clean pipeline shared by the JSON and SSE
// code paths, returning the final response body and status.
func runScrape(c *gin.Context, engine *escalate.Engine, cl cleaner.Extractor, req *models.ScrapeRequest, totalStart time.Time) (*models.ScrapeResponse, int, error) {
	navStart := time.Now()
	result, err := engine.Fetch(c.Request.Context(), req.URL, toEscalateOptions(req))
	navigationMs := time.Since(navStart).Milliseconds()
	if err != nil {
		return nil, 0, err
	}

	cleanStart := time.Now()
	var cleanOpts []cleaner.Options
	if len(req.IncludeTags) > 0 || len(req.ExcludeTags) > 0 || req.CSSSelector != "" || req.Citations {
		cleanOpts = append(cleanOpts, cleaner.Options{
			IncludeTags: req.IncludeTags,
			ExcludeTags: req.ExcludeTags,
			CSSSelector: req.CSSSelector,
			Citations:   req.Citations,
		})
	}
	resp, err := cl.Extract(result.HTML, req.URL, req.OutputFormat, req.ExtractMode, cleanOpts...)
	cleaningMs := time.Since(cleanStart).Milliseconds()
	if err != nil {
		return nil, 0, err
	}

	if resp.Metadata.Title == "" {
		resp.Metadata.Title = result.Title
	}
	resp.Metadata.FetchMethod = result.Method
	resp.StatusCode = result.StatusCode
	resp.FinalURL = result.FinalURL
	resp.EngineUsed = result.Method
	resp.ScreenshotCaptured = len(result.Screenshot) > 0
	resp.Timing = models.TimingInfo{
		TotalMs:      time.Since(totalStart).Milliseconds(),
		NavigationMs: navigationMs,
		CleaningMs:   cleaningMs,
	}
	switch {
	case result.FromCache && result.Stale:
		resp.CacheStatus = "stale"
	case result.FromCache:
		resp.CacheStatus = "hit"
	default:
		resp.CacheStatus = "miss"
	}
	resp.Success = true

	return resp, http.StatusOK, nil
}

// toEscalateOptions maps the wire request onto the escalation engine's
// option set.
func toEscalateOptions(req *models.ScrapeRequest) escalate.Options {
	opts := escalate.Options{
		ForceBrowser: req.FetchMode == "browser",
		Stealth:      req.Stealth,
		Screenshot:   req.Screenshot,
		WaitMs:       req.WaitMs,
		UserAgent:    req.UserAgent,
		Headers:      req.Headers,
		KeepPageOpen: req.KeepPageOpen,
		Location:     req.Location,
		Device:       deviceProfile(req.Device),
		BlockResources: req.BlockResources,
	}
	if req.Timeout > 0 {
		opts.TimeoutMs = req.Timeout * 1000
	}
	for _, a := range req.Actions {
		opts.Actions = append(opts.Actions, fetchstrategy.Action{
			Type:         a.Type,
			Selector:     a.Selector,
			Value:        a.Value,
			Milliseconds: a.Milliseconds,
			Amount:       a.Amount,
			Direction:    a.Direction,
		})
	}
	for _, ck := range req.Cookies {
		opts.Cookies = append(opts.Cookies, &http.Cookie{Name: ck.Name, Value: ck.Value, Domain: ck.Domain, Path: ck.Path})
	}
	return opts
}

func deviceProfile(name string) fetchstrategy.DeviceProfile {
	switch name {
	case "mobile":
		return fetchstrategy.DeviceMobile
	case "tablet":
		return fetchstrategy.DeviceTablet
	default:
		return fetchstrategy.DeviceDesktop
	}
}

// respondFetchError maps a fetchstrategy.FetchError (or other error) to
// the error-taxonomy envelope and its default HTTP status.
func respondFetchError(c *gin.Context, err error, timing models.TimingInfo) {
	kind, message := classifyError(err)
	c.JSON(models.KindHTTPStatus(kind), fetchErrorBody{
		ErrorKind: kind,
		Message:   message,
		Timing:    timing,
	})
}

// fetchErrorBody is the JSON shape for a failed fetch: the standard error
// envelope fields plus the partial timing breakdown collected before the
// failure.
type fetchErrorBody struct {
	ErrorKind models.ErrorKind `json:"error"`
	Message   string           `json:"message"`
	Timing    models.TimingInfo `json:"timing"`
}

func classifyError(err error) (models.ErrorKind, string) {
	var fe *fetchstrategy.FetchError
	if asFetchError(err, &fe) {
		switch fe.Kind {
		case fetchstrategy.ErrTimeout:
			return models.KindTimeout, fe.Msg
		case fetchstrategy.ErrBlocked:
			return models.KindBlocked, fe.Msg
		case fetchstrategy.ErrInvalidURL:
			return models.KindInvalidURL, fe.Msg
		case fetchstrategy.ErrUnsupported:
			return models.KindNotImplemented, fe.Msg
		default:
			return models.KindNetwork, fe.Msg
		}
	}
	return models.KindInternal, err.Error()
}

func asFetchError(err error, target **fetchstrategy.FetchError) bool {
	fe, ok := err.(*fetchstrategy.FetchError)
	if !ok {
		return false
	}
	*target = fe
	return true
}

// handleScrapeSSE runs the same fetch+clean pipeline but streams
// step/chunk/done progress events instead of a single JSON response.
func handleScrapeSSE(c *gin.Context, engine *escalate.Engine, cl cleaner.Extractor, req *models.ScrapeRequest) {
	totalStart := time.Now()

	sw, err := ssebus.NewWriter(c.Writer)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	sw.WriteEvent(ssebus.Event{Type: ssebus.EventStep, Data: map[string]any{"name": "started", "url": req.URL}})

	resp, _, err := runScrape(c, engine, cl, req, totalStart)
	if err != nil {
		kind, message := classifyError(err)
		sw.WriteEvent(ssebus.Event{Type: ssebus.EventStep, Data: map[string]any{"name": "error", "error": string(kind), "message": message}})
		sw.WriteDone()
		return
	}

	sw.WriteEvent(ssebus.Event{Type: ssebus.EventStep, Data: map[string]any{
		"name": "navigated", "status_code": resp.StatusCode, "final_url": resp.FinalURL, "engine_used": resp.EngineUsed,
	}})
	sw.WriteEvent(ssebus.Event{Type: ssebus.EventChunk, Data: resp})
	sw.WriteEvent(ssebus.Event{Type: ssebus.EventDone})
	sw.WriteDone()
}
