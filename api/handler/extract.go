package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webpeel/webpeel/cleaner"
	"github.com/webpeel/webpeel/internal/escalate"
	"github.com/webpeel/webpeel/internal/fetchstrategy"
	"github.com/webpeel/webpeel/internal/llmclient"
	"github.com/webpeel/webpeel/models"
)

// Extract returns a handler for POST /v1/extract.
//
// Flow:
//  1. Parse & validate ExtractRequest, apply defaults.
//  2. Engine.Fetch → raw HTML + title.
//  3. Clean (with optional CSS selector) → content.
//  4. LLM Extract → structured JSON.
//  5. Assemble response with timing and LLM usage.
func Extract(engine *escalate.Engine, cl cleaner.Extractor, llmClient *llmclient.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		var req models.ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ExtractResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()},
			})
			return
		}
		req.Defaults()

		navStart := time.Now()
		result, err := engine.Fetch(c.Request.Context(), req.URL, escalate.Options{
			ForceBrowser: req.FetchMode == "browser",
			Stealth:      req.Stealth,
			WaitMs:       req.WaitMs,
			TimeoutMs:    req.Timeout * 1000,
		})
		navigationMs := time.Since(navStart).Milliseconds()
		if err != nil {
			respondExtractError(c, err, models.ExtractTimingInfo{
				TotalMs:      time.Since(totalStart).Milliseconds(),
				NavigationMs: navigationMs,
			})
			return
		}

		cleanStart := time.Now()
		var cleanOpts []cleaner.Options
		if req.CSSSelector != "" {
			cleanOpts = append(cleanOpts, cleaner.Options{CSSSelector: req.CSSSelector})
		}
		scrapeResp, err := cl.Extract(result.HTML, req.URL, req.OutputFormat, req.ExtractMode, cleanOpts...)
		cleaningMs := time.Since(cleanStart).Milliseconds()
		if err != nil {
			respondExtractError(c, err, models.ExtractTimingInfo{
				TotalMs:      time.Since(totalStart).Milliseconds(),
				NavigationMs: navigationMs,
				CleaningMs:   cleaningMs,
			})
			return
		}

		if scrapeResp.Metadata.Title == "" {
			scrapeResp.Metadata.Title = result.Title
		}

		extractStart := time.Now()
		llmResult, err := llmClient.Extract(c.Request.Context(), scrapeResp.Content, req.Schema, llmclient.ExtractParams{
			APIKey:  req.LLMAPIKey,
			Model:   req.LLMModel,
			BaseURL: req.LLMBaseURL,
		})
		extractionMs := time.Since(extractStart).Milliseconds()
		if err != nil {
			respondExtractError(c, err, models.ExtractTimingInfo{
				TotalMs:      time.Since(totalStart).Milliseconds(),
				NavigationMs: navigationMs,
				CleaningMs:   cleaningMs,
				ExtractionMs: extractionMs,
			})
			return
		}

		c.JSON(http.StatusOK, models.ExtractResponse{
			Success:  true,
			Data:     llmResult.Data,
			Metadata: scrapeResp.Metadata,
			Tokens:   scrapeResp.Tokens,
			Timing: models.ExtractTimingInfo{
				TotalMs:      time.Since(totalStart).Milliseconds(),
				NavigationMs: navigationMs,
				CleaningMs:   cleaningMs,
				ExtractionMs: extractionMs,
			},
			LLMUsage: llmResult.Usage,
		})
	}
}

// respondExtractError maps a ScrapeError or fetchstrategy.FetchError to the
// correct HTTP status and writes a structured JSON error response.
func respondExtractError(c *gin.Context, err error, timing models.ExtractTimingInfo) {
	scrapeErr, ok := err.(*models.ScrapeError)
	if !ok {
		if _, isFetchErr := err.(*fetchstrategy.FetchError); isFetchErr {
			kind, message := classifyError(err)
			c.JSON(models.KindHTTPStatus(kind), models.ExtractResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: string(kind), Message: message},
				Timing:  timing,
			})
			return
		}
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapExtractErrorToStatus(scrapeErr), models.ExtractResponse{
		Success: false,
		Error:   scrapeErr.ToDetail(),
		Timing:  timing,
	})
}

// mapExtractErrorToStatus translates error codes to HTTP status codes,
// including LLM-specific codes.
func mapExtractErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case models.ErrCodeNavigation:
		return http.StatusBadGateway
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case models.ErrCodeRateLimited, models.ErrCodeLLMRateLimited:
		return http.StatusTooManyRequests
	case models.ErrCodeUnauthorized, models.ErrCodeLLMAuthFailure:
		return http.StatusUnauthorized
	case models.ErrCodeLLMFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
