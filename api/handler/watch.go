package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webpeel/webpeel/internal/escalate"
	"github.com/webpeel/webpeel/internal/fingerprint"
	"github.com/webpeel/webpeel/models"
)

// SnapshotStore persists the last-seen content fingerprint per watched URL
// as one JSON file per URL under dir, atomically (temp file + rename),
// mirroring internal/checkpoint.Store's on-disk layout.
type SnapshotStore struct {
	mu  sync.Mutex
	dir string
}

type watchSnapshot struct {
	URL         string    `json:"url"`
	Fingerprint uint64    `json:"fingerprint"`
	CheckedAt   time.Time `json:"checkedAt"`
}

// NewSnapshotStore creates a SnapshotStore rooted at dir, creating it if
// absent. A zero dir resolves to ~/.webpeel/snapshots.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("watch: resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".webpeel", "snapshots")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("watch: create snapshot dir: %w", err)
	}
	return &SnapshotStore{dir: dir}, nil
}

func (s *SnapshotStore) path(url string) string {
	return filepath.Join(s.dir, fingerprintKey(url)+".json")
}

func fingerprintKey(url string) string {
	return fmt.Sprintf("%016x", fingerprint.Of(url))
}

func (s *SnapshotStore) load(url string) (*watchSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(url))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var snap watchSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SnapshotStore) save(snap *watchSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path(snap.URL) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(snap.URL))
}

// Watch returns a handler for POST /v1/watch. It fetches the URL, computes
// a simhash fingerprint of the cleaned text, and compares it against the
// last-recorded snapshot for that URL (if any), per internal/fingerprint's
// distance-threshold comparison.
func Watch(engine *escalate.Engine, store *SnapshotStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.WatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.WatchResponse{
				Error: &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()},
			})
			return
		}
		if req.Threshold == 0 {
			req.Threshold = 3
		}

		result, err := engine.Fetch(c.Request.Context(), req.URL, escalate.Options{})
		if err != nil {
			kind, message := classifyError(err)
			c.JSON(models.KindHTTPStatus(kind), models.WatchResponse{
				URL:   req.URL,
				Error: &models.ErrorDetail{Code: string(kind), Message: message},
			})
			return
		}

		fp := result.ContentFingerprint
		if fp == 0 {
			fp = fingerprint.Of(result.HTML)
		}
		now := time.Now()

		prev, err := store.load(req.URL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.WatchResponse{
				URL:   req.URL,
				Error: &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()},
			})
			return
		}

		resp := models.WatchResponse{
			Success:       true,
			URL:           req.URL,
			Threshold:     req.Threshold,
			LastCheckedAt: now,
		}
		if prev == nil {
			resp.FirstSeen = true
		} else {
			resp.Distance = fingerprint.Distance(prev.Fingerprint, fp)
			resp.Changed = !fingerprint.Similar(prev.Fingerprint, fp, req.Threshold)
		}

		if err := store.save(&watchSnapshot{URL: req.URL, Fingerprint: fp, CheckedAt: now}); err != nil {
			resp.Error = &models.ErrorDetail{Code: models.ErrCodeInternal, Message: "snapshot persist failed: " + err.Error()}
		}

		c.JSON(http.StatusOK, resp)
	}
}
