// Package checkpoint derives deterministic crawl job ids and persists
// resumable crawl snapshots to a per-user data directory.
//
// Grounded on rohmanhakim-docs-crawler's pkg/hashutil (digest-then-truncate
// hashing pattern) for GenerateJobID, and its internal/storage.Sink
// (ensure-dir-then-write, non-fatal logged failures) for the on-disk
// snapshot layout.
package checkpoint

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"lukechampine.com/blake3"
)

// PageStatus describes the outcome recorded for a completed page.
type PageStatus string

const (
	PageStatusOK     PageStatus = "ok"
	PageStatusFailed PageStatus = "failed"
)

// PageRecord is the metadata kept for each completed URL.
type PageRecord struct {
	Status        PageStatus `json:"status"`
	ContentLength int        `json:"contentLength"`
	Timestamp     time.Time  `json:"timestamp"`
}

// Checkpoint is a resumable snapshot of one crawl job's progress.
//
// Completed, Pending, and Discovered are pairwise disjoint; len(Completed)
// never exceeds MaxPages.
type Checkpoint struct {
	JobID          string                `json:"jobId"`
	StartURL       string                `json:"startUrl"`
	Completed      map[string]PageRecord `json:"completed"`
	Pending        []string              `json:"pending"`
	Discovered     []string              `json:"discovered"`
	Options        json.RawMessage       `json:"options,omitempty"`
	StartedAt      time.Time             `json:"startedAt"`
	LastCheckpoint time.Time             `json:"lastCheckpoint"`
	MaxPages       int                   `json:"maxPages"`
}

// onDiskCheckpoint mirrors Checkpoint's JSON shape explicitly so the wire
// format is pinned regardless of future Go-side field additions.
type onDiskCheckpoint struct {
	JobID          string                `json:"jobId"`
	StartURL       string                `json:"startUrl"`
	Completed      map[string]PageRecord `json:"completed"`
	Pending        []string              `json:"pending"`
	Discovered     []string              `json:"discovered"`
	Options        json.RawMessage       `json:"options,omitempty"`
	StartedAt      time.Time             `json:"startedAt"`
	LastCheckpoint time.Time             `json:"lastCheckpoint"`
	MaxPages       int                   `json:"maxPages"`
}

// GenerateJobID derives a stable 16-hex-character id from the start URL and
// a canonicalized (key-sorted) rendering of options. Identical inputs
// always yield the same id; different inputs yield a different id with
// cryptographic probability.
func GenerateJobID(startURL string, options any) (string, error) {
	canon, err := canonicalizeJSON(options)
	if err != nil {
		return "", fmt.Errorf("checkpoint: canonicalize options: %w", err)
	}
	h := blake3.New(32, nil)
	h.Write([]byte(startURL))
	h.Write([]byte{0})
	h.Write(canon)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8]), nil
}

// canonicalizeJSON marshals v, then re-marshals it through a generic map so
// object keys are sorted, giving options-insensitive-to-field-order a
// stable byte representation.
func canonicalizeJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return marshalSorted(generic)
}

func marshalSorted(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			kb, _ := json.Marshal(k)
			out = append(out, kb...)
			out = append(out, ':')
			vb, err := marshalSorted(val[k])
			if err != nil {
				return nil, err
			}
			out = append(out, vb...)
		}
		out = append(out, '}')
		return out, nil
	case []any:
		out := []byte{'['}
		for i, item := range val {
			if i > 0 {
				out = append(out, ',')
			}
			ib, err := marshalSorted(item)
			if err != nil {
				return nil, err
			}
			out = append(out, ib...)
		}
		out = append(out, ']')
		return out, nil
	default:
		return json.Marshal(val)
	}
}

// Store persists checkpoints as one JSON file per job under dir.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir, creating it if absent. A zero dir
// resolves to ~/.webpeel/checkpoints.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("checkpoint: resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".webpeel", "checkpoints")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(jobID string) string {
	return filepath.Join(s.dir, jobID+".json")
}

// Save writes cp to disk. Failures are logged and returned; callers are
// expected to treat persistence as best-effort and continue the crawl.
func (s *Store) Save(cp *Checkpoint) error {
	cp.LastCheckpoint = time.Now()
	disk := onDiskCheckpoint(*cp)
	data, err := json.MarshalIndent(disk, "", "  ")
	if err != nil {
		slog.Error("checkpoint: marshal failed", "job_id", cp.JobID, "error", err)
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}
	tmp := s.path(cp.JobID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		slog.Error("checkpoint: write failed", "job_id", cp.JobID, "error", err)
		return fmt.Errorf("checkpoint: write: %w", err)
	}
	if err := os.Rename(tmp, s.path(cp.JobID)); err != nil {
		slog.Error("checkpoint: rename failed", "job_id", cp.JobID, "error", err)
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}

// Load reads the checkpoint for jobID. Returns (nil, nil) if no checkpoint
// exists.
func (s *Store) Load(jobID string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.path(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpoint: read: %w", err)
	}
	var disk onDiskCheckpoint
	if err := json.Unmarshal(data, &disk); err != nil {
		return nil, fmt.Errorf("checkpoint: unmarshal: %w", err)
	}
	cp := Checkpoint(disk)
	if cp.Completed == nil {
		cp.Completed = make(map[string]PageRecord)
	}
	return &cp, nil
}

// Delete removes the checkpoint for jobID. Idempotent: deleting a
// non-existent checkpoint is not an error.
func (s *Store) Delete(jobID string) error {
	err := os.Remove(s.path(jobID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpoint: delete: %w", err)
	}
	return nil
}

// List returns the job ids of every persisted checkpoint.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, name[:len(name)-len(".json")])
	}
	sort.Strings(ids)
	return ids, nil
}
