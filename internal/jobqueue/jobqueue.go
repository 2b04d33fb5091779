// Package jobqueue is the in-memory job store backing batch, crawl, and
// async agent operations: a single Queue keyed by job type, replacing the
// teacher's separate ad hoc batch/crawl stores.
//
// Grounded on the teacher's api/handler/batch.go and api/handler/crawl.go
// job-store pattern (a package-level store plus a background TTL sweep via
// time.Ticker), generalized into one injectable Queue per spec.md §4.7.
// Job IDs use github.com/google/uuid (promoted from a teacher transitive
// dependency to a direct one here) in place of the teacher's raw
// crypto/rand hex IDs.
package jobqueue

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/webpeel/webpeel/internal/webhook"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// activeExpiry is how far in the future a freshly created job's expiry is
// set, before it reaches a terminal state.
const activeExpiry = 25 * time.Hour

// terminalExpiry is how far in the future a job's expiry is pushed once it
// reaches a terminal state.
const terminalExpiry = 24 * time.Hour

// Job is the unified record for any long-running operation (batch, crawl,
// map) tracked by the queue.
type Job struct {
	ID          string
	Type        string
	Status      Status
	Progress    int // 0-100
	Total       int
	Completed   int
	CreditsUsed int
	Data        any
	Error       string
	Webhook     *webhook.Config
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
}

func (j *Job) recomputeProgress() {
	if j.Total <= 0 {
		j.Progress = 0
		return
	}
	j.Progress = int(math.Round(100 * float64(j.Completed) / float64(j.Total)))
}

func (j *Job) clone() *Job {
	cp := *j
	return &cp
}

// ListOptions filters and bounds a List call.
type ListOptions struct {
	Type   string
	Status Status
	Limit  int
}

// Queue is an in-memory jobId->Job store with a background expiry sweep.
// Safe for concurrent use.
type Queue struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	stop    chan struct{}
	stopped bool
}

// New creates a Queue and starts its hourly expiry sweeper.
func New() *Queue {
	q := &Queue{jobs: make(map[string]*Job), stop: make(chan struct{})}
	go q.sweepLoop()
	return q
}

// Create registers a new job in the queued state with a default 25h expiry.
func (q *Queue) Create(jobType string, total int, wh *webhook.Config) *Job {
	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    StatusQueued,
		Total:     total,
		Webhook:   wh,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(activeExpiry),
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.mu.Unlock()

	if wh != nil {
		webhook.DeliverAsync(*wh, job.ID, webhook.EventStarted, nil)
	}
	return job.clone()
}

// Get returns a copy of the job with the given id.
func (q *Queue) Get(id string) (*Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

// Update applies patch to the stored job under the queue's lock, refreshes
// UpdatedAt, and recomputes Progress. Returns the updated job, or false if
// id is unknown.
func (q *Queue) Update(id string, patch func(*Job)) (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return nil, false
	}
	patch(job)
	job.UpdatedAt = time.Now()
	job.recomputeProgress()
	if job.Status == StatusCompleted || job.Status == StatusFailed || job.Status == StatusCancelled {
		job.ExpiresAt = job.UpdatedAt.Add(terminalExpiry)
	}
	return job.clone(), true
}

// Cancel transitions a queued or processing job to cancelled. Returns
// false if the job doesn't exist or is already in a terminal state.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return false
	}
	if job.Status != StatusQueued && job.Status != StatusProcessing {
		return false
	}
	job.Status = StatusCancelled
	job.UpdatedAt = time.Now()
	job.ExpiresAt = job.UpdatedAt.Add(terminalExpiry)
	return true
}

// List returns jobs matching opts, ordered by CreatedAt descending.
// A zero Limit returns every match.
func (q *Queue) List(opts ListOptions) []*Job {
	q.mu.RLock()
	matches := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		if opts.Type != "" && job.Type != opts.Type {
			continue
		}
		if opts.Status != "" && job.Status != opts.Status {
			continue
		}
		matches = append(matches, job.clone())
	}
	q.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return matches
}

// CleanExpired removes every job whose ExpiresAt has passed, returning the
// count removed.
func (q *Queue) CleanExpired() int {
	now := time.Now()
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for id, job := range q.jobs {
		if job.ExpiresAt.Before(now) {
			delete(q.jobs, id)
			removed++
		}
	}
	return removed
}

// Destroy stops the background sweeper. The queue may no longer be used
// afterward.
func (q *Queue) Destroy() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.stopped = true
	close(q.stop)
}

func (q *Queue) sweepLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-q.stop:
			return
		case <-ticker.C:
			q.CleanExpired()
		}
	}
}
