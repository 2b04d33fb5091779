package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_CreateAndGet(t *testing.T) {
	q := New()
	defer q.Destroy()

	job := q.Create("crawl", 10, nil)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, StatusQueued, job.Status)
	assert.Equal(t, 10, job.Total)

	got, ok := q.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, job.ID, got.ID)
}

func TestQueue_UpdateRecomputesProgress(t *testing.T) {
	q := New()
	defer q.Destroy()

	job := q.Create("batch", 4, nil)
	updated, ok := q.Update(job.ID, func(j *Job) {
		j.Completed = 2
		j.Status = StatusProcessing
	})
	require.True(t, ok)
	assert.Equal(t, 50, updated.Progress)
	assert.True(t, updated.UpdatedAt.After(job.UpdatedAt) || updated.UpdatedAt.Equal(job.UpdatedAt))
}

func TestQueue_CreateSetsActiveExpiry(t *testing.T) {
	q := New()
	defer q.Destroy()

	job := q.Create("crawl", 1, nil)
	assert.WithinDuration(t, time.Now().Add(activeExpiry), job.ExpiresAt, 5*time.Second)
}

func TestQueue_UpdateToTerminalSetsTerminalExpiry(t *testing.T) {
	q := New()
	defer q.Destroy()

	job := q.Create("crawl", 1, nil)

	updated, ok := q.Update(job.ID, func(j *Job) {
		j.Status = StatusCompleted
		j.Completed = 1
	})
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(terminalExpiry), updated.ExpiresAt, 5*time.Second)
}

func TestQueue_CancelOnlyFromNonTerminal(t *testing.T) {
	q := New()
	defer q.Destroy()

	job := q.Create("crawl", 1, nil)
	assert.True(t, q.Cancel(job.ID))

	got, _ := q.Get(job.ID)
	assert.Equal(t, StatusCancelled, got.Status)

	assert.False(t, q.Cancel(job.ID), "cancelling an already-cancelled job should fail")
}

func TestQueue_ListOrdersByCreatedAtDescending(t *testing.T) {
	q := New()
	defer q.Destroy()

	first := q.Create("crawl", 1, nil)
	time.Sleep(2 * time.Millisecond)
	second := q.Create("crawl", 1, nil)

	jobs := q.List(ListOptions{Type: "crawl"})
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
}

func TestQueue_ListFiltersByStatus(t *testing.T) {
	q := New()
	defer q.Destroy()

	a := q.Create("crawl", 1, nil)
	q.Create("crawl", 1, nil)
	q.Cancel(a.ID)

	cancelled := q.List(ListOptions{Status: StatusCancelled})
	require.Len(t, cancelled, 1)
	assert.Equal(t, a.ID, cancelled[0].ID)
}

func TestQueue_ListRespectsLimit(t *testing.T) {
	q := New()
	defer q.Destroy()

	for i := 0; i < 5; i++ {
		q.Create("crawl", 1, nil)
	}
	jobs := q.List(ListOptions{Limit: 2})
	assert.Len(t, jobs, 2)
}

func TestQueue_CleanExpiredRemovesPastJobs(t *testing.T) {
	q := New()
	defer q.Destroy()

	job := q.Create("crawl", 1, nil)
	q.Update(job.ID, func(j *Job) { j.ExpiresAt = time.Now().Add(-time.Minute) })

	removed := q.CleanExpired()
	assert.Equal(t, 1, removed)

	_, ok := q.Get(job.ID)
	assert.False(t, ok)
}

func TestQueue_GetUnknownIDReturnsFalse(t *testing.T) {
	q := New()
	defer q.Destroy()
	_, ok := q.Get("does-not-exist")
	assert.False(t, ok)
}
