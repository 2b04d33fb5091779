package checkpoint

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateJobID_DeterministicAndDistinguishing(t *testing.T) {
	id1, err := GenerateJobID("https://example.com", map[string]any{"maxPages": 10})
	require.NoError(t, err)
	id2, err := GenerateJobID("https://example.com", map[string]any{"maxPages": 10})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 16)

	id3, err := GenerateJobID("https://example.com", map[string]any{"maxPages": 20})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)

	id4, err := GenerateJobID("https://example.org", map[string]any{"maxPages": 10})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id4)
}

func TestGenerateJobID_InsensitiveToKeyOrder(t *testing.T) {
	id1, err := GenerateJobID("https://example.com", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	id2, err := GenerateJobID("https://example.com", map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "checkpoints"))
	require.NoError(t, err)
	return s
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	cp := &Checkpoint{
		JobID:    "abc123",
		StartURL: "https://example.com",
		Completed: map[string]PageRecord{
			"https://example.com/a": {Status: PageStatusOK, ContentLength: 100, Timestamp: time.Now().Truncate(time.Second)},
		},
		Pending:    []string{"https://example.com/b", "https://example.com/c"},
		Discovered: []string{"https://example.com/d"},
		StartedAt:  time.Now().Truncate(time.Second),
		MaxPages:   50,
	}
	require.NoError(t, s.Save(cp))

	loaded, err := s.Load("abc123")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, cp.StartURL, loaded.StartURL)
	assert.Equal(t, cp.Pending, loaded.Pending)
	assert.Equal(t, cp.Discovered, loaded.Discovered)
	require.Contains(t, loaded.Completed, "https://example.com/a")
	assert.Equal(t, PageStatusOK, loaded.Completed["https://example.com/a"].Status)
	assert.Equal(t, 100, loaded.Completed["https://example.com/a"].ContentLength)
}

func TestStore_LoadMissingReturnsNilNil(t *testing.T) {
	s := newTestStore(t)
	cp, err := s.Load("does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	cp := &Checkpoint{JobID: "xyz", StartURL: "https://example.com", Completed: map[string]PageRecord{}}
	require.NoError(t, s.Save(cp))

	require.NoError(t, s.Delete("xyz"))
	require.NoError(t, s.Delete("xyz"))

	loaded, err := s.Load("xyz")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_ListReturnsAllJobIDs(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(&Checkpoint{JobID: "job-a", Completed: map[string]PageRecord{}}))
	require.NoError(t, s.Save(&Checkpoint{JobID: "job-b", Completed: map[string]PageRecord{}}))

	ids, err := s.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"job-a", "job-b"}, ids)
}
