package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightspeed/jobforge/internal/jferr"
)

func TestStoreCreateAndGet(t *testing.T) {
	s := NewStore()
	job := s.Create("alice", "demo", "list files", Options{PreUpdate: true})

	got, err := s.Get(job.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, StateCreated, got.State)
	assert.Equal(t, "demo", got.Repository)
}

func TestStoreGetForbidsOtherPrincipal(t *testing.T) {
	s := NewStore()
	job := s.Create("alice", "demo", "prompt", Options{})

	_, err := s.Get(job.ID, "bob")
	require.Error(t, err)
	assert.Equal(t, jferr.Forbidden, jferr.KindOf(err))
}

func TestStoreGetNotFound(t *testing.T) {
	s := NewStore()
	_, err := s.Get("missing", "alice")
	assert.Equal(t, jferr.NotFound, jferr.KindOf(err))
}

func TestStoreListForPrincipalOrdersNewestFirst(t *testing.T) {
	s := NewStore()
	first := s.Create("alice", "demo", "one", Options{})
	time.Sleep(2 * time.Millisecond)
	second := s.Create("alice", "demo", "two", Options{})

	list := s.ListForPrincipal("alice")
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestStoreMutateAppliesUnderLockAndBroadcasts(t *testing.T) {
	s := NewStore()
	job := s.Create("alice", "demo", "prompt", Options{})

	ch, unsub := s.Subscribe(job.ID)
	defer unsub()

	updated, err := s.Mutate(job.ID, func(j *Job) {
		j.State = StateQueued
		j.QueuePosition = 1
	})
	require.NoError(t, err)
	assert.Equal(t, StateQueued, updated.State)

	select {
	case snap := <-ch:
		assert.Equal(t, StateQueued, snap.State)
	case <-time.After(time.Second):
		t.Fatal("expected a broadcast snapshot")
	}
}

func TestStoreDeleteRequiresTerminalUnlessForced(t *testing.T) {
	s := NewStore()
	job := s.Create("alice", "demo", "prompt", Options{})

	err := s.Delete(job.ID, "alice", false)
	require.Error(t, err)
	assert.Equal(t, jferr.Conflict, jferr.KindOf(err))

	require.NoError(t, s.Delete(job.ID, "alice", true))
	_, err = s.Get(job.ID, "alice")
	assert.Equal(t, jferr.NotFound, jferr.KindOf(err))
}

func TestStoreDeleteAllowsTerminalWithoutForce(t *testing.T) {
	s := NewStore()
	job := s.Create("alice", "demo", "prompt", Options{})
	_, err := s.Mutate(job.ID, func(j *Job) { j.State = StateCompleted })
	require.NoError(t, err)

	require.NoError(t, s.Delete(job.ID, "alice", false))
}

func TestStoreHasActiveJobsForRepository(t *testing.T) {
	s := NewStore()
	job := s.Create("alice", "demo", "prompt", Options{})

	assert.True(t, s.HasActiveJobsForRepository("demo"))

	_, err := s.Mutate(job.ID, func(j *Job) { j.State = StateCompleted })
	require.NoError(t, err)
	assert.False(t, s.HasActiveJobsForRepository("demo"))
}

func TestStoreCloneIsIndependentOfInternalState(t *testing.T) {
	s := NewStore()
	job := s.Create("alice", "demo", "prompt", Options{})

	got, err := s.Get(job.ID, "alice")
	require.NoError(t, err)
	got.State = StateCompleted

	fresh, err := s.Get(job.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, StateCreated, fresh.State)
}
