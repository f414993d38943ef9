package jobs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotterFlushAndReconcile(t *testing.T) {
	store := NewStore()
	created := store.Create("alice", "demo", "prompt one", Options{})
	running := store.Create("alice", "demo", "prompt two", Options{})
	_, err := store.Mutate(running.ID, func(j *Job) { j.State = StateRunning })
	require.NoError(t, err)
	queued := store.Create("alice", "demo", "prompt three", Options{})
	_, err = store.Mutate(queued.ID, func(j *Job) { j.State = StateQueued; j.QueuePosition = 1 })
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "jobs.json")
	snap := NewSnapshotter(store, path, 0)
	require.NoError(t, snap.Flush())

	restoredStore := NewStore()
	restoredSnap := NewSnapshotter(restoredStore, path, 0)
	require.NoError(t, restoredSnap.Reconcile())

	gotCreated, err := restoredStore.Get(created.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, StateCreated, gotCreated.State)

	gotRunning, err := restoredStore.Get(running.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, gotRunning.State)
	require.NotNil(t, gotRunning.Error)
	assert.Equal(t, "System", gotRunning.Error.Kind)

	gotQueued, err := restoredStore.Get(queued.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, StateQueued, gotQueued.State)
}

func TestSnapshotterReconcileMissingFileIsNotAnError(t *testing.T) {
	store := NewStore()
	snap := NewSnapshotter(store, filepath.Join(t.TempDir(), "missing.json"), 0)
	assert.NoError(t, snap.Reconcile())
}
