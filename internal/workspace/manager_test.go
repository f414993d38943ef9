package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	root := t.TempDir()
	m, err := NewManager(root, "copy")
	require.NoError(t, err)
	return m
}

func TestManagerCloneRepoAndDestroy(t *testing.T) {
	m := newTestManager(t)
	repo := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repo, "README.md"), []byte("hi"), 0644))

	path, err := m.CloneRepo(context.Background(), "job-1", repo)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(path, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))

	got, ok := m.Path("job-1")
	assert.True(t, ok)
	assert.Equal(t, path, got)

	require.NoError(t, m.DestroyWorkspace(context.Background(), "job-1"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, ok = m.Path("job-1")
	assert.False(t, ok)
}

func TestManagerCloneRepoRejectsDuplicateJobID(t *testing.T) {
	m := newTestManager(t)
	repo := t.TempDir()

	_, err := m.CloneRepo(context.Background(), "job-2", repo)
	require.NoError(t, err)

	_, err = m.CloneRepo(context.Background(), "job-2", repo)
	assert.Error(t, err)
}

func TestManagerDestroyWorkspaceIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.DestroyWorkspace(context.Background(), "never-created"))
	require.NoError(t, m.DestroyWorkspace(context.Background(), "never-created"))
}
