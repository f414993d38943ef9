package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyStrategyClonesTree(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "b.txt"), []byte("b"), 0644))

	dst := filepath.Join(t.TempDir(), "clone")
	require.NoError(t, copyStrategy{}.clone(context.Background(), src, dst))

	a, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(a))

	b, err := os.ReadFile(filepath.Join(dst, "nested", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(b))
}

func TestHardlinkStrategyClonesTree(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("a"), 0644))

	dst := filepath.Join(t.TempDir(), "clone")
	require.NoError(t, hardlinkStrategy{}.clone(context.Background(), src, dst))

	a, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(a))
}

func TestDetectStrategyHonorsOverride(t *testing.T) {
	root := t.TempDir()
	assert.Equal(t, "copy", DetectStrategy(root, "copy").name())
	assert.Equal(t, "hardlink", DetectStrategy(root, "hardlink").name())
	assert.Equal(t, "reflink", DetectStrategy(root, "reflink").name())
	assert.Equal(t, "subvolume", DetectStrategy(root, "subvolume").name())
}
