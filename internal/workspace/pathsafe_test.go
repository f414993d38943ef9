package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveInsideAllowsNestedPath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "file.txt"), []byte("x"), 0644))

	resolved, err := ResolveInside(root, "sub/file.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "sub", "file.txt"), resolved)
}

func TestResolveInsideRejectsDotDotEscape(t *testing.T) {
	root := t.TempDir()
	_, err := ResolveInside(root, "../../etc/passwd")
	assert.Error(t, err)
}

func TestResolveInsideRejectsAbsoluteEscape(t *testing.T) {
	root := t.TempDir()
	_, err := ResolveInside(root, "/etc/passwd")
	assert.Error(t, err)
}

func TestResolveInsideRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s3cret"), 0644))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "link.txt")))

	_, err := ResolveInside(root, "link.txt")
	assert.Error(t, err)
}

func TestResolveInsideAllowsMissingFile(t *testing.T) {
	root := t.TempDir()
	resolved, err := ResolveInside(root, "not-yet-created.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "not-yet-created.txt"), resolved)
}

func TestResolveInsideRejectsNulByte(t *testing.T) {
	root := t.TempDir()
	_, err := ResolveInside(root, "foo\x00bar")
	assert.Error(t, err)
}
