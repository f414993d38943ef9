//go:build linux || darwin

package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestShadowPasswordDBLookup(t *testing.T) {
	passwd := writeTempFile(t, "passwd", "alice:x:1001:1001:Alice:/home/alice:/bin/bash\n")
	shadow := writeTempFile(t, "shadow", "alice:$6$abc$def:19000:0:99999:7:::\n")

	db := &ShadowPasswordDB{passwdPath: passwd, shadowPath: shadow}
	rec, err := db.Lookup(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1001, rec.UID)
	assert.Equal(t, "/home/alice", rec.Home)
	assert.Equal(t, "$6$abc$def", rec.HashedSecret)
	assert.False(t, rec.Locked)
}

func TestShadowPasswordDBLockedAccount(t *testing.T) {
	passwd := writeTempFile(t, "passwd", "bob:x:1002:1002:Bob:/home/bob:/bin/bash\n")
	shadow := writeTempFile(t, "shadow", "bob:!$6$abc$def:19000:0:99999:7:::\n")

	db := &ShadowPasswordDB{passwdPath: passwd, shadowPath: shadow}
	rec, err := db.Lookup(context.Background(), "bob")
	require.NoError(t, err)
	assert.True(t, rec.Locked)
}

func TestShadowPasswordDBUnknownUser(t *testing.T) {
	passwd := writeTempFile(t, "passwd", "alice:x:1001:1001:Alice:/home/alice:/bin/bash\n")
	shadow := writeTempFile(t, "shadow", "alice:$6$abc$def:19000:0:99999:7:::\n")

	db := &ShadowPasswordDB{passwdPath: passwd, shadowPath: shadow}
	_, err := db.Lookup(context.Background(), "ghost")
	assert.Error(t, err)
}
