package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFakeIndexBinary creates a tiny shell script that accepts the
// serve/reconcile/health/stop subcommands this package invokes, so tests
// exercise the real exec.Command plumbing without depending on any actual
// semantic-index binary being installed.
func writeFakeIndexBinary(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-index")
	script := "#!/bin/sh\ncase \"$1\" in\n  serve) while true; do sleep 1; done ;;\n  reconcile) exit 0 ;;\n  health) exit 0 ;;\n  stop) exit 0 ;;\n  *) exit 1 ;;\nesac\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestDaemonStartReconcileStop(t *testing.T) {
	binary := writeFakeIndexBinary(t)
	workspace := t.TempDir()
	d := NewDaemon(binary, workspace)

	require.NoError(t, d.Start(context.Background()))
	assert.True(t, d.Healthy(context.Background()))
	require.NoError(t, d.Reconcile(context.Background()))
	require.NoError(t, d.Stop())
}

func TestDaemonStartFailsWithoutBinary(t *testing.T) {
	d := NewDaemon("", t.TempDir())
	err := d.Start(context.Background())
	assert.Error(t, err)
}

func TestDaemonHealthyFalseWithoutBinary(t *testing.T) {
	d := NewDaemon("", t.TempDir())
	assert.False(t, d.Healthy(context.Background()))
}
