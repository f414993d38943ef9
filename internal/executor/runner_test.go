package executor

import (
	"context"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func currentPrincipal(t *testing.T) Principal {
	t.Helper()
	u, err := user.Current()
	require.NoError(t, err)
	uid, err := strconv.Atoi(u.Uid)
	require.NoError(t, err)
	gid, err := strconv.Atoi(u.Gid)
	require.NoError(t, err)
	return Principal{Username: u.Username, UID: uid, GID: gid, Home: u.HomeDir}
}

func TestRunnerCapturesStdoutAndExitCode(t *testing.T) {
	principal := currentPrincipal(t)
	r := &Runner{impersonator: noopImpersonator{}}

	result, err := r.Run(context.Background(), principal, RunOptions{
		Binary:    "/bin/sh",
		Workspace: t.TempDir(),
		Prompt:    "echo hello",
		Attachments: []Attachment{},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hello\n", result.Stdout)
}

func TestRunnerPromptDeliveredOnStdin(t *testing.T) {
	principal := currentPrincipal(t)
	r := &Runner{impersonator: noopImpersonator{}}

	// cat without args echoes stdin back to stdout.
	result, err := r.Run(context.Background(), principal, RunOptions{
		Binary:    "/bin/cat",
		Workspace: t.TempDir(),
		Prompt:    "hello from the prompt",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello from the prompt", result.Stdout)
}

func TestRunnerRespectsTimeout(t *testing.T) {
	principal := currentPrincipal(t)
	r := &Runner{impersonator: noopImpersonator{}}

	start := time.Now()
	result, err := r.Run(context.Background(), principal, RunOptions{
		Binary:    "/bin/sleep",
		Workspace: t.TempDir(),
		Prompt:    "",
		Timeout:   200 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, result.TimedOut || result.Killed)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunnerFailsWithoutBinary(t *testing.T) {
	principal := currentPrincipal(t)
	r := &Runner{impersonator: noopImpersonator{}}

	_, err := r.Run(context.Background(), principal, RunOptions{Workspace: t.TempDir()})
	assert.Error(t, err)
}

func TestRunnerEnvironmentIsScrubbed(t *testing.T) {
	os.Setenv("JOBFORGE_TEST_SECRET", "leak-me-not")
	defer os.Unsetenv("JOBFORGE_TEST_SECRET")

	principal := currentPrincipal(t)
	r := &Runner{impersonator: noopImpersonator{}}

	result, err := r.Run(context.Background(), principal, RunOptions{
		Binary:    "/usr/bin/env",
		Workspace: t.TempDir(),
		Prompt:    "",
	})
	require.NoError(t, err)
	assert.NotContains(t, result.Stdout, "JOBFORGE_TEST_SECRET")
}

// noopImpersonator skips privilege-switching for tests running as a normal
// user where neither credential-drop nor sudo is available.
type noopImpersonator struct{}

func (noopImpersonator) prepare(cmd *exec.Cmd, principal Principal) error { return nil }
