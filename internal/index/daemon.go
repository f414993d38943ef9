// Package index wraps the semantic-index binary as a per-workspace daemon:
// start it, ask it to reconcile its index against the workspace contents,
// probe its health, and stop it again during pipeline teardown.
package index

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/lightspeed/jobforge/internal/jferr"
)

// Daemon supervises one index-binary subprocess bound to a single
// workspace for the lifetime of a job's index_building/running stages.
type Daemon struct {
	binary    string
	workspace string

	mu  sync.Mutex
	cmd *exec.Cmd
}

func NewDaemon(binary, workspace string) *Daemon {
	return &Daemon{binary: binary, workspace: workspace}
}

// Start launches the index binary in daemon mode against the workspace. A
// missing binary is reported as an error the pipeline coordinator turns
// into failed[index]. Forcing buildIndex off when no index binary is
// configured is the caller's job: the pipeline coordinator does it when it
// runs a job, so Start is never reached in that case.
func (d *Daemon) Start(ctx context.Context) error {
	if d.binary == "" {
		return jferr.New(jferr.StageIndex, "index binary is not configured")
	}

	cmd := exec.Command(d.binary, "serve", "--workspace", d.workspace)
	cmd.SysProcAttr = daemonSysProcAttr()

	if err := cmd.Start(); err != nil {
		return jferr.Wrap(jferr.StageIndex, "start index daemon", err)
	}

	d.mu.Lock()
	d.cmd = cmd
	d.mu.Unlock()

	return d.waitForReady(ctx)
}

func (d *Daemon) waitForReady(ctx context.Context) error {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if d.Healthy(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return jferr.Wrap(jferr.StageIndex, "index daemon did not become ready", ctx.Err())
		case <-time.After(100 * time.Millisecond):
		}
	}
	return jferr.New(jferr.StageIndex, "index daemon did not become ready in time")
}

// Reconcile asks the running daemon to bring its index up to date with the
// current workspace contents.
func (d *Daemon) Reconcile(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, d.binary, "reconcile", "--workspace", d.workspace).CombinedOutput()
	if err != nil {
		return jferr.Wrap(jferr.StageIndex, fmt.Sprintf("index reconcile: %s", strings.TrimSpace(string(out))), err)
	}
	return nil
}

// Healthy probes the daemon; used both at startup (waitForReady) and by the
// running stage to decide which system-prompt prefix to inject.
func (d *Daemon) Healthy(ctx context.Context) bool {
	if d.binary == "" {
		return false
	}
	err := exec.CommandContext(ctx, d.binary, "health", "--workspace", d.workspace).Run()
	return err == nil
}

// Stop terminates the daemon process, tolerating it having already exited.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	cmd := d.cmd
	d.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	_ = exec.Command(d.binary, "stop", "--workspace", d.workspace).Run()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		cmd.Process.Kill()
		<-done
		return nil
	}
}
