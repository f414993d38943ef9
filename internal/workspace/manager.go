package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lightspeed/jobforge/internal/jferr"
	"github.com/lightspeed/jobforge/internal/logging"
)

// Manager materializes per-job workspaces underneath root using whichever
// cowStrategy was selected at startup, and tears them down again once a job
// finishes. All operations are keyed by jobID.
type Manager struct {
	root     string
	strategy cowStrategy

	mu    sync.Mutex
	paths map[string]string
}

// NewManager probes root for the fastest available clone technique (unless
// cowMethod forces one) and returns a ready-to-use Manager. root is created
// if missing and must be writable.
func NewManager(root, cowMethod string) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create workspace root %q: %w", root, err)
	}
	return &Manager{
		root:     root,
		strategy: DetectStrategy(root, cowMethod),
		paths:    make(map[string]string),
	}, nil
}

// CloneRepo materializes a workspace for jobID by cloning repoPath (a
// registered repository's canonical local checkout) into a fresh directory
// under root. On any failure the partially-created directory is removed so
// CloneRepo never leaves orphaned state behind.
func (m *Manager) CloneRepo(ctx context.Context, jobID, repoPath string) (string, error) {
	dst := filepath.Join(m.root, jobID)

	if _, err := os.Stat(dst); err == nil {
		return "", jferr.New(jferr.Conflict, fmt.Sprintf("workspace already exists for job %s", jobID))
	}

	if err := m.strategy.clone(ctx, repoPath, dst); err != nil {
		os.RemoveAll(dst)
		return "", jferr.Wrap(jferr.System, "materialize workspace", err)
	}

	m.mu.Lock()
	m.paths[jobID] = dst
	m.mu.Unlock()

	logging.Info("workspace created" + logging.Fields("job_id", jobID, "strategy", m.strategy.name(), "path", dst))
	return dst, nil
}

// Path returns the workspace directory previously created for jobID, if any.
func (m *Manager) Path(jobID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.paths[jobID]
	return p, ok
}

// DestroyWorkspace removes the workspace directory for jobID. It is
// idempotent: destroying a workspace that was never created, or was already
// destroyed, is not an error.
func (m *Manager) DestroyWorkspace(ctx context.Context, jobID string) error {
	m.mu.Lock()
	path, ok := m.paths[jobID]
	delete(m.paths, jobID)
	m.mu.Unlock()

	if !ok {
		path = filepath.Join(m.root, jobID)
	}

	if err := os.RemoveAll(path); err != nil {
		return jferr.Wrap(jferr.System, "destroy workspace", err)
	}
	logging.Info("workspace destroyed" + logging.Fields("job_id", jobID, "path", path))
	return nil
}

// ListWorkspaces returns the job IDs of every workspace this Manager knows
// about (i.e. created since process start; workspaces surviving a restart
// from a prior process are reconciled by the persistence snapshotter, not
// rediscovered here).
func (m *Manager) ListWorkspaces() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.paths))
	for id := range m.paths {
		out = append(out, id)
	}
	return out
}
