package repos

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lightspeed/jobforge/internal/jferr"
	"github.com/lightspeed/jobforge/internal/logging"
)

// buildMasterIndex builds a persistent semantic index inside an already-cloned
// master repository at path. Wired at startup to internal/index's daemon
// client; defaults to a no-op so a Registry built without index support
// (e.g. in tests) never blocks on it.
var buildMasterIndex = func(ctx context.Context, path string) error { return nil }

// SetIndexBuilder overrides the function used to build the master index for
// an index-aware registration. Call once during server wiring.
func SetIndexBuilder(fn func(ctx context.Context, path string) error) {
	buildMasterIndex = fn
}

// ReferenceChecker reports whether any non-terminal job still references a
// repository by name. The registry asks it before honoring unregister, per
// the reject-on-live-reference policy.
type ReferenceChecker interface {
	HasActiveJobsForRepository(name string) bool
}

// Registry is the C3 repository registry: one master clone per registered
// name under root, persisted (minus derived fields) in a Store.
type Registry struct {
	root  string
	store *Store
	refs  ReferenceChecker

	mu        sync.Mutex
	nameLocks map[string]*sync.Mutex
	attempts  map[string]string
}

// NewRegistry wires a Registry over an already-open Store. refs may be nil
// during bootstrap (before the job store exists); in that case unregister
// always succeeds.
func NewRegistry(root string, store *Store, refs ReferenceChecker) *Registry {
	return &Registry{
		root:      root,
		store:     store,
		refs:      refs,
		nameLocks: make(map[string]*sync.Mutex),
		attempts:  make(map[string]string),
	}
}

func (r *Registry) lockFor(nameLower string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.nameLocks[nameLower]
	if !ok {
		l = &sync.Mutex{}
		r.nameLocks[nameLower] = l
	}
	return l
}

func (r *Registry) repoPath(name string) string {
	return filepath.Join(r.root, "repos", name)
}

// Register idempotently claims name, starts a background clone, and returns
// the initial (cloning) record immediately. A name whose prior registration
// ended in git_failed may be re-registered only after an explicit Unregister.
func (r *Registry) Register(ctx context.Context, name, originURL, description string, indexAware bool) (*Repository, error) {
	nameLower := strings.ToLower(name)
	lock := r.lockFor(nameLower)
	lock.Lock()
	defer lock.Unlock()

	if existing, err := r.store.Get(ctx, name); err == nil {
		return nil, jferr.New(jferr.Conflict, fmt.Sprintf("repository %q is already registered (state %s)", existing.Name, existing.CloneState))
	} else if jferr.KindOf(err) != jferr.NotFound {
		return nil, err
	}

	rec := &Repository{
		Name:         name,
		OriginURL:    originURL,
		Description:  description,
		IndexAware:   indexAware,
		CloneState:   CloneStateCloning,
		RegisteredAt: time.Now(),
	}
	if err := r.store.Insert(ctx, rec); err != nil {
		return nil, err
	}

	attemptID := ulid.Make().String()
	r.mu.Lock()
	r.attempts[nameLower] = attemptID
	r.mu.Unlock()
	rec.CloneAttemptID = attemptID

	go r.runClone(name, originURL, indexAware, attemptID)

	return rec, nil
}

func (r *Registry) runClone(name, originURL string, indexAware bool, attemptID string) {
	ctx := context.Background()
	target := r.repoPath(name)

	if err := cloneInto(ctx, originURL, target); err != nil {
		logging.Error("repository clone failed for %q (attempt %s): %v", name, attemptID, err)
		_ = r.store.UpdateCloneState(ctx, name, CloneStateGitFailed)
		return
	}

	if !indexAware {
		_ = r.store.UpdateCloneState(ctx, name, CloneStateCompleted)
		return
	}

	if err := buildMasterIndex(ctx, target); err != nil {
		logging.Error("index build failed for %q (attempt %s): %v", name, attemptID, err)
		_ = r.store.UpdateCloneState(ctx, name, CloneStateIndexFailed)
		return
	}
	_ = r.store.UpdateCloneState(ctx, name, CloneStateCompleted)
}

// Unregister removes the on-disk clone and evicts the registry record. It
// refuses when any non-terminal job still references name.
func (r *Registry) Unregister(ctx context.Context, name string) error {
	nameLower := strings.ToLower(name)
	lock := r.lockFor(nameLower)
	lock.Lock()
	defer lock.Unlock()

	if _, err := r.store.Get(ctx, name); err != nil {
		return err
	}

	if r.refs != nil && r.refs.HasActiveJobsForRepository(name) {
		return jferr.New(jferr.Conflict, fmt.Sprintf("repository %q has active jobs referencing it", name))
	}

	if err := os.RemoveAll(r.repoPath(name)); err != nil {
		return jferr.Wrap(jferr.System, "remove repository clone", err)
	}
	if err := r.store.Delete(ctx, name); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.nameLocks, nameLower)
	delete(r.attempts, nameLower)
	r.mu.Unlock()

	return nil
}

// Metadata returns name's stored record enriched with freshly-derived
// fields. Derived fields are best-effort: a repository still mid-clone has
// no valid git metadata yet and is returned with zero-value derived fields.
func (r *Registry) Metadata(ctx context.Context, name string) (*Repository, error) {
	rec, err := r.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if rec.CloneState == CloneStateCompleted || rec.CloneState == CloneStateIndexFailed {
		derivedMetadata(ctx, r.repoPath(rec.Name), rec)
	}
	rec.CloneAttemptID = r.attemptFor(rec.Name)
	return rec, nil
}

func (r *Registry) attemptFor(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts[strings.ToLower(name)]
}

// List snapshots every registered repository, each enriched the same way
// Metadata enriches a single record.
func (r *Registry) List(ctx context.Context) ([]*Repository, error) {
	recs, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if rec.CloneState == CloneStateCompleted || rec.CloneState == CloneStateIndexFailed {
			derivedMetadata(ctx, r.repoPath(rec.Name), rec)
		}
		rec.CloneAttemptID = r.attemptFor(rec.Name)
	}
	return recs, nil
}

// MasterPath returns the on-disk directory a completed registration clones
// from, for use by the workspace manager's CloneRepo.
func (r *Registry) MasterPath(name string) string {
	return r.repoPath(name)
}
