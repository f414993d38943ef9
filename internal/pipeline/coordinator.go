// Package pipeline implements C6: the per-job worker that drives the
// staging -> git_pulling -> index_building -> running -> teardown sequence,
// writing every transition through the job store.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/lightspeed/jobforge/internal/executor"
	"github.com/lightspeed/jobforge/internal/index"
	"github.com/lightspeed/jobforge/internal/jferr"
	"github.com/lightspeed/jobforge/internal/jobs"
	"github.com/lightspeed/jobforge/internal/logging"
	"github.com/lightspeed/jobforge/internal/repos"
	"github.com/lightspeed/jobforge/internal/staging"
	"github.com/lightspeed/jobforge/internal/workspace"
)

// RepoProvider is the slice of internal/repos.Registry the coordinator
// needs: the master clone path and the registration's index-aware flag.
type RepoProvider interface {
	MasterPath(name string) string
	Metadata(ctx context.Context, name string) (*repos.Repository, error)
}

// Releaser is the scheduler's side of "this job is done, free a slot."
type Releaser interface {
	Release()
}

// Coordinator runs one job's pipeline to completion on a dedicated
// goroutine per job, satisfying queue.Admitter and queue.Canceller by
// structural typing (Admit / Cancel).
type Coordinator struct {
	store      *jobs.Store
	workspaces *workspace.Manager
	repoProv   RepoProvider
	staging    *staging.Store
	runner     *executor.Runner
	scheduler  Releaser

	indexBinary string

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewCoordinator(store *jobs.Store, workspaces *workspace.Manager, repoProv RepoProvider, stagingStore *staging.Store, runner *executor.Runner, scheduler Releaser, indexBinary string) *Coordinator {
	return &Coordinator{
		store:       store,
		workspaces:  workspaces,
		repoProv:    repoProv,
		staging:     stagingStore,
		runner:      runner,
		scheduler:   scheduler,
		indexBinary: indexBinary,
		cancels:     make(map[string]context.CancelFunc),
	}
}

// Admit runs jobID's pipeline. Called by the scheduler exactly once the
// job has been admitted (state already set to staging).
func (c *Coordinator) Admit(ctx context.Context, jobID string) {
	runCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.cancels[jobID] = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.cancels, jobID)
		c.mu.Unlock()
		cancel()
		c.scheduler.Release()
	}()

	c.run(runCtx, jobID)
}

// Cancel requests termination of jobID's in-flight pipeline, if any.
func (c *Coordinator) Cancel(jobID string) error {
	c.mu.Lock()
	cancel, ok := c.cancels[jobID]
	c.mu.Unlock()
	if !ok {
		return jferr.New(jferr.NotFound, fmt.Sprintf("job %q has no in-flight pipeline", jobID))
	}
	cancel()
	return nil
}

func (c *Coordinator) run(ctx context.Context, jobID string) {
	job, err := c.store.GetInternal(jobID)
	if err != nil {
		logging.Error("pipeline: cannot load job %s: %v", jobID, err)
		return
	}

	var diagnostics []string
	defer func() {
		c.teardown(jobID, diagnostics)
	}()

	principal, err := executor.ResolvePrincipal(job.Principal)
	if err != nil {
		c.fail(jobID, jferr.System, err)
		return
	}

	workspacePath, err := c.materializeWorkspace(ctx, job)
	if err != nil {
		c.fail(jobID, jferr.System, err)
		return
	}

	repo, err := c.repoProv.Metadata(ctx, job.Repository)
	if err != nil {
		c.fail(jobID, jferr.System, err)
		return
	}

	buildIndex := job.Options.BuildIndex && repo.IndexAware && c.indexBinary != ""

	if job.Options.PreUpdate {
		if err := c.stageGitPull(ctx, jobID, workspacePath, principal); err != nil {
			c.fail(jobID, jferr.StageGit, err)
			return
		}
	}

	var daemon *index.Daemon
	systemPromptPrefix := ""
	if buildIndex {
		daemon = index.NewDaemon(c.indexBinary, workspacePath)
		if err := c.stageIndexBuild(ctx, jobID, daemon); err != nil {
			c.fail(jobID, jferr.StageIndex, err)
			if stopErr := daemon.Stop(); stopErr != nil {
				diagnostics = append(diagnostics, fmt.Sprintf("index daemon stop: %v", stopErr))
			}
			return
		}
		if daemon.Healthy(ctx) {
			systemPromptPrefix = "Prefer the semantic-query command to locate relevant code before reading files directly."
		} else {
			systemPromptPrefix = "The semantic index is unavailable; use ordinary text search to locate relevant code."
		}
	}

	if ctx.Err() != nil {
		c.cancelled(jobID)
		if daemon != nil {
			daemon.Stop()
		}
		return
	}

	result, err := c.stageRunning(ctx, jobID, workspacePath, principal, job, systemPromptPrefix)
	if daemon != nil {
		if stopErr := daemon.Stop(); stopErr != nil {
			diagnostics = append(diagnostics, fmt.Sprintf("index daemon stop: %v", stopErr))
		}
	}

	if ctx.Err() != nil {
		c.cancelled(jobID)
		return
	}
	if err != nil {
		c.fail(jobID, jferr.StageExec, err)
		return
	}

	c.finishRun(jobID, result)
}

func (c *Coordinator) materializeWorkspace(ctx context.Context, job *jobs.Job) (string, error) {
	masterPath := c.repoProv.MasterPath(job.Repository)
	path, err := c.workspaces.CloneRepo(ctx, job.ID, masterPath)
	if err != nil {
		return "", err
	}

	if err := c.staging.MaterializeInto(job.ID, path); err != nil {
		return "", err
	}

	if _, mErr := c.store.Mutate(job.ID, func(j *jobs.Job) {
		j.WorkspacePath = path
		j.State = jobs.StateStaging
	}); mErr != nil {
		return "", mErr
	}

	return path, nil
}

// gitPullTimeout bounds the pre-update pull, one of the "shorter operational
// limits" spec.md reserves for the staging/git/index stages, distinct from
// the job's own timeoutSeconds budget which governs the running stage only.
const gitPullTimeout = 30 * time.Second

// stageGitPull runs `git pull --ff-only` inside the job's own already-cloned
// workspace, as the job's principal, so the repository update a preUpdate
// job observes is the one the executor actually runs against.
func (c *Coordinator) stageGitPull(ctx context.Context, jobID, workspacePath string, principal executor.Principal) error {
	if _, err := c.store.Mutate(jobID, func(j *jobs.Job) { j.State = jobs.StateGitPulling }); err != nil {
		return err
	}

	result, err := c.runner.RunCommand(ctx, principal, workspacePath, "git", []string{"pull", "--ff-only"}, gitPullTimeout)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return jferr.New(jferr.StageGit, fmt.Sprintf("git pull exited with status %d: %s", result.ExitCode, firstLine(result.Stderr)))
	}
	return nil
}

func (c *Coordinator) stageIndexBuild(ctx context.Context, jobID string, daemon *index.Daemon) error {
	if _, err := c.store.Mutate(jobID, func(j *jobs.Job) { j.State = jobs.StateIndexBuilding }); err != nil {
		return err
	}
	if err := daemon.Start(ctx); err != nil {
		return err
	}
	return daemon.Reconcile(ctx)
}

func (c *Coordinator) stageRunning(ctx context.Context, jobID, workspacePath string, principal executor.Principal, job *jobs.Job, systemPromptPrefix string) (*executor.Result, error) {
	if _, err := c.store.Mutate(jobID, func(j *jobs.Job) {
		j.State = jobs.StateRunning
		now := time.Now()
		j.StartedAt = &now
	}); err != nil {
		return nil, err
	}

	timeout := time.Duration(job.Options.TimeoutSeconds) * time.Second

	attachments := make([]executor.Attachment, 0, len(job.Attachments))
	for _, stored := range job.Attachments {
		attachments = append(attachments, executor.Attachment{Path: filepath.Join(workspacePath, stored)})
	}

	return c.runner.Run(ctx, principal, executor.RunOptions{
		Binary:             c.executorBinary(),
		Workspace:          workspacePath,
		Prompt:             job.Prompt,
		Attachments:        attachments,
		SystemPromptPrefix: systemPromptPrefix,
		Timeout:            timeout,
	})
}

// executorBinaryOverride is set (by server wiring and by tests) via
// SetExecutorBinary.
var executorBinaryOverride string

// SetExecutorBinary configures the path to the AI assistant binary every
// Coordinator instance invokes. Call once during server wiring.
func SetExecutorBinary(path string) { executorBinaryOverride = path }

func (c *Coordinator) executorBinary() string { return executorBinaryOverride }

func (c *Coordinator) finishRun(jobID string, result *executor.Result) {
	if result.TimedOut {
		c.store.Mutate(jobID, func(j *jobs.Job) {
			j.State = jobs.StateTimeout
			code := result.ExitCode
			j.ExitCode = &code
			j.Output = result.Stdout
			j.Error = &jobs.ErrorInfo{Kind: string(jferr.Timeout), Message: "executor exceeded its time limit"}
		})
		return
	}

	if result.ExitCode != 0 {
		c.store.Mutate(jobID, func(j *jobs.Job) {
			j.State = jobs.StateFailed
			code := result.ExitCode
			j.ExitCode = &code
			j.Output = result.Stdout
			j.Error = &jobs.ErrorInfo{Kind: string(jferr.StageExec), Message: fmt.Sprintf("executor exited with status %d: %s", result.ExitCode, firstLine(result.Stderr))}
		})
		return
	}

	c.store.Mutate(jobID, func(j *jobs.Job) {
		j.State = jobs.StateCompleted
		code := 0
		j.ExitCode = &code
		j.Output = result.Stdout
	})
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	if len(s) > 200 {
		return s[:200]
	}
	return s
}

func (c *Coordinator) fail(jobID string, kind jferr.Kind, err error) {
	logging.Error("pipeline: job %s failed in stage %s: %v", jobID, kind, err)
	c.store.Mutate(jobID, func(j *jobs.Job) {
		if j.State.Terminal() {
			return
		}
		j.State = jobs.StateFailed
		j.Error = &jobs.ErrorInfo{Kind: string(kind), Message: err.Error()}
	})
}

func (c *Coordinator) cancelled(jobID string) {
	c.store.Mutate(jobID, func(j *jobs.Job) {
		if j.State.Terminal() {
			return
		}
		j.State = jobs.StateCancelled
	})
}

func (c *Coordinator) teardown(jobID string, diagnostics []string) {
	now := time.Now()
	snapshot, err := c.store.Mutate(jobID, func(j *jobs.Job) {
		if j.CompletedAt == nil {
			j.CompletedAt = &now
		}
		j.Diagnostics = append(j.Diagnostics, diagnostics...)
	})
	if err != nil {
		logging.Error("pipeline: teardown mutate failed for %s: %v", jobID, err)
		return
	}
	logging.Info("job teardown complete" + logging.Fields("job_id", jobID, "state", string(snapshot.State)))
}

// WorkspaceRoot exposes the configured root for components (e.g. the HTTP
// layer) that need to compute a job's CoW workspace path independently.
func WorkspaceRoot(root, jobID string) string {
	return filepath.Join(root, "jobs", jobID)
}
