package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lightspeed/jobforge/internal/logging"
)

// snapshotRecord is the JSON-on-disk shape for one job. It mirrors Job
// field-for-field; kept distinct so the wire/disk format doesn't silently
// change just because Job gains an in-memory-only field.
type snapshotRecord struct {
	ID            string     `json:"id"`
	Principal     string     `json:"principal"`
	Repository    string     `json:"repository"`
	Prompt        string     `json:"prompt"`
	Options       Options    `json:"options"`
	CreatedAt     time.Time  `json:"createdAt"`
	State         State      `json:"state"`
	QueuePosition int        `json:"queuePosition"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	ExitCode      *int       `json:"exitCode,omitempty"`
	Output        string     `json:"output"`
	Error         *ErrorInfo `json:"error,omitempty"`
	Diagnostics   []string   `json:"diagnostics,omitempty"`
	Title         string     `json:"title"`
	WorkspacePath string     `json:"workspacePath"`
	StagingPath   string     `json:"stagingPath"`
	Attachments   []string   `json:"attachments,omitempty"`
}

func toRecord(j *Job) snapshotRecord {
	return snapshotRecord{
		ID: j.ID, Principal: j.Principal, Repository: j.Repository, Prompt: j.Prompt,
		Options: j.Options, CreatedAt: j.CreatedAt, State: j.State, QueuePosition: j.QueuePosition,
		StartedAt: j.StartedAt, CompletedAt: j.CompletedAt, ExitCode: j.ExitCode, Output: j.Output,
		Error: j.Error, Diagnostics: j.Diagnostics, Title: j.Title,
		WorkspacePath: j.WorkspacePath, StagingPath: j.StagingPath,
		Attachments: j.Attachments,
	}
}

func fromRecord(r snapshotRecord) *Job {
	return &Job{
		ID: r.ID, Principal: r.Principal, Repository: r.Repository, Prompt: r.Prompt,
		Options: r.Options, CreatedAt: r.CreatedAt, State: r.State, QueuePosition: r.QueuePosition,
		StartedAt: r.StartedAt, CompletedAt: r.CompletedAt, ExitCode: r.ExitCode, Output: r.Output,
		Error: r.Error, Diagnostics: r.Diagnostics, Title: r.Title,
		WorkspacePath: r.WorkspacePath, StagingPath: r.StagingPath,
		Attachments: r.Attachments,
	}
}

// Snapshotter flushes a Store to a JSON file on disk, from RunFloorTicker and
// from explicit Flush calls, and reconciles it back on boot. State
// transitions do not trigger a flush of their own.
type Snapshotter struct {
	store *Store
	path  string
	floor time.Duration
}

func NewSnapshotter(store *Store, path string, floor time.Duration) *Snapshotter {
	return &Snapshotter{store: store, path: path, floor: floor}
}

// Flush writes the current contents of the store to path, atomically (write
// to a temp file in the same directory, then rename).
func (s *Snapshotter) Flush() error {
	jobsList := s.store.All()
	records := make([]snapshotRecord, 0, len(jobsList))
	for _, j := range jobsList {
		records = append(records, toRecord(j))
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}

// RunFloorTicker flushes every s.floor while ctx is live and at least one job
// is non-terminal, so a long-running job's output is never more than one tick
// stale on disk. Ticks that find every job terminal write nothing.
func (s *Snapshotter) RunFloorTicker(ctx context.Context) {
	ticker := time.NewTicker(s.floor)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if hasNonTerminal(s.store.All()) {
				if err := s.Flush(); err != nil {
					logging.Error("floor snapshot flush failed: %v", err)
				}
			}
		}
	}
}

func hasNonTerminal(jobsList []*Job) bool {
	for _, j := range jobsList {
		if !j.State.Terminal() {
			return true
		}
	}
	return false
}

// Reconcile loads the last snapshot (if any) into the store, applying the
// boot-time state transitions spec.md §4.10 requires: running/intermediate
// states become failed with error kind System and a server-restart message;
// queued jobs are restored as queued for the
// scheduler to re-rank; created jobs are preserved unchanged.
func (s *Snapshotter) Reconcile() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot file: %w", err)
	}

	var records []snapshotRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("unmarshal snapshot file: %w", err)
	}

	for _, r := range records {
		job := fromRecord(r)
		switch job.State {
		case StateCreated, StateQueued:
			// preserved / re-enqueued by the caller once restored
		case StateCompleted, StateFailed, StateTimeout, StateCancelled:
			// already terminal, nothing to reconcile
		default:
			job.State = StateFailed
			job.Error = &ErrorInfo{Kind: "System", Message: "server restarted while this job was in progress; its real outcome is unknown"}
			now := time.Now()
			job.CompletedAt = &now
		}
		s.store.Restore(job)
		logging.Info("reconciled job %s into state %s on boot", job.ID, job.State)
	}
	return nil
}
