// Package repos implements the repository registry: named repositories
// cloned once into a master pool, from which the workspace manager stamps
// out per-job CoW clones.
package repos

import "time"

// CloneState tracks the lifecycle of the master clone backing a Repository.
type CloneState string

const (
	CloneStateCloning     CloneState = "cloning"
	CloneStateCompleted   CloneState = "completed"
	CloneStateGitFailed   CloneState = "git_failed"
	CloneStateIndexFailed CloneState = "index_failed"
)

// Repository is the registry's stored record. Branch/HeadCommit/SizeBytes/
// Dirty/Ahead/Behind are never persisted — they are derived fresh on every
// metadata() or list() call.
type Repository struct {
	Name         string
	OriginURL    string
	Description  string
	IndexAware   bool
	CloneState   CloneState
	RegisteredAt time.Time

	Branch       string
	HeadCommit   *CommitInfo
	SizeBytes    int64
	Dirty        bool
	AheadCount   int
	BehindCount  int

	// CloneAttemptID correlates this registration's background clone with
	// its log lines; never persisted, regenerated each time Register starts
	// a new clone for the name.
	CloneAttemptID string
}

// CommitInfo is the derived HEAD summary of a repository's master clone.
type CommitInfo struct {
	Hash      string
	Subject   string
	Author    string
	Timestamp time.Time
}
