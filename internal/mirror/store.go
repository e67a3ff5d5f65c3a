package mirror

import (
	"time"

	"coursesync/internal/model"
)

// SnapshotStore persists subject snapshots and the history of sync runs.
// Every load decodes a fresh tree, so two loaded snapshots never share nodes.
type SnapshotStore interface {
	// Sync runs

	// CreateSyncRun records the start of an operation.
	CreateSyncRun(runID, operation, course string, startedAt time.Time) (*model.SyncRun, error)

	// FinishSyncRun stores the final status and transfer counts of a run.
	FinishSyncRun(id int64, status string, finishedAt time.Time, downloaded, failed int64) error

	// ListSyncRuns returns the most recent runs, newest first.
	ListSyncRuns(limit int) ([]*model.SyncRun, error)

	// Snapshots

	// SaveSubjectSnapshot stores subject as the next version for its ID.
	// runID may be 0 when the snapshot is not tied to a run.
	SaveSubjectSnapshot(recordID string, runID int64, subject *model.Subject, takenAt time.Time) (*model.SnapshotRecord, error)

	// LatestSubjectSnapshot returns the newest snapshot of a subject.
	// Returns nil values and no error if none exists.
	LatestSubjectSnapshot(subjectID string) (*model.Subject, *model.SnapshotRecord, error)

	// FindSubjectSnapshot returns a specific snapshot version, or nils if missing.
	FindSubjectSnapshot(subjectID string, version int64) (*model.Subject, *model.SnapshotRecord, error)

	// ListSubjectSnapshots returns all stored versions of a subject, oldest first.
	ListSubjectSnapshots(subjectID string) ([]*model.SnapshotRecord, error)

	// Close closes the underlying connection.
	Close() error
}
