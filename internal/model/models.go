package model

import (
	"database/sql"
	"time"
)

// SyncRun records one invocation of a mirroring operation.
// Runs are created in the database with status "running" and finished
// with "success" or "error".
type SyncRun struct {
	ID         int64
	RunID      string // UUID, also used as the log operation ID
	Operation  string // e.g. "Sync", "Check"
	Course     string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string
	Downloaded int64
	Failed     int64
}

// SnapshotRecord is the stored metadata of one persisted subject snapshot.
// Versions increase monotonically per subject.
type SnapshotRecord struct {
	ID          string // UUID
	SubjectID   string
	SubjectName string
	Version     int64
	SyncRunID   sql.NullInt64
	TakenAt     time.Time
	Size        int64 // total size of the subject tree in bytes
	FileCount   int64
}

// SyncRun statuses.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)
