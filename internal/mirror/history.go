package mirror

import (
	"fmt"

	"coursesync/internal/model"
)

// History returns the most recent sync runs, ordered newest first.
func (s *SyncService) History(limit int) ([]*model.SyncRun, error) {
	runs, err := s.store.ListSyncRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	return runs, nil
}

// Snapshots returns the stored snapshot versions of a subject, oldest first.
func (s *SyncService) Snapshots(subjectID string) ([]*model.SnapshotRecord, error) {
	records, err := s.store.ListSubjectSnapshots(subjectID)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	return records, nil
}

// LoadSnapshot returns a stored snapshot tree. version 0 selects the latest.
func (s *SyncService) LoadSnapshot(subjectID string, version int64) (*model.Subject, *model.SnapshotRecord, error) {
	var (
		subject *model.Subject
		record  *model.SnapshotRecord
		err     error
	)
	if version == 0 {
		subject, record, err = s.store.LatestSubjectSnapshot(subjectID)
	} else {
		subject, record, err = s.store.FindSubjectSnapshot(subjectID, version)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading snapshot: %w", err)
	}
	if subject == nil {
		return nil, nil, fmt.Errorf("no snapshot for subject %s (version %d)", subjectID, version)
	}
	return subject, record, nil
}
