package mirror

import (
	"bytes"
	"errors"
	"fmt"

	"coursesync/internal/model"
	"coursesync/internal/snapshot"
)

// ErrNoVault is returned by vault operations when no vault is configured.
var ErrNoVault = errors.New("no vault configured")

// RestoreSnapshot retrieves an archived snapshot from the vault and stores it
// as the newest local snapshot, making it the baseline for the next diff.
// version 0 selects the latest archived version. dc is required when the
// service encrypts archives and ignored otherwise.
func (s *SyncService) RestoreSnapshot(subjectID string, version int64, dc DecryptionContext) (*model.SnapshotRecord, error) {
	if s.vault == nil {
		return nil, ErrNoVault
	}
	if version == 0 {
		latest, err := s.vault.LatestVersion(subjectID)
		if err != nil {
			return nil, fmt.Errorf("finding latest archived version: %w", err)
		}
		if latest == 0 {
			return nil, fmt.Errorf("no archived snapshot for subject %s", subjectID)
		}
		version = latest
	}

	var buf bytes.Buffer
	if err := s.vault.GetSnapshot(subjectID, version, &buf); err != nil {
		return nil, fmt.Errorf("retrieving snapshot: %w", err)
	}

	data := buf.Bytes()
	if s.encryptor != nil {
		if dc == nil {
			return nil, fmt.Errorf("archived snapshots are encrypted: decryption context required")
		}
		var plain bytes.Buffer
		if err := dc.Decrypt(bytes.NewReader(data), &plain); err != nil {
			return nil, fmt.Errorf("decrypting snapshot: %w", err)
		}
		data = plain.Bytes()
	}

	subject, err := snapshot.UnmarshalSubject(data, snapshot.Options{Location: snapshot.StoreLocation})
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if subject.ID != subjectID {
		return nil, fmt.Errorf("%w: archive holds %s, want %s", ErrIdentityMismatch, subject.ID, subjectID)
	}

	record, err := s.store.SaveSubjectSnapshot(s.idgen.New(), 0, subject, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("storing restored snapshot: %w", err)
	}
	s.logger.Info("snapshot restored", "subject", subjectID, "archived_version", version, "version", record.Version)
	return record, nil
}
