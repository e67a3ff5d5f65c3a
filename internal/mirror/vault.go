package mirror

import "io"

// Vault archives encoded subject snapshots outside the local store.
// All operations use io.Reader/io.Writer for streaming.
type Vault interface {
	// PutSnapshot stores a snapshot version for a subject and marks it as the latest.
	// size is the number of bytes that will be read from r.
	PutSnapshot(subjectID string, version int64, r io.Reader, size int64) error

	// GetSnapshot retrieves a snapshot version and writes it to w.
	GetSnapshot(subjectID string, version int64, w io.Writer) error

	// LatestVersion returns the newest archived version for a subject.
	// Returns 0 if nothing has been archived.
	LatestVersion(subjectID string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
