package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"coursesync/internal/mirror"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// It is useful for testing and safe for concurrent use.
type MemoryVault struct {
	name      string
	snapshots map[string]map[int64][]byte // subjectID -> version -> payload
	latest    map[string]int64
	mu        sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:      name,
		snapshots: make(map[string]map[int64][]byte),
		latest:    make(map[string]int64),
	}
}

// PutSnapshot stores a snapshot version for a subject.
func (m *MemoryVault) PutSnapshot(subjectID string, version int64, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	versions, ok := m.snapshots[subjectID]
	if !ok {
		versions = make(map[int64][]byte)
		m.snapshots[subjectID] = versions
	}
	versions[version] = data
	if version > m.latest[subjectID] {
		m.latest[subjectID] = version
	}
	return nil
}

// GetSnapshot retrieves a snapshot version.
func (m *MemoryVault) GetSnapshot(subjectID string, version int64, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.snapshots[subjectID][version]
	if !ok {
		return fmt.Errorf("snapshot not found: %s v%d", subjectID, version)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// LatestVersion returns the newest archived version, or 0.
func (m *MemoryVault) LatestVersion(subjectID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest[subjectID], nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryVault implements mirror.Vault interface
var _ mirror.Vault = (*MemoryVault)(nil)
