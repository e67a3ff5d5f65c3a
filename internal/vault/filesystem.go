package vault

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"coursesync/internal/mirror"
)

// FileSystemVault is a filesystem-based implementation of the Vault interface.
// It stores snapshots in a directory structure:
//
//	<root>/
//	  snapshots/
//	    <subjectID>/
//	      <version>.snap
//	      LATEST        (newest version number)
type FileSystemVault struct {
	name         string
	root         string
	snapshotsDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	snapshotsDir := filepath.Join(root, "snapshots")
	if err := os.MkdirAll(snapshotsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}

	return &FileSystemVault{
		name:         name,
		root:         root,
		snapshotsDir: snapshotsDir,
	}, nil
}

// subjectDir escapes the subject ID so it is always a single path element.
func (v *FileSystemVault) subjectDir(subjectID string) string {
	return filepath.Join(v.snapshotsDir, url.PathEscape(subjectID))
}

// PutSnapshot stores a snapshot version and advances LATEST if it is newer.
func (v *FileSystemVault) PutSnapshot(subjectID string, version int64, r io.Reader, size int64) error {
	dir := v.subjectDir(subjectID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create subject directory: %w", err)
	}

	dest := filepath.Join(dir, strconv.FormatInt(version, 10)+".snap")
	if err := writeFile(dest, r, size); err != nil {
		return err
	}

	latest, err := v.LatestVersion(subjectID)
	if err != nil {
		return err
	}
	if version <= latest {
		return nil
	}
	data := strconv.FormatInt(version, 10)
	return writeFile(filepath.Join(dir, "LATEST"), strings.NewReader(data), int64(len(data)))
}

// GetSnapshot retrieves a snapshot version and writes it to w.
func (v *FileSystemVault) GetSnapshot(subjectID string, version int64, w io.Writer) error {
	src := filepath.Join(v.subjectDir(subjectID), strconv.FormatInt(version, 10)+".snap")
	f, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("snapshot not found: %s v%d", subjectID, version)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

// LatestVersion returns the newest archived version.
// Returns 0 if nothing has been archived for the subject.
func (v *FileSystemVault) LatestVersion(subjectID string) (int64, error) {
	data, err := os.ReadFile(filepath.Join(v.subjectDir(subjectID), "LATEST"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup() error {
	for _, dir := range []string{v.root, v.snapshotsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

// writeFile writes data from r to destPath using atomic write (temp file + rename).
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Temp file in the same directory so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemVault implements mirror.Vault interface
var _ mirror.Vault = (*FileSystemVault)(nil)
