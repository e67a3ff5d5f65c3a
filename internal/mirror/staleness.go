package mirror

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	localfs "coursesync/internal/fs"
	"coursesync/internal/model"
)

var nameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", " ",
	"*", " ",
	"?", " ",
	"\"", "'",
	"<", "(",
	">", ")",
	"|", "-",
)

// SanitizeName replaces characters that are not allowed in file names.
// Names made only of dots become underscores so that no segment can refer
// to the current or parent directory. No replacement introduces a replaced
// character, so applying it twice yields the same result as applying it once.
func SanitizeName(name string) string {
	name = nameReplacer.Replace(name)
	if name != "" && strings.Trim(name, ".") == "" {
		return strings.Repeat("_", len(name))
	}
	return name
}

// FullPath returns the local path for doc inside currentDir.
// If currentDir already names the file, it is returned unchanged.
// The type extension is appended only when the name has no extension of its own.
func FullPath(doc model.Document, currentDir string) string {
	fileName := SanitizeName(doc.Name)
	if ext := doc.Type.Extension(); ext != "" && !strings.Contains(fileName, ".") {
		fileName += "." + ext
	}
	if filepath.Base(currentDir) == fileName {
		return currentDir
	}
	return filepath.Join(currentDir, fileName)
}

// Oracle decides whether a local copy is out of date with respect to the
// remote publish time. It compares the local creation time against the remote
// date, so a skewed local clock can cause missed or redundant downloads.
type Oracle struct {
	fs afero.Fs
}

// NewOracle creates an Oracle reading from fs.
func NewOracle(fs afero.Fs) *Oracle {
	return &Oracle{fs: fs}
}

// NeedsUpdate reports whether the file at path is missing or was created
// strictly before published. Errors other than absence are returned.
func (o *Oracle) NeedsUpdate(path string, published time.Time) (bool, error) {
	info, err := o.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return localfs.CreationTime(info).Before(published), nil
}
