//go:build !darwin

package fs

import (
	"os"
	"time"
)

// CreationTime returns the time a mirrored file was written. Birth time is
// not available through the portable stat interface here, so the modification
// time is used. Mirrored files are only ever replaced by rename, never edited
// in place, so the two coincide.
func CreationTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
