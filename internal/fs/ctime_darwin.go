//go:build darwin

package fs

import (
	"os"
	"syscall"
	"time"
)

// CreationTime returns the birth time of a file when the platform records it,
// falling back to the modification time.
func CreationTime(info os.FileInfo) time.Time {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(stat.Birthtimespec.Sec, stat.Birthtimespec.Nsec)
}
