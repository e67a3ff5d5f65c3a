package mirror

import (
	"context"
	"fmt"

	"coursesync/internal/model"
)

// PendingFile is a remote document whose local copy is missing or stale.
type PendingFile struct {
	Path     string
	Document model.Document
}

// Pending walks subject without touching the filesystem and returns the files
// a DownloadSubject call with the same arguments would fetch.
func (d *Downloader) Pending(ctx context.Context, subject *model.Subject, subset *model.Collection) ([]PendingFile, error) {
	var pending []PendingFile

	stack := NewPathStack(d.fs, d.root, ReadMode)
	if err := stack.Push(subject.Name, subject.Documents); err != nil {
		return nil, err
	}

	hooks := walkHooks{
		file: func(doc model.Document, path string) error {
			if d.ignored(path, false) {
				return nil
			}
			stale, err := d.oracle.NeedsUpdate(path, doc.Date)
			if err != nil {
				// Unreadable entries are reported by the download walk.
				d.logger.Debug("cannot check local copy", "path", path, "error", err)
				return nil
			}
			if stale {
				pending = append(pending, PendingFile{Path: path, Document: doc})
			}
			return nil
		},
	}
	if err := d.traverse(ctx, stack, subject.Documents, subset, hooks); err != nil {
		return nil, fmt.Errorf("planning %s: %w", subject.Name, err)
	}
	return pending, nil
}
