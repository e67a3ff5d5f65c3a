package mirror

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"coursesync/internal/model"
	"coursesync/internal/progress"
)

// errMissingLink is recorded for documents that carry no download reference.
var errMissingLink = errors.New("document has no download link")

// NameFilter excludes local paths from mirroring. Paths are relative to the mirror root.
type NameFilter interface {
	Match(relativePath string) bool
	MatchDir(relativeDir string) bool
}

// ItemError records a failure for one document or folder. A failed item
// never aborts the rest of the walk.
type ItemError struct {
	Path string
	Ref  string // download reference, empty for folders
	Err  error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// DownloadResult summarizes one subject walk.
type DownloadResult struct {
	Subject    string
	Downloaded []string // local paths written
	Bytes      int64
	Skipped    int // up to date
	Ignored    int
	Failures   []*ItemError
}

func (r *DownloadResult) fail(path, ref string, err error) {
	r.Failures = append(r.Failures, &ItemError{Path: path, Ref: ref, Err: err})
}

// walkHooks receives the selected files and folder failures of a traversal.
// Returning an error from file aborts the traversal.
type walkHooks struct {
	file       func(doc model.Document, path string) error
	dirFailed  func(path string, err error)
	dirIgnored func(folder *model.Folder)
}

// Downloader mirrors subject trees into a local directory.
// One Downloader may run several subject walks concurrently; each walk owns
// its PathStack and result.
type Downloader struct {
	fs       afero.Fs
	root     string
	fetcher  Fetcher
	oracle   *Oracle
	ignore   NameFilter
	progress *progress.Registry
	logger   Logger
}

// NewDownloader creates a Downloader writing below root.
// ignore and registry may be nil.
func NewDownloader(fs afero.Fs, root string, fetcher Fetcher, ignore NameFilter, registry *progress.Registry, logger Logger) *Downloader {
	return &Downloader{
		fs:       fs,
		root:     root,
		fetcher:  fetcher,
		oracle:   NewOracle(fs),
		ignore:   ignore,
		progress: registry,
		logger:   logger,
	}
}

// Root returns the mirror root directory.
func (d *Downloader) Root() string {
	return d.root
}

// DownloadSubject walks subject depth-first, files before sub-folders, and
// fetches every file whose local copy is missing or older than its remote date.
// If subset is non-nil only files and folders present at the same position in
// subset are considered. Per-item failures are collected in the result; the
// returned error is non-nil only when the walk itself could not proceed.
func (d *Downloader) DownloadSubject(ctx context.Context, subject *model.Subject, subset *model.Collection) (*DownloadResult, error) {
	res := &DownloadResult{Subject: subject.Name}

	scheduled := 0
	if d.progress != nil {
		pending, err := d.Pending(ctx, subject, subset)
		if err != nil {
			return nil, err
		}
		scheduled = len(pending)
		d.progress.Schedule(scheduled)
	}
	// Release whatever was not consumed, e.g. after cancellation.
	defer func() {
		for ; scheduled > 0; scheduled-- {
			d.progress.Finish()
		}
	}()
	finish := func() {
		if scheduled > 0 {
			scheduled--
			d.progress.Finish()
		}
	}

	stack := NewPathStack(d.fs, d.root, WriteMode)
	if err := stack.Push(subject.Name, subject.Documents); err != nil {
		return nil, fmt.Errorf("preparing subject directory: %w", err)
	}

	hooks := walkHooks{
		file: func(doc model.Document, path string) error {
			if d.ignored(path, false) {
				res.Ignored++
				return nil
			}
			stale, err := d.oracle.NeedsUpdate(path, doc.Date)
			if err != nil {
				res.fail(path, doc.DownloadLink, err)
				d.logger.Warn("cannot check local copy", "path", path, "error", err)
				return nil
			}
			if !stale {
				res.Skipped++
				return nil
			}

			n, err := d.fetchAndWrite(ctx, doc, path)
			finish()
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				res.fail(path, doc.DownloadLink, err)
				d.logger.Warn("download failed", "path", path, "error", err)
				return nil
			}
			res.Downloaded = append(res.Downloaded, path)
			res.Bytes += n
			d.logger.Debug("downloaded", "path", path, "bytes", n)
			return nil
		},
		dirFailed: func(path string, err error) {
			res.fail(path, "", err)
			d.logger.Warn("skipping folder", "path", path, "error", err)
		},
		dirIgnored: func(folder *model.Folder) {
			res.Ignored += folder.Documents.FullCount()
		},
	}

	err := d.traverse(ctx, stack, subject.Documents, subset, hooks)
	if _, popErr := stack.Pop(); popErr != nil && err == nil {
		err = popErr
	}
	if err != nil {
		return res, fmt.Errorf("walking %s: %w", subject.Name, err)
	}

	d.logger.Info("subject mirrored",
		"subject", subject.Name,
		"downloaded", len(res.Downloaded),
		"skipped", res.Skipped,
		"failed", len(res.Failures))
	return res, nil
}

// traverse visits the files of docs, then recurses into each folder.
// When subset is non-nil it is the collection at the same position in the
// subset tree: files must be contained in it and folders must match by metadata.
func (d *Downloader) traverse(ctx context.Context, stack *PathStack, docs, subset *model.Collection, hooks walkHooks) error {
	if docs == nil {
		return nil
	}
	for _, doc := range docs.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if subset != nil && !subset.ContainsFile(doc) {
			continue
		}
		if err := hooks.file(doc, FullPath(doc, stack.CurrentPath())); err != nil {
			return err
		}
	}

	for _, folder := range docs.Folders {
		if err := ctx.Err(); err != nil {
			return err
		}
		var nested *model.Collection
		if subset != nil {
			match := subset.FindFolder(folder)
			if match == nil {
				continue
			}
			nested = match.Documents
		}

		if d.ignored(filepath.Join(stack.CurrentPath(), SanitizeName(folder.Name)), true) {
			if hooks.dirIgnored != nil {
				hooks.dirIgnored(folder)
			}
			continue
		}
		if err := stack.Push(folder.Name, folder.Documents); err != nil {
			if hooks.dirFailed != nil {
				hooks.dirFailed(filepath.Join(stack.CurrentPath(), SanitizeName(folder.Name)), err)
			}
			continue
		}
		err := d.traverse(ctx, stack, folder.Documents, nested, hooks)
		if _, popErr := stack.Pop(); popErr != nil && err == nil {
			err = popErr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Downloader) ignored(path string, dir bool) bool {
	if d.ignore == nil {
		return false
	}
	rel, err := filepath.Rel(d.root, path)
	if err != nil {
		return false
	}
	if dir {
		return d.ignore.MatchDir(rel)
	}
	return d.ignore.Match(rel)
}

// fetchAndWrite downloads doc and replaces the file at path atomically.
func (d *Downloader) fetchAndWrite(ctx context.Context, doc model.Document, path string) (int64, error) {
	if doc.DownloadLink == "" {
		return 0, errMissingLink
	}
	data, err := d.fetcher.Fetch(ctx, doc.DownloadLink)
	if err != nil {
		return 0, fmt.Errorf("fetching %s: %w", doc.Name, err)
	}
	if err := writeFileAtomic(d.fs, path, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// writeFileAtomic writes data to a temporary file in the target directory
// and renames it into place, so readers never observe a partial file.
func writeFileAtomic(fs afero.Fs, path string, data []byte) error {
	tmp, err := afero.TempFile(fs, filepath.Dir(path), ".coursesync-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
