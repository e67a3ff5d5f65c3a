package mirror

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"coursesync/internal/model"
)

var (
	// ErrIdentityMismatch is returned when diffing snapshots of different subjects.
	ErrIdentityMismatch = errors.New("snapshots belong to different subjects")

	// ErrSharedSnapshot is returned when the two snapshots share tree nodes.
	// The previous snapshot must be a deep copy, not an alias of the current tree.
	ErrSharedSnapshot = errors.New("snapshots share tree nodes")
)

// Removal describes an entry present in the previous snapshot but missing
// from the current one. Removals are reported, never applied locally.
type Removal struct {
	Path  []string // folder names from the subject root to the entry's parent
	Entry model.Entry
}

func (r Removal) String() string {
	return strings.Join(append(append([]string{}, r.Path...), r.Entry.Name()), "/")
}

// RemovalFunc receives removals as they are found. It may be nil.
type RemovalFunc func(Removal)

// Differ computes the delta between two snapshots of the same subject.
type Differ struct {
	logger Logger
}

// NewDiffer creates a Differ.
func NewDiffer(logger Logger) *Differ {
	return &Differ{logger: logger}
}

// Diff returns a new collection holding only what was added or modified in
// after relative to before. Files are matched by name and reported when new
// or when their date changed. Folders are matched by name and date; a folder
// without a match is reported with its whole content. Folders appear in the
// result only when something below them changed.
//
// The result shares no folders or collections with either input, and neither
// input is modified.
func (d *Differ) Diff(before, after *model.Subject, onRemoval RemovalFunc) (*model.Collection, error) {
	if !before.SameIdentity(after) {
		return nil, fmt.Errorf("%w: %s (%s) vs %s (%s)", ErrIdentityMismatch, before.Name, before.ID, after.Name, after.ID)
	}
	return d.DiffCollections(before.Documents, after.Documents, onRemoval)
}

// DiffCollections is Diff without the subject identity check.
func (d *Differ) DiffCollections(before, after *model.Collection, onRemoval RemovalFunc) (*model.Collection, error) {
	if sharesNodes(before, after) {
		return nil, ErrSharedSnapshot
	}
	return d.diffLevel(before, after, nil, onRemoval), nil
}

type folderKey struct {
	name string
	date time.Time
}

func keyOf(f *model.Folder) folderKey {
	// Normalize so that equal instants in different zones share a key.
	return folderKey{name: f.Name, date: f.Date.UTC()}
}

func (d *Differ) diffLevel(before, after *model.Collection, path []string, onRemoval RemovalFunc) *model.Collection {
	delta := model.NewCollection()
	if before == nil {
		before = model.NewCollection()
	}
	if after == nil {
		after = model.NewCollection()
	}

	oldFiles := make(map[string]model.Document, len(before.Files))
	for _, f := range before.Files {
		if _, ok := oldFiles[f.Name]; !ok {
			oldFiles[f.Name] = f
		}
	}
	newFiles := make(map[string]struct{}, len(after.Files))
	for _, f := range after.Files {
		newFiles[f.Name] = struct{}{}
		old, ok := oldFiles[f.Name]
		switch {
		case !ok:
			d.logger.Debug("document added", "path", joinPath(path, f.Name))
			delta.AddFile(f)
		case !old.Date.Equal(f.Date):
			d.logger.Debug("document modified", "path", joinPath(path, f.Name))
			delta.AddFile(f)
		}
	}

	oldFolders := make(map[folderKey]*model.Folder, len(before.Folders))
	for _, f := range before.Folders {
		if _, ok := oldFolders[keyOf(f)]; !ok {
			oldFolders[keyOf(f)] = f
		}
	}
	newFolders := make(map[folderKey]struct{}, len(after.Folders))
	for _, f := range after.Folders {
		newFolders[keyOf(f)] = struct{}{}
		sub := append(append([]string{}, path...), f.Name)

		var nested *model.Collection
		if old, ok := oldFolders[keyOf(f)]; ok {
			nested = d.diffLevel(old.Documents, f.Documents, sub, onRemoval)
		} else {
			d.logger.Debug("folder added", "path", joinPath(path, f.Name))
			nested = d.diffLevel(nil, f.Documents, sub, onRemoval)
		}
		if !nested.IsEmpty() {
			delta.AddFolder(&model.Folder{Name: f.Name, Date: f.Date, Documents: nested})
		}
	}

	if onRemoval != nil {
		for _, f := range before.Files {
			if _, ok := newFiles[f.Name]; !ok {
				onRemoval(Removal{Path: path, Entry: model.Entry{Kind: model.EntryFile, File: f}})
			}
		}
		for _, f := range before.Folders {
			if _, ok := newFolders[keyOf(f)]; !ok {
				onRemoval(Removal{Path: path, Entry: model.Entry{Kind: model.EntryFolder, Folder: f}})
			}
		}
	}
	return delta
}

// sharesNodes reports whether a and b have any folder or collection in common.
func sharesNodes(a, b *model.Collection) bool {
	if a == nil || b == nil {
		return false
	}
	seen := make(map[any]struct{})
	var collect func(c *model.Collection)
	collect = func(c *model.Collection) {
		if c == nil {
			return
		}
		seen[c] = struct{}{}
		for _, f := range c.Folders {
			seen[f] = struct{}{}
			collect(f.Documents)
		}
	}
	collect(a)

	var found func(c *model.Collection) bool
	found = func(c *model.Collection) bool {
		if c == nil {
			return false
		}
		if _, ok := seen[c]; ok {
			return true
		}
		for _, f := range c.Folders {
			if _, ok := seen[f]; ok {
				return true
			}
			if found(f.Documents) {
				return true
			}
		}
		return false
	}
	return found(b)
}

func joinPath(path []string, name string) string {
	if len(path) == 0 {
		return name
	}
	return strings.Join(path, "/") + "/" + name
}
