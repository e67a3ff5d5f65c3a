package model

import (
	"fmt"
	"time"
)

// Document is an immutable remote file entry.
// Documents are matched by Name; (Name, Date) detects modification.
type Document struct {
	Type         DocType
	Name         string
	Size         int64 // bytes
	Date         time.Time
	DownloadLink string
}

// Equal reports whether two documents describe the same remote version.
func (d Document) Equal(o Document) bool {
	return d.Name == o.Name && d.Size == o.Size && d.Date.Equal(o.Date)
}

func (d Document) String() string {
	return fmt.Sprintf("(%s) - %s | %.2f KB | %s", d.Type, d.Name, float64(d.Size)/1024, d.Date.Format(time.DateTime))
}

// Folder is a remote directory. Date acts as a version marker: a folder with
// the same name but a different date is a different folder for matching purposes.
// A Folder exclusively owns its Documents; no folder has two parents.
type Folder struct {
	Name      string
	Date      time.Time
	Documents *Collection
}

// NewFolder creates an empty folder.
func NewFolder(name string, date time.Time) *Folder {
	return &Folder{Name: name, Date: date, Documents: NewCollection()}
}

// MetadataEquals reports whether o has the same (Name, Date) identity.
func (f *Folder) MetadataEquals(o *Folder) bool {
	return o != nil && f.Name == o.Name && f.Date.Equal(o.Date)
}

// Size returns the recursive size of the folder contents in bytes.
func (f *Folder) Size() int64 {
	return f.Documents.Size()
}

// IsEmpty reports whether the folder has no direct children.
func (f *Folder) IsEmpty() bool {
	return f.Documents.BaseCount() == 0
}

// Clone returns a deep copy of the folder.
func (f *Folder) Clone() *Folder {
	return &Folder{Name: f.Name, Date: f.Date, Documents: f.Documents.Clone()}
}

func (f *Folder) String() string { return f.Name }

// Collection holds the files and sub-folders of one level of the tree.
// Insertion order is preserved and drives traversal order.
type Collection struct {
	Folders []*Folder
	Files   []Document
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{Folders: []*Folder{}, Files: []Document{}}
}

// Size returns the sum of all file sizes, recursively.
func (c *Collection) Size() int64 {
	var size int64
	for _, f := range c.Files {
		size += f.Size
	}
	for _, f := range c.Folders {
		size += f.Size()
	}
	return size
}

// BaseCount returns the number of direct children, not descending into folders.
func (c *Collection) BaseCount() int {
	return len(c.Files) + len(c.Folders)
}

// FullCount returns the number of files in the collection, recursively.
func (c *Collection) FullCount() int {
	count := len(c.Files)
	for _, f := range c.Folders {
		count += f.Documents.FullCount()
	}
	return count
}

// IsEmpty reports whether the collection has no children at all.
func (c *Collection) IsEmpty() bool {
	return c.BaseCount() == 0
}

// ContainsFile reports whether a file equal to doc is a direct child.
func (c *Collection) ContainsFile(doc Document) bool {
	for _, f := range c.Files {
		if f.Equal(doc) {
			return true
		}
	}
	return false
}

// FindFolder returns the direct child folder with the same (Name, Date) as f.
func (c *Collection) FindFolder(f *Folder) *Folder {
	for _, candidate := range c.Folders {
		if candidate.MetadataEquals(f) {
			return candidate
		}
	}
	return nil
}

// AddFile appends a file.
func (c *Collection) AddFile(doc Document) {
	c.Files = append(c.Files, doc)
}

// AddFolder appends a folder.
func (c *Collection) AddFolder(f *Folder) {
	c.Folders = append(c.Folders, f)
}

// Entries returns the direct children as tagged entries, folders first.
func (c *Collection) Entries() []Entry {
	entries := make([]Entry, 0, c.BaseCount())
	for _, f := range c.Folders {
		entries = append(entries, Entry{Kind: EntryFolder, Folder: f})
	}
	for _, f := range c.Files {
		entries = append(entries, Entry{Kind: EntryFile, File: f})
	}
	return entries
}

// Clone returns a deep copy. Mutating the copy is never observable through c.
func (c *Collection) Clone() *Collection {
	out := &Collection{
		Folders: make([]*Folder, 0, len(c.Folders)),
		Files:   make([]Document, len(c.Files)),
	}
	copy(out.Files, c.Files)
	for _, f := range c.Folders {
		out.Folders = append(out.Folders, f.Clone())
	}
	return out
}

// EntryKind tags an Entry as a file or a folder.
type EntryKind int

const (
	EntryFile EntryKind = iota
	EntryFolder
)

func (k EntryKind) String() string {
	if k == EntryFolder {
		return "folder"
	}
	return "file"
}

// Entry is one child of a Collection: either File (Kind == EntryFile)
// or Folder (Kind == EntryFolder) is set.
type Entry struct {
	Kind   EntryKind
	File   Document
	Folder *Folder
}

// Name returns the name of whichever variant is set.
func (e Entry) Name() string {
	if e.Kind == EntryFolder {
		return e.Folder.Name
	}
	return e.File.Name
}

// Date returns the timestamp of whichever variant is set.
func (e Entry) Date() time.Time {
	if e.Kind == EntryFolder {
		return e.Folder.Date
	}
	return e.File.Date
}

// Subject is one course subject with its document tree.
// Two subjects are the same subject when Name and ID match.
type Subject struct {
	Name      string
	ID        string
	Locked    bool
	SiteLink  string
	Documents *Collection
}

// NewSubject creates a subject with an empty document tree.
func NewSubject(name, id string) *Subject {
	return &Subject{Name: name, ID: id, Documents: NewCollection()}
}

// SameIdentity reports whether o identifies the same subject.
func (s *Subject) SameIdentity(o *Subject) bool {
	return o != nil && s.Name == o.Name && s.ID == o.ID
}

// Size returns the recursive size of the subject's documents.
func (s *Subject) Size() int64 {
	return s.Documents.Size()
}

// Clone returns a deep copy of the subject and its tree.
func (s *Subject) Clone() *Subject {
	out := *s
	out.Documents = s.Documents.Clone()
	return &out
}

func (s *Subject) String() string {
	if s.Locked {
		return fmt.Sprintf("%s (%s) LOCKED", s.Name, s.ID)
	}
	return fmt.Sprintf("%s (%s)", s.Name, s.ID)
}

// Course groups subjects.
type Course struct {
	Name     string
	Subjects []*Subject
}

// GetSubject returns the subject with the given ID, or nil.
func (c *Course) GetSubject(id string) *Subject {
	for _, s := range c.Subjects {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Size returns the total size of all subjects.
func (c *Course) Size() int64 {
	var size int64
	for _, s := range c.Subjects {
		size += s.Size()
	}
	return size
}

// Clone returns a deep copy of the course.
func (c *Course) Clone() *Course {
	out := &Course{Name: c.Name, Subjects: make([]*Subject, 0, len(c.Subjects))}
	for _, s := range c.Subjects {
		out.Subjects = append(out.Subjects, s.Clone())
	}
	return out
}
