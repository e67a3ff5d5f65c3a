// Package snapshot encodes subject and course trees as JSON.
//
// Field names are PascalCase and dates use the "dd-MM-yyyy HH:mm:ss" layout
// without a zone. MarshalSubject and MarshalCourse write local time and the
// decoders read local time unless Options.Location says otherwise. Aggregate
// sizes are written for readability and ignored on decode; they are always
// recomputed from the files.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"coursesync/internal/model"
)

// DateLayout is the layout of every date in a snapshot.
//
// The layout carries no zone. In a zone with daylight saving the repeated
// hour after the clocks go back maps two instants to the same text, so a
// local-time snapshot can reload one hour off. Snapshots that are stored and
// later diffed use StoreLocation, which has no repeated hour.
const DateLayout = "02-01-2006 15:04:05"

// StoreLocation is the zone of snapshots kept in the snapshot store and the
// vault. Dates written with MarshalSubjectIn(s, StoreLocation) and read with
// Options{Location: StoreLocation} come back as the same instant.
var StoreLocation = time.UTC

// ErrMalformed is wrapped by every decode error caused by invalid content.
var ErrMalformed = errors.New("malformed snapshot")

// Options controls decoding.
type Options struct {
	// Lenient skips malformed documents and folders instead of failing.
	Lenient bool

	// OnSkip is called for every item skipped in lenient mode.
	OnSkip func(path string, err error)

	// Location interprets the zone-less dates. Defaults to time.Local.
	Location *time.Location
}

type documentJSON struct {
	Type         int    `json:"Type"`
	Name         string `json:"Name"`
	Size         int64  `json:"Size"`
	Date         string `json:"Date"`
	DownloadLink string `json:"DownloadLink"`
}

type folderJSON struct {
	Name      string          `json:"Name"`
	Size      int64           `json:"Size"`
	Date      string          `json:"Date"`
	Documents *collectionJSON `json:"Documents"`
}

type collectionJSON struct {
	Size    int64          `json:"Size"`
	Folders []folderJSON   `json:"Folders"`
	Files   []documentJSON `json:"Files"`
}

type subjectJSON struct {
	Name      string          `json:"Name"`
	ID        string          `json:"ID"`
	Locked    bool            `json:"Locked"`
	Size      int64           `json:"Size"`
	SiteLink  string          `json:"SiteLink"`
	Documents *collectionJSON `json:"Documents"`
}

type courseJSON struct {
	Name     string        `json:"Name"`
	Size     int64         `json:"Size"`
	Subjects []subjectJSON `json:"Subjects"`
}

// MarshalSubject encodes a subject tree with dates in local time.
func MarshalSubject(s *model.Subject) ([]byte, error) {
	return MarshalSubjectIn(s, time.Local)
}

// MarshalSubjectIn encodes a subject tree with dates written in loc.
func MarshalSubjectIn(s *model.Subject, loc *time.Location) ([]byte, error) {
	return json.MarshalIndent(encodeSubject(s, loc), "", "  ")
}

// MarshalCourse encodes a course and all of its subjects.
func MarshalCourse(c *model.Course) ([]byte, error) {
	out := courseJSON{Name: c.Name, Size: c.Size(), Subjects: make([]subjectJSON, 0, len(c.Subjects))}
	for _, s := range c.Subjects {
		out.Subjects = append(out.Subjects, encodeSubject(s, time.Local))
	}
	return json.MarshalIndent(out, "", "  ")
}

// UnmarshalSubject decodes a subject tree. Every call returns a freshly
// allocated tree.
func UnmarshalSubject(data []byte, opts Options) (*model.Subject, error) {
	var in subjectJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	d := newDecoder(opts)
	return d.subject(in)
}

// UnmarshalCourse decodes a course. In lenient mode a subject without an ID
// is skipped; in strict mode it is an error.
func UnmarshalCourse(data []byte, opts Options) (*model.Course, error) {
	var in courseJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	d := newDecoder(opts)
	course := &model.Course{Name: in.Name, Subjects: make([]*model.Subject, 0, len(in.Subjects))}
	for _, s := range in.Subjects {
		subject, err := d.subject(s)
		if err != nil {
			if d.skip(s.Name, err) {
				continue
			}
			return nil, err
		}
		course.Subjects = append(course.Subjects, subject)
	}
	return course, nil
}

func encodeSubject(s *model.Subject, loc *time.Location) subjectJSON {
	return subjectJSON{
		Name:      s.Name,
		ID:        s.ID,
		Locked:    s.Locked,
		Size:      s.Size(),
		SiteLink:  s.SiteLink,
		Documents: encodeCollection(s.Documents, loc),
	}
}

func encodeCollection(c *model.Collection, loc *time.Location) *collectionJSON {
	if c == nil {
		c = model.NewCollection()
	}
	out := &collectionJSON{
		Size:    c.Size(),
		Folders: make([]folderJSON, 0, len(c.Folders)),
		Files:   make([]documentJSON, 0, len(c.Files)),
	}
	for _, f := range c.Folders {
		out.Folders = append(out.Folders, folderJSON{
			Name:      f.Name,
			Size:      f.Size(),
			Date:      f.Date.In(loc).Format(DateLayout),
			Documents: encodeCollection(f.Documents, loc),
		})
	}
	for _, doc := range c.Files {
		out.Files = append(out.Files, documentJSON{
			Type:         int(doc.Type),
			Name:         doc.Name,
			Size:         doc.Size,
			Date:         doc.Date.In(loc).Format(DateLayout),
			DownloadLink: doc.DownloadLink,
		})
	}
	return out
}

type decoder struct {
	opts Options
	loc  *time.Location
}

func newDecoder(opts Options) *decoder {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &decoder{opts: opts, loc: loc}
}

// skip reports whether a malformed item may be dropped, notifying OnSkip.
func (d *decoder) skip(path string, err error) bool {
	if !d.opts.Lenient {
		return false
	}
	if d.opts.OnSkip != nil {
		d.opts.OnSkip(path, err)
	}
	return true
}

func (d *decoder) subject(in subjectJSON) (*model.Subject, error) {
	if in.ID == "" {
		return nil, fmt.Errorf("%w: subject %q has no ID", ErrMalformed, in.Name)
	}
	docs, err := d.collection(in.Documents, in.Name)
	if err != nil {
		return nil, err
	}
	return &model.Subject{
		Name:      in.Name,
		ID:        in.ID,
		Locked:    in.Locked,
		SiteLink:  in.SiteLink,
		Documents: docs,
	}, nil
}

func (d *decoder) collection(in *collectionJSON, path string) (*model.Collection, error) {
	out := model.NewCollection()
	if in == nil {
		return out, nil
	}

	for _, f := range in.Folders {
		folderPath := path + "/" + f.Name
		date, err := d.date(f.Date)
		if err == nil && strings.TrimSpace(f.Name) == "" {
			err = fmt.Errorf("%w: folder without a name", ErrMalformed)
		}
		if err != nil {
			if d.skip(folderPath, err) {
				continue
			}
			return nil, fmt.Errorf("folder %s: %w", folderPath, err)
		}
		docs, err := d.collection(f.Documents, folderPath)
		if err != nil {
			return nil, err
		}
		out.AddFolder(&model.Folder{Name: f.Name, Date: date, Documents: docs})
	}

	for _, doc := range in.Files {
		docPath := path + "/" + doc.Name
		date, err := d.date(doc.Date)
		if err == nil && strings.TrimSpace(doc.Name) == "" {
			err = fmt.Errorf("%w: document without a name", ErrMalformed)
		}
		if err != nil {
			if d.skip(docPath, err) {
				continue
			}
			return nil, fmt.Errorf("document %s: %w", docPath, err)
		}
		out.AddFile(model.Document{
			Type:         docType(doc.Type),
			Name:         doc.Name,
			Size:         doc.Size,
			Date:         date,
			DownloadLink: doc.DownloadLink,
		})
	}
	return out, nil
}

func (d *decoder) date(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, d.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %v", ErrMalformed, s, err)
	}
	return t, nil
}

func docType(v int) model.DocType {
	if v < int(model.DocDir) || v > int(model.DocUnknown) {
		return model.DocUnknown
	}
	return model.DocType(v)
}
