package testutil

import (
	"time"

	"coursesync/internal/model"
)

// Term is the base date of the fixture trees. Snapshot dates have second
// precision and no zone, so fixtures use whole seconds in time.Local.
var Term = time.Date(2024, 9, 2, 8, 0, 0, 0, time.Local)

// Doc builds a document whose download link is derived from its name.
func Doc(name string, typ model.DocType, size int64, date time.Time) model.Document {
	return model.Document{
		Type:         typ,
		Name:         name,
		Size:         size,
		Date:         date,
		DownloadLink: "https://courses.example.edu/dl/" + name,
	}
}

// Folder builds a folder holding docs and sub-folders.
func Folder(name string, date time.Time, docs []model.Document, folders ...*model.Folder) *model.Folder {
	f := model.NewFolder(name, date)
	for _, d := range docs {
		f.Documents.AddFile(d)
	}
	for _, sub := range folders {
		f.Documents.AddFolder(sub)
	}
	return f
}

// Subject builds a subject with the given top-level files and folders.
func Subject(name, id string, docs []model.Document, folders ...*model.Folder) *model.Subject {
	s := model.NewSubject(name, id)
	for _, d := range docs {
		s.Documents.AddFile(d)
	}
	for _, f := range folders {
		s.Documents.AddFolder(f)
	}
	return s
}

// SampleSubject is a two-level subject:
//
//	syllabus.pdf
//	Lectures/week1.pdf
//	Lectures/Extra/code.zip
func SampleSubject() *model.Subject {
	return Subject("Algorithms", "CS101",
		[]model.Document{Doc("syllabus", model.DocPdf, 100, Term)},
		Folder("Lectures", Term,
			[]model.Document{Doc("week1", model.DocPdf, 1000, Term)},
			Folder("Extra", Term, []model.Document{Doc("code", model.DocZip, 24, Term)}),
		),
	)
}

// SampleCourse holds SampleSubject plus a second subject and a locked one.
func SampleCourse() *model.Course {
	locked := Subject("Thesis", "CS999", []model.Document{Doc("guide", model.DocPdf, 10, Term)})
	locked.Locked = true
	return &model.Course{
		Name: "Computer Science",
		Subjects: []*model.Subject{
			SampleSubject(),
			Subject("Databases", "CS202", []model.Document{Doc("intro", model.DocTxt, 50, Term)}),
			locked,
		},
	}
}
