package snapshot

import (
	"errors"
	"strings"
	"testing"
	"time"

	"coursesync/internal/model"
)

var t0 = time.Date(2024, 2, 14, 8, 30, 0, 0, time.Local)

func sampleSubject() *model.Subject {
	s := model.NewSubject("Linear Algebra", "MAT201")
	s.SiteLink = "https://uni.example/mat201"
	s.Documents.AddFile(model.Document{Type: model.DocPdf, Name: "syllabus", Size: 2048, Date: t0, DownloadLink: "https://uni.example/f/1"})
	week := model.NewFolder("Week 1", t0)
	week.Documents.AddFile(model.Document{Type: model.DocZip, Name: "exercises", Size: 10, Date: t0.Add(time.Hour), DownloadLink: "https://uni.example/f/2"})
	s.Documents.AddFolder(week)
	return s
}

func TestMarshalSubject_Format(t *testing.T) {
	data, err := MarshalSubject(sampleSubject())
	if err != nil {
		t.Fatalf("MarshalSubject() error = %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`"Name": "Linear Algebra"`,
		`"ID": "MAT201"`,
		`"Date": "14-02-2024 08:30:00"`,
		`"DownloadLink": "https://uni.example/f/1"`,
		`"Type": 1`,
		`"Size": 2058`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("encoded snapshot missing %s\n%s", want, out)
		}
	}
}

func TestMarshalSubjectIn_StoreLocationKeepsRepeatedHour(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("time zone data unavailable: %v", err)
	}
	first := time.Date(2024, 11, 3, 5, 30, 0, 0, time.UTC)
	repeated := first.Add(time.Hour)
	if a, b := first.In(ny).Format(DateLayout), repeated.In(ny).Format(DateLayout); a != b {
		t.Fatalf("wall clock texts differ (%q, %q); fixture is not in the repeated hour", a, b)
	}

	s := model.NewSubject("Algebra", "MAT201")
	s.Documents.AddFile(model.Document{Type: model.DocPdf, Name: "late", Size: 1, Date: repeated})

	data, err := MarshalSubjectIn(s, StoreLocation)
	if err != nil {
		t.Fatalf("MarshalSubjectIn() error = %v", err)
	}
	got, err := UnmarshalSubject(data, Options{Location: StoreLocation})
	if err != nil {
		t.Fatalf("UnmarshalSubject() error = %v", err)
	}
	if d := got.Documents.Files[0].Date; !d.Equal(repeated) {
		t.Errorf("date = %v, want %v", d, repeated)
	}
}

func TestUnmarshalSubject_FreshTree(t *testing.T) {
	data, err := MarshalSubject(sampleSubject())
	if err != nil {
		t.Fatalf("MarshalSubject() error = %v", err)
	}
	opts := Options{}

	a, err := UnmarshalSubject(data, opts)
	if err != nil {
		t.Fatalf("UnmarshalSubject() error = %v", err)
	}
	b, err := UnmarshalSubject(data, opts)
	if err != nil {
		t.Fatalf("UnmarshalSubject() error = %v", err)
	}

	if a.Documents == b.Documents || a.Documents.Folders[0] == b.Documents.Folders[0] {
		t.Error("two decodes share tree nodes")
	}
	if got := a.Documents.FullCount(); got != 2 {
		t.Errorf("FullCount() = %d, want 2", got)
	}
	if !a.Documents.Folders[0].Date.Equal(t0) {
		t.Errorf("folder date = %v, want %v", a.Documents.Folders[0].Date, t0)
	}
	if a.Documents.Files[0].Type != model.DocPdf {
		t.Errorf("file type = %v, want PDF", a.Documents.Files[0].Type)
	}
}

const badDateSubject = `{
  "Name": "Physics", "ID": "PHY1",
  "Documents": {
    "Size": 999,
    "Folders": [{"Name": "Labs", "Date": "not a date", "Documents": null}],
    "Files": [
      {"Type": 1, "Name": "ok", "Size": 5, "Date": "01-03-2024 10:00:00", "DownloadLink": "x"},
      {"Type": 1, "Name": "broken", "Size": 5, "Date": "2024-03-01", "DownloadLink": "y"},
      {"Type": 99, "Name": "odd", "Size": 1, "Date": "01-03-2024 10:00:00", "DownloadLink": "z"}
    ]
  }
}`

func TestUnmarshalSubject_Strict(t *testing.T) {
	_, err := UnmarshalSubject([]byte(badDateSubject), Options{})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("UnmarshalSubject() error = %v, want ErrMalformed", err)
	}
}

func TestUnmarshalSubject_Lenient(t *testing.T) {
	var skipped []string
	s, err := UnmarshalSubject([]byte(badDateSubject), Options{
		Lenient:  true,
		OnSkip:   func(path string, err error) { skipped = append(skipped, path) },
		Location: time.UTC,
	})
	if err != nil {
		t.Fatalf("UnmarshalSubject() error = %v", err)
	}

	if len(skipped) != 2 {
		t.Fatalf("skipped = %v, want 2 items", skipped)
	}
	if skipped[0] != "Physics/Labs" || skipped[1] != "Physics/broken" {
		t.Errorf("skipped = %v", skipped)
	}
	if len(s.Documents.Files) != 2 {
		t.Fatalf("files = %d, want 2", len(s.Documents.Files))
	}
	if s.Documents.Files[1].Type != model.DocUnknown {
		t.Errorf("out-of-range type = %v, want Unknown", s.Documents.Files[1].Type)
	}
	// Aggregate sizes are recomputed, not read.
	if got := s.Size(); got != 6 {
		t.Errorf("Size() = %d, want 6", got)
	}
}

func TestUnmarshalCourse(t *testing.T) {
	course := &model.Course{Name: "Engineering", Subjects: []*model.Subject{sampleSubject()}}
	data, err := MarshalCourse(course)
	if err != nil {
		t.Fatalf("MarshalCourse() error = %v", err)
	}

	got, err := UnmarshalCourse(data, Options{})
	if err != nil {
		t.Fatalf("UnmarshalCourse() error = %v", err)
	}
	if got.Name != "Engineering" || len(got.Subjects) != 1 {
		t.Fatalf("course = %+v", got)
	}
	if got.GetSubject("MAT201") == nil {
		t.Error("GetSubject(MAT201) = nil")
	}

	t.Run("subject without ID", func(t *testing.T) {
		raw := []byte(`{"Name": "C", "Subjects": [{"Name": "NoID"}, {"Name": "Ok", "ID": "1"}]}`)
		if _, err := UnmarshalCourse(raw, Options{}); !errors.Is(err, ErrMalformed) {
			t.Errorf("strict error = %v, want ErrMalformed", err)
		}
		c, err := UnmarshalCourse(raw, Options{Lenient: true})
		if err != nil {
			t.Fatalf("lenient error = %v", err)
		}
		if len(c.Subjects) != 1 || c.Subjects[0].ID != "1" {
			t.Errorf("lenient subjects = %v", c.Subjects)
		}
	})
}
