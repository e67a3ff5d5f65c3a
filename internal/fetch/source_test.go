package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"

	"coursesync/internal/config"
	"coursesync/internal/mirror"
	"coursesync/internal/snapshot"
	"coursesync/internal/testutil"
)

const remoteTree = `{
  "Name": "Computer Science",
  "Subjects": [
    {
      "Name": "Algorithms",
      "ID": "CS101",
      "Documents": {
        "Files": [
          {"Type": 1, "Name": "syllabus", "Size": 100, "Date": "02-09-2024 08:00:00", "DownloadLink": "https://x/1"},
          {"Type": 1, "Name": "broken", "Size": 1, "Date": "not a date", "DownloadLink": "https://x/2"}
        ],
        "Folders": []
      }
    }
  ]
}`

type recordingLogger struct {
	mirror.NopLogger
	warnings int
}

func (l *recordingLogger) Warn(string, ...any) { l.warnings++ }

func TestTreeSource_HTTP(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(remoteTree))
	}))
	defer srv.Close()

	logger := &recordingLogger{}
	fetcher := newTestFetcher(t, config.NetworkConfig{}, nil)
	src := NewHTTPSource(srv.URL+"/courses/{course}/tree.json", fetcher, logger)

	course, err := src.FetchCourse(context.Background(), "Computer Science")
	if err != nil {
		t.Fatalf("FetchCourse() error = %v", err)
	}
	if path != "/courses/Computer Science/tree.json" {
		t.Errorf("request path = %q", path)
	}
	subject := course.GetSubject("CS101")
	if subject == nil {
		t.Fatal("subject CS101 missing")
	}
	if got := len(subject.Documents.Files); got != 1 {
		t.Errorf("files = %d, want 1 after skipping the malformed one", got)
	}
	if logger.warnings != 1 {
		t.Errorf("warnings = %d, want 1", logger.warnings)
	}
}

func TestTreeSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, newTestFetcher(t, config.NetworkConfig{}, nil), nil)
	_, err := src.FetchCourse(context.Background(), "cs")
	if !errors.Is(err, mirror.ErrSourceUnreachable) {
		t.Errorf("FetchCourse() error = %v, want ErrSourceUnreachable", err)
	}
}

func TestTreeSource_File(t *testing.T) {
	fs := afero.NewMemMapFs()
	data, err := snapshot.MarshalCourse(testutil.SampleCourse())
	if err != nil {
		t.Fatalf("MarshalCourse() error = %v", err)
	}
	if err := afero.WriteFile(fs, "/srv/trees/cs.json", data, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	src, err := NewSourceFromConfig(config.SourceConfig{Type: "file", Path: "/srv/trees/{course}.json"}, fs, nil, nil)
	if err != nil {
		t.Fatalf("NewSourceFromConfig() error = %v", err)
	}
	course, err := src.FetchCourse(context.Background(), "cs")
	if err != nil {
		t.Fatalf("FetchCourse() error = %v", err)
	}
	if len(course.Subjects) != 3 {
		t.Errorf("subjects = %d, want 3", len(course.Subjects))
	}

	if _, err := src.FetchCourse(context.Background(), "missing"); !errors.Is(err, mirror.ErrSourceUnreachable) {
		t.Errorf("FetchCourse(missing) error = %v, want ErrSourceUnreachable", err)
	}
}

func TestTreeSource_Malformed(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/tree.json", []byte("<html>login</html>"), 0644)

	src := NewFileSource(fs, "/tree.json", nil)
	_, err := src.FetchCourse(context.Background(), "cs")
	if !errors.Is(err, snapshot.ErrMalformed) {
		t.Errorf("FetchCourse() error = %v, want ErrMalformed", err)
	}
}

func TestNewSourceFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.SourceConfig
		wantErr bool
	}{
		{name: "http", cfg: config.SourceConfig{Type: "http", URL: "https://x/tree.json"}},
		{name: "http without url", cfg: config.SourceConfig{Type: "http"}, wantErr: true},
		{name: "file without path", cfg: config.SourceConfig{Type: "file"}, wantErr: true},
		{name: "unknown", cfg: config.SourceConfig{Type: "ftp"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSourceFromConfig(tt.cfg, afero.NewMemMapFs(), nil, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSourceFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
