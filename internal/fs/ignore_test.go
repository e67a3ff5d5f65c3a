package fs

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestNewIgnoreMatcher(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"", "  ", "# comment", "*.mp4", "/"})
		if len(m.patterns) != 1 {
			t.Fatalf("expected 1 pattern, got %d", len(m.patterns))
		}
		if m.patterns[0].pattern != "*.mp4" {
			t.Errorf("expected *.mp4, got %s", m.patterns[0].pattern)
		}
	})

	t.Run("classifies name, path and folder patterns", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"*.mp4", "Algebra/old", "Recordings/"})
		if m.patterns[0].matchPath || m.patterns[0].dirOnly {
			t.Error("*.mp4 should be a plain name pattern")
		}
		if !m.patterns[1].matchPath {
			t.Error("Algebra/old should be a path pattern")
		}
		if p := m.patterns[2]; !p.dirOnly || p.matchPath || p.pattern != "Recordings" {
			t.Errorf("Recordings/ parsed as %+v, want folder-only name pattern", p)
		}
	})
}

func TestIgnoreMatcher_Match(t *testing.T) {
	tests := []struct {
		name         string
		patterns     []string
		relativePath string
		want         bool
	}{
		{
			name:         "extension glob matches file in subject root",
			patterns:     []string{"*.mp4"},
			relativePath: filepath.Join("Algebra", "intro.mp4"),
			want:         true,
		},
		{
			name:         "extension glob matches nested file",
			patterns:     []string{"*.mp4"},
			relativePath: filepath.Join("Algebra", "Lectures", "week1.mp4"),
			want:         true,
		},
		{
			name:         "extension glob ignores other types",
			patterns:     []string{"*.mp4"},
			relativePath: filepath.Join("Algebra", "syllabus.pdf"),
			want:         false,
		},
		{
			name:         "exact name matches the ignore file",
			patterns:     []string{".syncignore"},
			relativePath: ".syncignore",
			want:         true,
		},
		{
			name:         "path pattern matches exact relative path",
			patterns:     []string{"Algebra/old.pdf"},
			relativePath: filepath.Join("Algebra", "old.pdf"),
			want:         true,
		},
		{
			name:         "path pattern is anchored at the mirror root",
			patterns:     []string{"Algebra/old.pdf"},
			relativePath: filepath.Join("Physics", "Algebra", "old.pdf"),
			want:         false,
		},
		{
			name:         "path pattern with glob",
			patterns:     []string{"Algebra/*.zip"},
			relativePath: filepath.Join("Algebra", "code.zip"),
			want:         true,
		},
		{
			name:         "question mark wildcard",
			patterns:     []string{"week?.pdf"},
			relativePath: filepath.Join("Algebra", "week1.pdf"),
			want:         true,
		},
		{
			name:         "question mark does not match multiple chars",
			patterns:     []string{"week?.pdf"},
			relativePath: filepath.Join("Algebra", "week10.pdf"),
			want:         false,
		},
		{
			name:         "folder pattern skips files below the folder",
			patterns:     []string{"Recordings/"},
			relativePath: filepath.Join("Algebra", "Recordings", "Extra", "talk.pdf"),
			want:         true,
		},
		{
			name:         "folder pattern does not match a file of that name",
			patterns:     []string{"Recordings/"},
			relativePath: filepath.Join("Algebra", "Recordings"),
			want:         false,
		},
		{
			name:         "anchored folder pattern",
			patterns:     []string{"Algebra/Old/"},
			relativePath: filepath.Join("Algebra", "Old", "exam.pdf"),
			want:         true,
		},
		{
			name:         "no patterns matches nothing",
			patterns:     nil,
			relativePath: "anything.txt",
			want:         false,
		},
		{
			name:         "empty string path",
			patterns:     []string{"*.mp4"},
			relativePath: "",
			want:         false,
		},
		{
			name:         "second of several patterns matches",
			patterns:     []string{"*.mp4", "*.zip"},
			relativePath: filepath.Join("Algebra", "code.zip"),
			want:         true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewIgnoreMatcher(tt.patterns)
			got := m.Match(tt.relativePath)
			if got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.relativePath, got, tt.want)
			}
		})
	}
}

func TestIgnoreMatcher_MatchDir(t *testing.T) {
	m := NewIgnoreMatcher([]string{"*.mp4", "Recordings/", "Physics/Labs/"})

	tests := []struct {
		dir  string
		want bool
	}{
		{dir: filepath.Join("Algebra", "Recordings"), want: true},
		{dir: filepath.Join("Algebra", "Recordings", "2023"), want: true},
		{dir: filepath.Join("Physics", "Labs"), want: true},
		{dir: filepath.Join("Chemistry", "Physics", "Labs"), want: false},
		{dir: filepath.Join("Algebra", "Lectures"), want: false},
		{dir: "lecture.mp4", want: false},
		{dir: "", want: false},
	}
	for _, tt := range tests {
		if got := m.MatchDir(tt.dir); got != tt.want {
			t.Errorf("MatchDir(%q) = %v, want %v", tt.dir, got, tt.want)
		}
	}
}

func TestParseIgnoreFile(t *testing.T) {
	t.Run("reads patterns from file", func(t *testing.T) {
		t.Parallel()
		afs := afero.NewMemMapFs()
		path := filepath.Join("/mirror", ".syncignore")
		content := "*.mp4\n# comment\n\n*.zip\nLectures/old\n"
		if err := afero.WriteFile(afs, path, []byte(content), 0644); err != nil {
			t.Fatalf("writing test file: %v", err)
		}

		patterns, err := ParseIgnoreFile(afs, path)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if len(patterns) != 5 { // includes blank and comment lines; filtering is NewIgnoreMatcher's job
			t.Fatalf("expected 5 raw lines, got %d", len(patterns))
		}

		m := NewIgnoreMatcher(patterns)
		if len(m.patterns) != 3 {
			t.Errorf("expected 3 parsed patterns, got %d", len(m.patterns))
		}
	})

	t.Run("returns nil for missing file", func(t *testing.T) {
		t.Parallel()
		patterns, err := ParseIgnoreFile(afero.NewMemMapFs(), "/nonexistent/.syncignore")
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if patterns != nil {
			t.Errorf("expected nil patterns, got %v", patterns)
		}
	})
}

func TestLoadIgnoreMatcher(t *testing.T) {
	afs := afero.NewMemMapFs()
	if err := afero.WriteFile(afs, "/mirror/.syncignore", []byte("*.mp4\n"), 0644); err != nil {
		t.Fatalf("writing ignore file: %v", err)
	}

	m, err := LoadIgnoreMatcher(afs, "/mirror", []string{"*.zip"})
	if err != nil {
		t.Fatalf("LoadIgnoreMatcher() error = %v", err)
	}
	if m.Len() != 3 {
		t.Errorf("Len() = %d, want 3", m.Len())
	}
	for _, path := range []string{".syncignore", "Algebra/lecture.mp4", "Algebra/code.zip"} {
		if !m.Match(path) {
			t.Errorf("Match(%q) = false, want true", path)
		}
	}
	if m.Match("Algebra/notes.pdf") {
		t.Error("Match(notes.pdf) = true, want false")
	}
}

func TestCreationTime(t *testing.T) {
	afs := afero.NewMemMapFs()
	if err := afero.WriteFile(afs, "/f.txt", []byte("x"), 0644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if err := afs.Chtimes("/f.txt", want, want); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}
	info, err := afs.Stat("/f.txt")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if got := CreationTime(info); !got.Equal(want) {
		t.Errorf("CreationTime() = %v, want %v", got, want)
	}
}
