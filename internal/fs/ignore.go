package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// IgnoreFileName is the per-mirror ignore file read from the mirror root.
const IgnoreFileName = ".syncignore"

// defaultIgnorePatterns are always applied regardless of config or .syncignore.
var defaultIgnorePatterns = []string{IgnoreFileName}

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // true = match against relative path; false = match against one name only
	dirOnly   bool // pattern ended in '/': matches folders, and through them every file below
}

// IgnoreMatcher checks mirror paths against a set of ignore patterns.
// Patterns without '/' match against a single name. Patterns with '/' match
// against the full path relative to the mirror root. A trailing '/' restricts
// a pattern to folders: "Recordings/" skips every folder named Recordings
// together with its contents.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		dirOnly := strings.HasSuffix(raw, "/")
		raw = strings.TrimRight(raw, "/")
		if raw == "" {
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
			dirOnly:   dirOnly,
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// LoadIgnoreMatcher builds the matcher for a mirror rooted at root: the
// default patterns, then configured patterns, then the lines of root/.syncignore.
func LoadIgnoreMatcher(afs afero.Fs, root string, configured []string) (*IgnoreMatcher, error) {
	fromFile, err := ParseIgnoreFile(afs, filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	all := make([]string, 0, len(defaultIgnorePatterns)+len(configured)+len(fromFile))
	all = append(all, defaultIgnorePatterns...)
	all = append(all, configured...)
	all = append(all, fromFile...)
	return NewIgnoreMatcher(all), nil
}

// Len returns the number of active patterns.
func (m *IgnoreMatcher) Len() int {
	return len(m.patterns)
}

// Match reports whether the file at relativePath should be skipped, either
// because its name matches or because one of its folders does.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if len(m.patterns) == 0 || relativePath == "" {
		return false
	}
	normalized := filepath.ToSlash(relativePath)
	for _, p := range m.patterns {
		if !p.dirOnly && p.matches(normalized) {
			return true
		}
	}
	for dir := parentOf(normalized); dir != ""; dir = parentOf(dir) {
		if m.matchDir(dir) {
			return true
		}
	}
	return false
}

// MatchDir reports whether the folder at relativeDir is excluded as a whole.
func (m *IgnoreMatcher) MatchDir(relativeDir string) bool {
	if len(m.patterns) == 0 || relativeDir == "" {
		return false
	}
	normalized := filepath.ToSlash(relativeDir)
	for dir := normalized; dir != ""; dir = parentOf(dir) {
		if m.matchDir(dir) {
			return true
		}
	}
	return false
}

func (m *IgnoreMatcher) matchDir(dir string) bool {
	for _, p := range m.patterns {
		if p.dirOnly && p.matches(dir) {
			return true
		}
	}
	return false
}

// matches tests a slash-separated path. Bad patterns never match.
func (p ignorePattern) matches(path string) bool {
	target := path
	if !p.matchPath {
		target = path[strings.LastIndex(path, "/")+1:]
	}
	matched, err := filepath.Match(p.pattern, target)
	return err == nil && matched
}

func parentOf(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(afs afero.Fs, path string) ([]string, error) {
	f, err := afs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
