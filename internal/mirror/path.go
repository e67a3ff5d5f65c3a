package mirror

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"coursesync/internal/model"
)

// ErrEmptyStack is returned by Pop when no folder has been pushed.
var ErrEmptyStack = errors.New("path stack is empty")

// StackMode controls whether pushing a folder touches the filesystem.
type StackMode int

const (
	// ReadMode only tracks the path; used for planning and status walks.
	ReadMode StackMode = iota
	// WriteMode creates the directory for every pushed folder.
	WriteMode
)

// Frame is one pushed level of a PathStack.
type Frame struct {
	Name      string
	Documents *model.Collection
}

// PathStack tracks the local directory corresponding to the current position
// of a depth-first walk over a remote tree. It is owned by a single walk and
// is not safe for concurrent use.
type PathStack struct {
	fs     afero.Fs
	root   string
	mode   StackMode
	frames []Frame
}

// NewPathStack creates an empty stack rooted at root.
func NewPathStack(fs afero.Fs, root string, mode StackMode) *PathStack {
	return &PathStack{fs: fs, root: root, mode: mode}
}

// Push descends into a folder. In WriteMode the directory is created if
// missing; if that fails the frame is not pushed.
func (p *PathStack) Push(name string, docs *model.Collection) error {
	if p.mode == WriteMode {
		dir := filepath.Join(p.CurrentPath(), SanitizeName(name))
		if err := p.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	p.frames = append(p.frames, Frame{Name: name, Documents: docs})
	return nil
}

// Pop ascends one level and returns the frame that was removed.
func (p *PathStack) Pop() (Frame, error) {
	if len(p.frames) == 0 {
		return Frame{}, ErrEmptyStack
	}
	top := p.frames[len(p.frames)-1]
	p.frames = p.frames[:len(p.frames)-1]
	return top, nil
}

// Peek returns the top frame without removing it.
func (p *PathStack) Peek() (Frame, error) {
	if len(p.frames) == 0 {
		return Frame{}, ErrEmptyStack
	}
	return p.frames[len(p.frames)-1], nil
}

// CurrentPath returns the root joined with every pushed folder name.
func (p *PathStack) CurrentPath() string {
	parts := make([]string, 0, len(p.frames)+1)
	parts = append(parts, p.root)
	for _, f := range p.frames {
		parts = append(parts, SanitizeName(f.Name))
	}
	return filepath.Join(parts...)
}

// Segments returns the unsanitized names of the pushed folders, outermost first.
func (p *PathStack) Segments() []string {
	names := make([]string, len(p.frames))
	for i, f := range p.frames {
		names[i] = f.Name
	}
	return names
}

// Depth returns the number of pushed folders.
func (p *PathStack) Depth() int {
	return len(p.frames)
}

// Root returns the mirror root the stack was created with.
func (p *PathStack) Root() string {
	return p.root
}
