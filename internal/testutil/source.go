package testutil

import (
	"context"
	"sync"

	"coursesync/internal/model"
)

// FakeSource hands out clones of a configurable course tree.
type FakeSource struct {
	mu     sync.Mutex
	course *model.Course
	err    error
	calls  int
}

func NewFakeSource(course *model.Course) *FakeSource {
	return &FakeSource{course: course}
}

// SetCourse replaces the tree returned by later fetches.
func (s *FakeSource) SetCourse(course *model.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.course = course
	s.err = nil
}

// SetError makes every later fetch fail with err.
func (s *FakeSource) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *FakeSource) FetchCourse(ctx context.Context, name string) (*model.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.course.Clone(), nil
}

// Calls returns the number of FetchCourse calls.
func (s *FakeSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
