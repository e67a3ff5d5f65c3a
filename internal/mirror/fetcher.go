package mirror

import (
	"context"
	"errors"

	"coursesync/internal/model"
)

// ErrSourceUnreachable is returned when the remote tree cannot be obtained at all.
// It aborts the whole sync run.
var ErrSourceUnreachable = errors.New("remote source unreachable")

// Fetcher transfers the bytes behind a document's download reference.
// Implementations must honor ctx for cancellation and deadlines; there is
// no default timeout.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Source produces the current remote tree for a course.
// The tree is materialized wholesale; the engine never parses remote markup.
type Source interface {
	FetchCourse(ctx context.Context, name string) (*model.Course, error)
}
