package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/afero"

	"coursesync/internal/config"
	"coursesync/internal/mirror"
	"coursesync/internal/model"
	"coursesync/internal/snapshot"
)

// coursePlaceholder in a source URL or path is replaced by the course name.
const coursePlaceholder = "{course}"

// TreeSource loads the remote course tree as snapshot JSON, either over
// HTTP or from a local file. Malformed documents and folders are skipped
// and logged; only an unreadable or undecodable tree is an error.
type TreeSource struct {
	load   func(ctx context.Context, name string) ([]byte, error)
	origin string
	logger mirror.Logger
}

var _ mirror.Source = (*TreeSource)(nil)

// NewHTTPSource reads the tree from rawURL through fetcher.
func NewHTTPSource(rawURL string, fetcher mirror.Fetcher, logger mirror.Logger) *TreeSource {
	return &TreeSource{
		origin: rawURL,
		logger: orNop(logger),
		load: func(ctx context.Context, name string) ([]byte, error) {
			return fetcher.Fetch(ctx, strings.ReplaceAll(rawURL, coursePlaceholder, url.PathEscape(name)))
		},
	}
}

// NewFileSource reads the tree from path on fs.
func NewFileSource(fs afero.Fs, path string, logger mirror.Logger) *TreeSource {
	return &TreeSource{
		origin: path,
		logger: orNop(logger),
		load: func(_ context.Context, name string) ([]byte, error) {
			return afero.ReadFile(fs, strings.ReplaceAll(path, coursePlaceholder, name))
		},
	}
}

// NewSourceFromConfig builds the Source selected by cfg.Type.
func NewSourceFromConfig(cfg config.SourceConfig, fs afero.Fs, fetcher mirror.Fetcher, logger mirror.Logger) (*TreeSource, error) {
	switch cfg.Type {
	case "http", "":
		if cfg.URL == "" {
			return nil, fmt.Errorf("http source requires a url")
		}
		return NewHTTPSource(cfg.URL, fetcher, logger), nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file source requires a path")
		}
		return NewFileSource(fs, cfg.Path, logger), nil
	default:
		return nil, fmt.Errorf("unknown source type: %q", cfg.Type)
	}
}

// FetchCourse loads and decodes the tree for the named course. Load
// failures wrap mirror.ErrSourceUnreachable.
func (s *TreeSource) FetchCourse(ctx context.Context, name string) (*model.Course, error) {
	data, err := s.load(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: loading %s: %v", mirror.ErrSourceUnreachable, s.origin, err)
	}

	skipped := 0
	course, err := snapshot.UnmarshalCourse(data, snapshot.Options{
		Lenient: true,
		OnSkip: func(path string, err error) {
			skipped++
			s.logger.Warn("skipping malformed remote item", "course", name, "path", path, "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("decoding course tree from %s: %w", s.origin, err)
	}
	if course.Name == "" {
		course.Name = name
	}
	s.logger.Debug("loaded course tree", "course", course.Name, "subjects", len(course.Subjects), "skipped", skipped)
	return course, nil
}

func orNop(logger mirror.Logger) mirror.Logger {
	if logger == nil {
		return mirror.NewNopLogger()
	}
	return logger
}
