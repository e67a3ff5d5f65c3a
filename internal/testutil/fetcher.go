package testutil

import (
	"context"
	"fmt"
	"sync"

	"coursesync/internal/model"
)

// FakeFetcher serves download references from memory. Unknown references
// fail like a missing remote file. Safe for concurrent use.
type FakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	errs   map[string]error
	calls  map[string]int

	// Hook, when set, runs before every fetch. A non-nil result fails it.
	Hook func(ctx context.Context, ref string) error
}

func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{
		bodies: make(map[string][]byte),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

// Serve makes ref return body.
func (f *FakeFetcher) Serve(ref string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[ref] = body
	delete(f.errs, ref)
}

// ServeTree serves a body for every document in c, derived from its link.
func (f *FakeFetcher) ServeTree(c *model.Collection) {
	for _, doc := range c.Files {
		f.Serve(doc.DownloadLink, []byte("content of "+doc.DownloadLink))
	}
	for _, folder := range c.Folders {
		f.ServeTree(folder.Documents)
	}
}

// Fail makes ref return err.
func (f *FakeFetcher) Fail(ref string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[ref] = err
}

func (f *FakeFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Hook != nil {
		if err := f.Hook(ctx, ref); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ref]++
	if err, ok := f.errs[ref]; ok {
		return nil, err
	}
	body, ok := f.bodies[ref]
	if !ok {
		return nil, fmt.Errorf("GET %s: 404 Not Found", ref)
	}
	return append([]byte(nil), body...), nil
}

// Calls returns how often ref was fetched.
func (f *FakeFetcher) Calls(ref string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ref]
}

// TotalCalls returns the number of fetches across all references.
func (f *FakeFetcher) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// Reset forgets recorded calls.
func (f *FakeFetcher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = make(map[string]int)
}
