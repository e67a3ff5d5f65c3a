package app

import (
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/dustin/go-humanize"

	"coursesync/internal/progress"
)

// progressPrinter renders registry events as one line per finished
// transfer, followed by the number of files still queued.
type progressPrinter struct {
	mu        sync.Mutex
	w         io.Writer
	remaining int
}

func newProgressHandlers(w io.Writer) progress.Handlers {
	if w == nil {
		return progress.Handlers{}
	}
	p := &progressPrinter{w: w}
	return progress.Handlers{
		OnItem:     p.item,
		OnSchedule: p.schedule,
	}
}

func (p *progressPrinter) item(e progress.ItemEvent) {
	if !e.Complete && (e.Total <= 0 || e.Done < e.Total) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remaining > 0 {
		fmt.Fprintf(p.w, "  %-40s %8s  (%d queued)\n", path.Base(e.Name), humanize.Bytes(uint64(e.Done)), p.remaining)
		return
	}
	fmt.Fprintf(p.w, "  %-40s %8s\n", path.Base(e.Name), humanize.Bytes(uint64(e.Done)))
}

func (p *progressPrinter) schedule(e progress.ScheduleEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remaining = e.Scheduled
}
