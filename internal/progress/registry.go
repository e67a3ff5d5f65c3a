// Package progress tracks in-flight transfers and emits progress events.
//
// A single Registry is shared by every concurrent download of a run. All
// mutation happens inside one critical section; event handlers are invoked
// after the lock is released, each with a payload captured under the lock.
// Handlers may therefore call back into the Registry, but events produced by
// different goroutines may be delivered in any interleaving.
package progress

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrDuplicateKey is returned when registering an ID or alias that is already tracked.
	ErrDuplicateKey = errors.New("progress item already registered")

	// ErrUnknownKey is returned when reporting on an item that is not tracked.
	ErrUnknownKey = errors.New("progress item not registered")
)

// ItemEvent describes the progress of one transfer.
type ItemEvent struct {
	Key      string
	Name     string
	Done     int64
	Total    int64 // <= 0 when the size is unknown
	Percent  float64
	Complete bool
}

// InFlightEvent describes the set of transfers currently registered.
type InFlightEvent struct {
	Names []string
	Count int
}

// ScheduleEvent reports the number of scheduled items still outstanding.
type ScheduleEvent struct {
	Scheduled int
}

// Handlers receives registry events. Any field may be nil.
type Handlers struct {
	OnItem     func(ItemEvent)
	OnInFlight func(InFlightEvent)
	OnSchedule func(ScheduleEvent)
}

type item struct {
	name  string
	total int64
	done  int64
}

// Registry is a concurrency-safe map of in-flight transfers.
type Registry struct {
	mu        sync.Mutex
	items     map[string]*item
	scheduled int
	handlers  Handlers
}

// NewRegistry creates an empty registry delivering events to h.
func NewRegistry(h Handlers) *Registry {
	return &Registry{
		items:    make(map[string]*item),
		handlers: h,
	}
}

// Register starts tracking a transfer named id with the expected total size.
// When alias is non-empty the item is stored under alias instead of id.
// It fails with ErrDuplicateKey if id or alias is already tracked.
// Returns the key to use with Report.
func (r *Registry) Register(id string, total int64, alias string) (string, error) {
	r.mu.Lock()
	if _, ok := r.items[id]; ok {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateKey, id)
	}
	key := id
	if alias != "" {
		key = alias
	}
	return r.addLocked(key, id, total)
}

// RegisterNamed tracks a transfer under key while reporting it as name in
// events. Only key has to be unique, so several transfers of the same URL
// can be in flight under distinct keys.
func (r *Registry) RegisterNamed(key, name string, total int64) (string, error) {
	r.mu.Lock()
	return r.addLocked(key, name, total)
}

// addLocked inserts the item and releases r.mu.
func (r *Registry) addLocked(key, name string, total int64) (string, error) {
	if _, ok := r.items[key]; ok {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}
	r.items[key] = &item{name: name, total: total}
	ev, emit := r.inFlightLocked()
	r.mu.Unlock()

	if emit {
		r.emitInFlight(ev)
	}
	return key, nil
}

// Report updates the amount done for key. When complete is true or done
// reaches the registered total, the item is removed and an in-flight event
// is emitted.
func (r *Registry) Report(key string, done int64, complete bool) error {
	r.mu.Lock()
	it, ok := r.items[key]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	it.done = done
	itemEv := ItemEvent{
		Key:      key,
		Name:     it.name,
		Done:     done,
		Total:    it.total,
		Percent:  percent(done, it.total, complete),
		Complete: complete,
	}

	var inFlight InFlightEvent
	var emit bool
	if complete || done == it.total {
		delete(r.items, key)
		inFlight, emit = r.inFlightLocked()
	}
	r.mu.Unlock()

	if r.handlers.OnItem != nil {
		r.handlers.OnItem(itemEv)
	}
	if emit {
		r.emitInFlight(inFlight)
	}
	return nil
}

// Schedule announces n upcoming items of a bulk operation. While any
// scheduled items remain, in-flight events are suppressed.
func (r *Registry) Schedule(n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	r.scheduled += n
	ev := ScheduleEvent{Scheduled: r.scheduled}
	r.mu.Unlock()

	r.emitSchedule(ev)
}

// Finish marks one scheduled item as done. When the last scheduled item
// finishes, suppression ends and the current in-flight set is emitted.
func (r *Registry) Finish() {
	r.mu.Lock()
	if r.scheduled == 0 {
		r.mu.Unlock()
		return
	}
	r.scheduled--
	ev := ScheduleEvent{Scheduled: r.scheduled}
	inFlight, emit := r.inFlightLocked()
	r.mu.Unlock()

	r.emitSchedule(ev)
	if emit {
		r.emitInFlight(inFlight)
	}
}

// Scheduled returns the number of scheduled items not yet finished.
func (r *Registry) Scheduled() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scheduled
}

// Suppressed reports whether in-flight events are currently suppressed.
func (r *Registry) Suppressed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scheduled > 0
}

// InFlight returns the names of all registered transfers, sorted.
func (r *Registry) InFlight() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.namesLocked()
}

// Count returns the number of registered transfers.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.items))
	for _, it := range r.items {
		names = append(names, it.name)
	}
	sort.Strings(names)
	return names
}

// inFlightLocked builds the aggregate payload. The second result is false
// while a bulk operation is being scheduled. Caller holds r.mu.
func (r *Registry) inFlightLocked() (InFlightEvent, bool) {
	if r.scheduled > 0 || r.handlers.OnInFlight == nil {
		return InFlightEvent{}, false
	}
	names := r.namesLocked()
	return InFlightEvent{Names: names, Count: len(names)}, true
}

func (r *Registry) emitInFlight(ev InFlightEvent) {
	if r.handlers.OnInFlight != nil {
		r.handlers.OnInFlight(ev)
	}
}

func (r *Registry) emitSchedule(ev ScheduleEvent) {
	if r.handlers.OnSchedule != nil {
		r.handlers.OnSchedule(ev)
	}
}

func percent(done, total int64, complete bool) float64 {
	if complete {
		return 100
	}
	if total <= 0 {
		return 0
	}
	return float64(done) * 100 / float64(total)
}
