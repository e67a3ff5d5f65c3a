package progress

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRegistry_Register(t *testing.T) {
	t.Run("duplicate id fails", func(t *testing.T) {
		r := NewRegistry(Handlers{})
		if _, err := r.Register("https://host/a", 10, ""); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		_, err := r.Register("https://host/a", 10, "")
		if !errors.Is(err, ErrDuplicateKey) {
			t.Errorf("Register() error = %v, want ErrDuplicateKey", err)
		}
	})

	t.Run("alias is used as key", func(t *testing.T) {
		r := NewRegistry(Handlers{})
		key, err := r.Register("https://host/a", 10, "alias-1")
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if key != "alias-1" {
			t.Errorf("Register() key = %q, want %q", key, "alias-1")
		}
		if _, err := r.Register("other", 5, "alias-1"); !errors.Is(err, ErrDuplicateKey) {
			t.Errorf("Register() with taken alias error = %v, want ErrDuplicateKey", err)
		}
	})

	t.Run("named item keeps display name under its own key", func(t *testing.T) {
		var items []ItemEvent
		r := NewRegistry(Handlers{OnItem: func(e ItemEvent) { items = append(items, e) }})
		if _, err := r.Register("https://host/a", 10, ""); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		key, err := r.RegisterNamed("uuid-1", "https://host/a", 10)
		if err != nil {
			t.Fatalf("RegisterNamed() error = %v", err)
		}
		if _, err := r.RegisterNamed("uuid-1", "other", 1); !errors.Is(err, ErrDuplicateKey) {
			t.Errorf("RegisterNamed() with taken key error = %v, want ErrDuplicateKey", err)
		}
		if r.Count() != 2 {
			t.Errorf("Count() = %d, want 2", r.Count())
		}
		if err := r.Report(key, 10, true); err != nil {
			t.Fatalf("Report() error = %v", err)
		}
		if len(items) != 1 || items[0].Key != "uuid-1" || items[0].Name != "https://host/a" {
			t.Errorf("item events = %+v, want one event keyed uuid-1 named https://host/a", items)
		}
	})

	t.Run("concurrent duplicates: exactly one succeeds", func(t *testing.T) {
		r := NewRegistry(Handlers{})
		const workers = 32

		var wg sync.WaitGroup
		var ok, dup atomic.Int32
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := r.Register("same-id", 100, "")
				switch {
				case err == nil:
					ok.Add(1)
				case errors.Is(err, ErrDuplicateKey):
					dup.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if ok.Load() != 1 {
			t.Errorf("successful registrations = %d, want 1", ok.Load())
		}
		if dup.Load() != workers-1 {
			t.Errorf("duplicate failures = %d, want %d", dup.Load(), workers-1)
		}
	})
}

func TestRegistry_Report(t *testing.T) {
	t.Run("emits item events and removes on completion", func(t *testing.T) {
		var items []ItemEvent
		var inFlight []InFlightEvent
		r := NewRegistry(Handlers{
			OnItem:     func(e ItemEvent) { items = append(items, e) },
			OnInFlight: func(e InFlightEvent) { inFlight = append(inFlight, e) },
		})

		key, _ := r.Register("file.pdf", 200, "")
		if err := r.Report(key, 50, false); err != nil {
			t.Fatalf("Report() error = %v", err)
		}
		if r.Count() != 1 {
			t.Errorf("Count() = %d, want 1 after partial report", r.Count())
		}
		if err := r.Report(key, 200, false); err != nil {
			t.Fatalf("Report() error = %v", err)
		}
		if r.Count() != 0 {
			t.Errorf("Count() = %d, want 0 after done == total", r.Count())
		}

		if len(items) != 2 {
			t.Fatalf("item events = %d, want 2", len(items))
		}
		if items[0].Percent != 25 {
			t.Errorf("Percent = %v, want 25", items[0].Percent)
		}
		// One event for the registration, one for the removal.
		if len(inFlight) != 2 {
			t.Fatalf("in-flight events = %d, want 2", len(inFlight))
		}
		if inFlight[0].Count != 1 || inFlight[1].Count != 0 {
			t.Errorf("in-flight counts = %d,%d, want 1,0", inFlight[0].Count, inFlight[1].Count)
		}
	})

	t.Run("complete flag removes unknown-size item", func(t *testing.T) {
		r := NewRegistry(Handlers{})
		key, _ := r.Register("stream", -1, "")
		if err := r.Report(key, 4096, true); err != nil {
			t.Fatalf("Report() error = %v", err)
		}
		if r.Count() != 0 {
			t.Errorf("Count() = %d, want 0", r.Count())
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		r := NewRegistry(Handlers{})
		if err := r.Report("missing", 1, false); !errors.Is(err, ErrUnknownKey) {
			t.Errorf("Report() error = %v, want ErrUnknownKey", err)
		}
	})
}

func TestRegistry_InFlightCount(t *testing.T) {
	const n, m = 20, 7
	r := NewRegistry(Handlers{})

	keys := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key, err := r.Register(fmt.Sprintf("item-%d", i), 10, "")
			if err != nil {
				t.Errorf("Register() error = %v", err)
			}
			keys[i] = key
		}(i)
	}
	wg.Wait()

	for i := 0; i < m; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := r.Report(keys[i], 10, true); err != nil {
				t.Errorf("Report() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := r.Count(); got != n-m {
		t.Errorf("Count() = %d, want %d", got, n-m)
	}
	if got := len(r.InFlight()); got != n-m {
		t.Errorf("len(InFlight()) = %d, want %d", got, n-m)
	}
}

func TestRegistry_ScheduleSuppression(t *testing.T) {
	var inFlight []InFlightEvent
	var schedule []ScheduleEvent
	r := NewRegistry(Handlers{
		OnInFlight: func(e InFlightEvent) { inFlight = append(inFlight, e) },
		OnSchedule: func(e ScheduleEvent) { schedule = append(schedule, e) },
	})

	r.Schedule(2)
	if !r.Suppressed() {
		t.Fatal("Suppressed() = false after Schedule")
	}

	key, _ := r.Register("a", 1, "")
	_ = r.Report(key, 1, true)
	if len(inFlight) != 0 {
		t.Errorf("in-flight events while suppressed = %d, want 0", len(inFlight))
	}

	r.Finish()
	if r.Scheduled() != 1 || !r.Suppressed() {
		t.Errorf("Scheduled() = %d, Suppressed() = %v, want 1, true", r.Scheduled(), r.Suppressed())
	}

	r.Finish()
	if r.Suppressed() {
		t.Error("Suppressed() = true after all scheduled items finished")
	}
	if len(inFlight) != 1 || inFlight[0].Count != 0 {
		t.Errorf("in-flight events after suppression ends = %v, want one empty event", inFlight)
	}

	// Extra Finish calls never go negative.
	r.Finish()
	if r.Scheduled() != 0 {
		t.Errorf("Scheduled() = %d, want 0", r.Scheduled())
	}

	wantSchedule := []int{2, 1, 0}
	if len(schedule) != len(wantSchedule) {
		t.Fatalf("schedule events = %d, want %d", len(schedule), len(wantSchedule))
	}
	for i, want := range wantSchedule {
		if schedule[i].Scheduled != want {
			t.Errorf("schedule[%d] = %d, want %d", i, schedule[i].Scheduled, want)
		}
	}
}
