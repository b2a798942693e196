package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tripboard/api/internal/feed"
	"tripboard/api/internal/trip"
)

type fakeStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
	absent bool
	writes int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}}
}

func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	raw, ok := f.data[key]
	if !ok || f.absent {
		return nil, false, nil
	}
	return raw, true, nil
}

func (f *fakeStore) Set(ctx context.Context, key string, raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.writes++
	stored := make([]byte, len(raw))
	copy(stored, raw)
	f.data[key] = stored
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *fakeStore) stored(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[key]
}

func fastOptions() Options {
	return Options{
		Key:           "test-trip",
		Debounce:      30 * time.Millisecond,
		EchoWindow:    40 * time.Millisecond,
		WriteCooldown: 20 * time.Millisecond,
		WriteTimeout:  time.Second,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestLoadSeedsAbsentDocument(t *testing.T) {
	st := newFakeStore()
	core := New(st, fastOptions())

	doc, err := core.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.TripInfo.Title != "Disney Family Trip 2026" {
		t.Fatalf("expected seed document, got %q", doc.TripInfo.Title)
	}
	if st.writeCount() != 1 {
		t.Fatalf("absent document should be seeded with one write, got %d", st.writeCount())
	}
}

func TestLoadUnreachableStoreServesDefaultsWithoutSeeding(t *testing.T) {
	st := newFakeStore()
	st.getErr = errors.New("connection refused")
	core := New(st, fastOptions())

	doc, err := core.Load(context.Background())
	if err == nil {
		t.Fatal("expected load error for unreachable store")
	}
	if doc.TripInfo.Title != "Disney Family Trip 2026" {
		t.Fatal("defaults should still be served for availability")
	}
	if st.writeCount() != 0 {
		t.Fatalf("an unreachable store must not be overwritten with a seed, got %d writes", st.writeCount())
	}
}

func TestLoadNormalizesStoredDocument(t *testing.T) {
	st := newFakeStore()
	st.data["test-trip"] = []byte(`{"days":[{"id":1,"label":"Day","activities":["pool"]}]}`)
	core := New(st, fastOptions())

	doc, err := core.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Days[0].Activities[0].Text != "pool" {
		t.Fatalf("stored itinerary should survive: %+v", doc.Days[0])
	}
	if len(doc.BudgetTips) == 0 {
		t.Fatal("seed tips should be backfilled on load")
	}
}

func TestDebounceCoalescesBurstIntoOneWrite(t *testing.T) {
	st := newFakeStore()
	core := New(st, fastOptions())
	if _, err := core.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	seedWrites := st.writeCount()

	for i := 0; i < 5; i++ {
		core.Apply(func(d trip.Document) trip.Document {
			return trip.EditActivity(d, "Maya", 1, 0, "edit")
		})
	}

	waitFor(t, time.Second, func() bool { return st.writeCount() == seedWrites+1 })
	time.Sleep(3 * fastOptions().Debounce)
	if st.writeCount() != seedWrites+1 {
		t.Fatalf("burst should produce exactly one write, got %d extra", st.writeCount()-seedWrites)
	}

	stored := trip.Normalize(st.stored("test-trip"))
	if len(stored.EditHistory) != 5 {
		t.Fatalf("the single write should reflect the final state, history=%d", len(stored.EditHistory))
	}
}

func TestUnchangedDocumentNeverWrites(t *testing.T) {
	st := newFakeStore()
	core := New(st, fastOptions())
	if _, err := core.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	seedWrites := st.writeCount()

	core.Apply(func(d trip.Document) trip.Document { return d })

	time.Sleep(3 * fastOptions().Debounce)
	if st.writeCount() != seedWrites {
		t.Fatalf("identity transform should not write, got %d extra", st.writeCount()-seedWrites)
	}
}

func TestMutationDuringCooldownIsNotStranded(t *testing.T) {
	st := newFakeStore()
	core := New(st, fastOptions())
	if _, err := core.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	seedWrites := st.writeCount()

	core.Apply(func(d trip.Document) trip.Document {
		return trip.AddBudgetTip(d, "Maya", "first", "Food")
	})
	waitFor(t, time.Second, func() bool { return st.writeCount() == seedWrites+1 })

	// Second mutation lands inside the write cooldown.
	core.Apply(func(d trip.Document) trip.Document {
		return trip.AddBudgetTip(d, "Maya", "second", "Food")
	})

	waitFor(t, 2*time.Second, func() bool { return st.writeCount() == seedWrites+2 })
	stored := trip.Normalize(st.stored("test-trip"))
	var found bool
	for _, tip := range stored.BudgetTips {
		if tip.Text == "second" {
			found = true
		}
	}
	if !found {
		t.Fatal("mutation made during cooldown should eventually persist")
	}
}

func TestFailedWriteKeepsLocalStateAuthoritative(t *testing.T) {
	st := newFakeStore()
	core := New(st, fastOptions())
	if _, err := core.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	st.mu.Lock()
	st.setErr = errors.New("store down")
	st.mu.Unlock()

	core.Apply(func(d trip.Document) trip.Document {
		return trip.AddBudgetTip(d, "Maya", "survives failure", "Food")
	})
	time.Sleep(3 * fastOptions().Debounce)

	var found bool
	for _, tip := range core.Document().BudgetTips {
		if tip.Text == "survives failure" {
			found = true
		}
	}
	if !found {
		t.Fatal("local document must keep the edit after a failed write")
	}
	if !core.Status().Dirty {
		t.Fatal("core should stay dirty after a failed write")
	}

	// Store recovers; the next mutation retries and carries everything.
	st.mu.Lock()
	st.setErr = nil
	st.mu.Unlock()
	core.Apply(func(d trip.Document) trip.Document {
		return trip.AddBudgetTip(d, "Maya", "after recovery", "Food")
	})
	waitFor(t, 2*time.Second, func() bool { return !core.Status().Dirty })

	stored := trip.Normalize(st.stored("test-trip"))
	var both int
	for _, tip := range stored.BudgetTips {
		if tip.Text == "survives failure" || tip.Text == "after recovery" {
			both++
		}
	}
	if both != 2 {
		t.Fatalf("recovered write should carry both edits, got %d", both)
	}
}

func TestExternalCandidateReplacesDocument(t *testing.T) {
	st := newFakeStore()
	opts := fastOptions()
	var changes int
	var mu sync.Mutex
	opts.OnChange = func(trip.Document) {
		mu.Lock()
		changes++
		mu.Unlock()
	}
	core := New(st, opts)
	if _, err := core.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	// Let the seed write's echo window pass.
	time.Sleep(2 * opts.EchoWindow)
	seedWrites := st.writeCount()

	incoming := core.Document()
	incoming.TripInfo.Title = "Renamed By Another Participant"
	core.OnExternalCandidate(feed.Event{Kind: feed.EventUpdated, Document: incoming})

	if got := core.Document().TripInfo.Title; got != "Renamed By Another Participant" {
		t.Fatalf("candidate should replace the document, got %q", got)
	}
	mu.Lock()
	if changes != 1 {
		t.Fatalf("OnChange should fire once, got %d", changes)
	}
	mu.Unlock()

	time.Sleep(3 * opts.Debounce)
	if st.writeCount() != seedWrites {
		t.Fatal("an accepted external update must not re-trigger autosave")
	}
}

func TestEchoWindowDiscardsOwnWrite(t *testing.T) {
	st := newFakeStore()
	core := New(st, fastOptions())
	if _, err := core.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	core.Apply(func(d trip.Document) trip.Document {
		return trip.AddBudgetTip(d, "Maya", "mine", "Food")
	})
	waitFor(t, time.Second, func() bool { return !core.Status().Dirty })

	// Immediately after our write lands, an "external" candidate with
	// older content arrives: the store echoing. It must be dropped.
	stale := trip.DefaultDocument()
	core.OnExternalCandidate(feed.Event{Kind: feed.EventUpdated, Document: stale})

	var found bool
	for _, tip := range core.Document().BudgetTips {
		if tip.Text == "mine" {
			found = true
		}
	}
	if !found {
		t.Fatal("candidate inside the echo window should be discarded")
	}
}

func TestExternalCandidateIdenticalContentIgnored(t *testing.T) {
	st := newFakeStore()
	opts := fastOptions()
	var changes int
	var mu sync.Mutex
	opts.OnChange = func(trip.Document) {
		mu.Lock()
		changes++
		mu.Unlock()
	}
	core := New(st, opts)
	if _, err := core.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	time.Sleep(2 * opts.EchoWindow)

	core.OnExternalCandidate(feed.Event{Kind: feed.EventUpdated, Document: core.Document()})

	mu.Lock()
	defer mu.Unlock()
	if changes != 0 {
		t.Fatalf("identical candidate should not notify, got %d changes", changes)
	}
}

func TestFlushWritesImmediately(t *testing.T) {
	st := newFakeStore()
	core := New(st, fastOptions())
	if _, err := core.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	seedWrites := st.writeCount()

	core.Apply(func(d trip.Document) trip.Document {
		return trip.AddBudgetTip(d, "Maya", "flushed", "Food")
	})
	if err := core.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if st.writeCount() != seedWrites+1 {
		t.Fatalf("flush should write once, got %d extra", st.writeCount()-seedWrites)
	}
	if core.Status().Dirty {
		t.Fatal("core should be clean after flush")
	}
}

func TestCloseFlushesDirtyStateAndStopsMutations(t *testing.T) {
	st := newFakeStore()
	core := New(st, fastOptions())
	if _, err := core.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	core.Apply(func(d trip.Document) trip.Document {
		return trip.AddBudgetTip(d, "Maya", "final words", "Food")
	})
	if err := core.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	stored := trip.Normalize(st.stored("test-trip"))
	var found bool
	for _, tip := range stored.BudgetTips {
		if tip.Text == "final words" {
			found = true
		}
	}
	if !found {
		t.Fatal("close should persist the dirty document")
	}

	before := len(core.Document().BudgetTips)
	core.Apply(func(d trip.Document) trip.Document {
		return trip.AddBudgetTip(d, "Maya", "too late", "Food")
	})
	if len(core.Document().BudgetTips) != before {
		t.Fatal("mutations after close should be ignored")
	}
}
