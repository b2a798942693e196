// Package reconcile owns the authoritative in-memory copy of the trip
// document. It applies local mutations, coalesces them into debounced
// writes to the remote store, and folds in change-feed pushes from
// other participants with whole-document last-writer-wins semantics.
package reconcile

import (
	"bytes"
	"context"
	"log"
	"sync"
	"time"

	"tripboard/api/internal/feed"
	"tripboard/api/internal/store"
	"tripboard/api/internal/trip"
)

// Options tunes the core's timing. Zero values fall back to the
// defaults the presentation layer was built around.
type Options struct {
	Key string

	// Debounce is the quiet period after the last local mutation
	// before a write is issued. A burst of edits produces exactly one
	// write reflecting the final state.
	Debounce time.Duration

	// EchoWindow is the interval after a completed self-write during
	// which incoming external candidates are presumed to be that same
	// write reflected back, and discarded.
	EchoWindow time.Duration

	// WriteCooldown holds the write-in-flight flag after a completed
	// write long enough to absorb the store's echo.
	WriteCooldown time.Duration

	// WriteTimeout bounds a single store write. Without it a hung
	// write would wedge autosave permanently.
	WriteTimeout time.Duration

	// OnChange observes every accepted document replacement, local or
	// external. Called outside the core's lock.
	OnChange func(trip.Document)

	// OnPersist observes every successful write of the serialized
	// document. Called outside the core's lock.
	OnPersist func(raw []byte)
}

const (
	defaultDebounce      = 1500 * time.Millisecond
	defaultEchoWindow    = 500 * time.Millisecond
	defaultWriteCooldown = time.Second
	defaultWriteTimeout  = 10 * time.Second
)

// Core is the single mutator of the trip document. All other
// components receive snapshots and request changes through pure
// transforms.
type Core struct {
	store store.Store
	opts  Options

	mu            sync.Mutex
	doc           trip.Document
	lastPersisted []byte
	timer         *time.Timer
	writeInFlight bool
	lastSelfWrite time.Time
	lastSavedAt   time.Time
	closed        bool
}

func New(st store.Store, opts Options) *Core {
	if opts.Key == "" {
		opts.Key = trip.Key
	}
	if opts.Debounce == 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.EchoWindow == 0 {
		opts.EchoWindow = defaultEchoWindow
	}
	if opts.WriteCooldown == 0 {
		opts.WriteCooldown = defaultWriteCooldown
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	return &Core{store: st, opts: opts}
}

// Load initializes the authoritative document from the store. A
// confirmed-absent document is seeded from defaults and written back;
// an unreachable store also falls back to defaults for availability
// but refuses to write them, so a temporarily unreachable document is
// never overwritten by a fresh seed.
func (c *Core) Load(ctx context.Context) (trip.Document, error) {
	raw, ok, err := c.store.Get(ctx, c.opts.Key)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case err != nil:
		log.Printf("reconcile: store unreachable on load, serving defaults without seeding: %v", err)
		c.doc = trip.DefaultDocument()
		c.lastPersisted = nil
		return c.doc, err
	case !ok:
		c.doc = trip.DefaultDocument()
		seeded := trip.Serialize(c.doc)
		if err := c.store.Set(ctx, c.opts.Key, seeded); err != nil {
			log.Printf("reconcile: seeding default document failed: %v", err)
		} else {
			c.lastPersisted = seeded
			c.lastSelfWrite = time.Now()
			c.lastSavedAt = c.lastSelfWrite
		}
		return c.doc, nil
	default:
		c.doc = trip.Normalize(raw)
		c.lastPersisted = trip.Serialize(c.doc)
		return c.doc, nil
	}
}

// Document returns a snapshot of the authoritative document.
func (c *Core) Document() trip.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc
}

// Apply replaces the authoritative document with transform(document)
// and schedules a debounced autosave. The returned snapshot reflects
// the new state.
func (c *Core) Apply(transform func(trip.Document) trip.Document) trip.Document {
	c.mu.Lock()
	if c.closed {
		doc := c.doc
		c.mu.Unlock()
		return doc
	}
	c.doc = transform(c.doc)
	c.scheduleAutosaveLocked()
	doc := c.doc
	c.mu.Unlock()

	if c.opts.OnChange != nil {
		c.opts.OnChange(doc)
	}
	return doc
}

// scheduleAutosaveLocked arms (or re-arms) the trailing-edge debounce
// timer. An unchanged document never triggers a write.
func (c *Core) scheduleAutosaveLocked() {
	if bytes.Equal(trip.Serialize(c.doc), c.lastPersisted) {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.opts.Debounce, c.flush)
}

// flush performs the debounced write. If a write is still in flight
// (or cooling down) the timer is re-armed rather than dropped, so a
// mutation made during the cooldown is not stranded until the next
// edit.
func (c *Core) flush() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.writeInFlight {
		c.timer = time.AfterFunc(c.opts.Debounce, c.flush)
		c.mu.Unlock()
		return
	}
	raw := trip.Serialize(c.doc)
	if bytes.Equal(raw, c.lastPersisted) {
		c.mu.Unlock()
		return
	}
	c.writeInFlight = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.WriteTimeout)
	err := c.store.Set(ctx, c.opts.Key, raw)
	cancel()

	c.mu.Lock()
	if err != nil {
		// A failed write is dropped; local state stays authoritative
		// and the next mutation will try again.
		log.Printf("reconcile: write failed: %v", err)
		c.writeInFlight = false
		c.mu.Unlock()
		return
	}
	c.lastSelfWrite = time.Now()
	c.lastSavedAt = c.lastSelfWrite
	c.lastPersisted = raw
	time.AfterFunc(c.opts.WriteCooldown, c.endCooldown)
	c.mu.Unlock()

	if c.opts.OnPersist != nil {
		c.opts.OnPersist(raw)
	}
}

func (c *Core) endCooldown() {
	c.mu.Lock()
	c.writeInFlight = false
	if !c.closed && !bytes.Equal(trip.Serialize(c.doc), c.lastPersisted) {
		if c.timer != nil {
			c.timer.Stop()
		}
		c.timer = time.AfterFunc(c.opts.Debounce, c.flush)
	}
	c.mu.Unlock()
}

// OnExternalCandidate considers a document pushed by the change feed.
// Candidates inside the echo window of this client's own last write
// are presumed to be that write reflected back and are discarded. An
// accepted candidate fully replaces the authoritative document; there
// is no field-level merge, and local edits in the race window are
// lost. External updates never re-trigger autosave.
func (c *Core) OnExternalCandidate(ev feed.Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if time.Since(c.lastSelfWrite) < c.opts.EchoWindow {
		c.mu.Unlock()
		return
	}
	candidate := trip.Serialize(ev.Document)
	if bytes.Equal(candidate, trip.Serialize(c.doc)) {
		c.mu.Unlock()
		return
	}
	c.doc = ev.Document
	c.lastPersisted = candidate
	doc := c.doc
	c.mu.Unlock()

	if c.opts.OnChange != nil {
		c.opts.OnChange(doc)
	}
}

// Flush writes the current document immediately if it differs from the
// last persisted state. Used by the explicit save endpoint and on
// shutdown.
func (c *Core) Flush(ctx context.Context) error {
	c.mu.Lock()
	raw := trip.Serialize(c.doc)
	if bytes.Equal(raw, c.lastPersisted) {
		c.mu.Unlock()
		return nil
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()

	err := c.store.Set(ctx, c.opts.Key, raw)

	c.mu.Lock()
	if err == nil {
		c.lastSelfWrite = time.Now()
		c.lastSavedAt = c.lastSelfWrite
		c.lastPersisted = raw
	}
	c.mu.Unlock()

	if err == nil && c.opts.OnPersist != nil {
		c.opts.OnPersist(raw)
	}
	return err
}

// Status reports autosave state for the status endpoint.
type Status struct {
	Dirty         bool      `json:"dirty"`
	WriteInFlight bool      `json:"writeInFlight"`
	LastSavedAt   time.Time `json:"lastSavedAt"`
}

func (c *Core) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Dirty:         !bytes.Equal(trip.Serialize(c.doc), c.lastPersisted),
		WriteInFlight: c.writeInFlight,
		LastSavedAt:   c.lastSavedAt,
	}
}

// Close stops the debounce timer and flushes any unpersisted state.
// After Close the core ignores mutations and feed events.
func (c *Core) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	raw := trip.Serialize(c.doc)
	dirty := !bytes.Equal(raw, c.lastPersisted)
	c.mu.Unlock()

	if !dirty {
		return nil
	}
	return c.store.Set(ctx, c.opts.Key, raw)
}
