// Package feed delivers change notifications for the one watched
// document key. Each event carries a candidate external document; the
// reconciliation core decides whether to accept it.
package feed

import "tripboard/api/internal/trip"

// EventKind mirrors the row-level change kinds the store emits.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
)

// Event is one candidate external update. The document has already
// passed activity coercion; nothing else is normalized on this path.
type Event struct {
	Kind     EventKind
	Document trip.Document
}

// Handler consumes events. It is called from the subscriber's own
// goroutine, one event at a time.
type Handler func(Event)
