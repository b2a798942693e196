package feed

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"tripboard/api/internal/store"
	"tripboard/api/internal/trip"
)

// PostgresSubscriber listens on the trip_data NOTIFY channel. NOTIFY
// payloads carry only the event kind and key, so the subscriber
// re-fetches the document through the store on each notification.
type PostgresSubscriber struct {
	databaseURL string
	key         string
	fetch       store.Store
	handler     Handler
}

func NewPostgresSubscriber(databaseURL, key string, fetch store.Store, handler Handler) *PostgresSubscriber {
	return &PostgresSubscriber{databaseURL: databaseURL, key: key, fetch: fetch, handler: handler}
}

// Run blocks delivering events until ctx is cancelled. A dropped
// listen connection is reopened after a short delay.
func (s *PostgresSubscriber) Run(ctx context.Context) {
	for {
		if err := s.listen(ctx); err != nil && ctx.Err() == nil {
			log.Printf("feed: listen connection lost, reconnecting: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (s *PostgresSubscriber) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, s.databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+store.NotifyChannel); err != nil {
		return err
	}

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.dispatch(ctx, []byte(notification.Payload))
	}
}

func (s *PostgresSubscriber) dispatch(ctx context.Context, payload []byte) {
	var n store.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		log.Printf("feed: malformed notification: %v", err)
		return
	}
	if n.ID != s.key {
		return
	}

	raw, ok, err := s.fetch.Get(ctx, s.key)
	if err != nil || !ok {
		log.Printf("feed: fetch after notification failed (present=%v): %v", ok, err)
		return
	}
	doc, err := trip.Decode(raw)
	if err != nil {
		log.Printf("feed: malformed document in store: %v", err)
		return
	}
	kind := EventUpdated
	if n.Event == string(EventCreated) {
		kind = EventCreated
	}
	s.handler(Event{Kind: kind, Document: doc})
}
