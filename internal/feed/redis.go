package feed

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"tripboard/api/internal/store"
	"tripboard/api/internal/trip"
)

// RedisSubscriber listens on the document's pub/sub channel. The
// published notification embeds the full new document, so no re-fetch
// is needed.
type RedisSubscriber struct {
	client  *redis.Client
	key     string
	handler Handler
}

func NewRedisSubscriber(client *redis.Client, key string, handler Handler) *RedisSubscriber {
	return &RedisSubscriber{client: client, key: key, handler: handler}
}

// Run blocks delivering events until ctx is cancelled. After Run
// returns no further handler calls are made.
func (s *RedisSubscriber) Run(ctx context.Context) {
	sub := s.client.Subscribe(ctx, store.ChannelFor(s.key))
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.dispatch([]byte(msg.Payload))
		}
	}
}

func (s *RedisSubscriber) dispatch(payload []byte) {
	var n store.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		log.Printf("feed: malformed notification: %v", err)
		return
	}
	if n.ID != s.key {
		return
	}
	doc, err := trip.Decode(n.Data)
	if err != nil {
		log.Printf("feed: malformed document in notification: %v", err)
		return
	}
	kind := EventUpdated
	if n.Event == string(EventCreated) {
		kind = EventCreated
	}
	s.handler(Event{Kind: kind, Document: doc})
}
