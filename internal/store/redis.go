package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChannelFor returns the pub/sub channel carrying change notifications
// for a document key.
func ChannelFor(key string) string {
	return "trip:changes:" + key
}

// Notification is the message published after every successful write.
// Its shape mirrors the row-change payload the change feed delivers:
// the event kind, the document key, and the full new document.
type Notification struct {
	Event string          `json:"event"` // "created" or "updated"
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RedisStore keeps the document in a Redis string key and publishes a
// change notification after each write.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "trip:doc:"}, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "trip:doc:"}
}

// Client exposes the underlying connection for the feed subscriber,
// which shares it.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) key(documentKey string) string {
	return s.prefix + documentKey
}

// Get fetches the raw document. A missing key is confirmed absence,
// not an error.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get document: %w", err)
	}
	return raw, true, nil
}

// Set upserts the raw document and publishes a created/updated
// notification on the document's change channel.
func (s *RedisStore) Set(ctx context.Context, key string, raw []byte) error {
	existed, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return fmt.Errorf("check document: %w", err)
	}

	if err := s.client.Set(ctx, s.key(key), raw, 0).Err(); err != nil {
		return fmt.Errorf("set document: %w", err)
	}

	event := "updated"
	if existed == 0 {
		event = "created"
	}
	payload, err := json.Marshal(Notification{Event: event, ID: key, Data: raw})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.client.Publish(ctx, ChannelFor(key), payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
