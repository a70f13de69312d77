package checkpoint

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// redisKey is the set holding completed package names. A single logical
// corpus is assumed per redis database; operators running multiple corpora
// point them at different databases in the URI.
const redisKey = "opamsnap:checkpoint"

// RedisStore keeps the completed set in a redis SET. Every MarkDone is a
// remote write, so Flush has nothing left to do; the local mirror only
// serves IsDone without a round trip per package.
type RedisStore struct {
	mu     sync.Mutex
	done   map[string]struct{}
	client *redis.Client
}

// NewRedisStore connects using a redis:// or rediss:// URI and loads the
// completed set. A reachable-but-empty database loads as empty state; a
// connection failure is an error, since silently dropping resume state on a
// live backend would cause a full reprocess on every run.
func NewRedisStore(ctx context.Context, uri string) (*RedisStore, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	names, err := client.SMembers(ctx, redisKey).Result()
	if err != nil {
		client.Close()
		return nil, err
	}

	done := make(map[string]struct{}, len(names))
	for _, n := range names {
		done[n] = struct{}{}
	}
	return &RedisStore{done: done, client: client}, nil
}

// IsDone reports membership against the loaded mirror.
func (s *RedisStore) IsDone(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.done[name]
	return ok
}

// MarkDone adds name to the remote set and the local mirror.
func (s *RedisStore) MarkDone(ctx context.Context, name string) error {
	s.mu.Lock()
	if _, ok := s.done[name]; ok {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.client.SAdd(ctx, redisKey, name).Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.done[name] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Len returns the size of the completed set.
func (s *RedisStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.done)
}

// Flush is a no-op; every MarkDone already reached redis.
func (s *RedisStore) Flush(context.Context) error { return nil }

// Close releases the redis connection.
func (s *RedisStore) Close() error { return s.client.Close() }

var _ Store = (*RedisStore)(nil)
