package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"lsat-session-service/internal/domain"
	"lsat-session-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// TestLibrary caches test documents in Redis (one JSON value per test,
// keyed test:{id}:data) and falls back to a loader on cache miss. Writes go
// through to the loader and refresh the cached copy.
type TestLibrary struct {
	client *redis.Client
	loader memory.TestLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewTestLibrary(client *redis.Client, loader memory.TestLoader, ttl time.Duration) *TestLibrary {
	return &TestLibrary{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (l *TestLibrary) GetTest(ctx context.Context, testID string) (domain.Test, error) {
	key := l.key(testID)

	if raw, err := l.client.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
		var test domain.Test
		if err := json.Unmarshal(raw, &test); err == nil {
			return test, nil
		}
	}

	result, err, _ := l.sf.Do(testID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := l.client.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
			var test domain.Test
			if err := json.Unmarshal(raw, &test); err == nil {
				return test, nil
			}
		}

		test, err := l.loader.LoadTest(ctx, testID)
		if err != nil {
			return domain.Test{}, err
		}
		l.cacheTest(ctx, test)
		return test, nil
	})
	if err != nil {
		return domain.Test{}, err
	}
	return result.(domain.Test), nil
}

func (l *TestLibrary) ListTests(ctx context.Context) ([]domain.Test, error) {
	return l.loader.ListTests(ctx)
}

func (l *TestLibrary) PutTest(ctx context.Context, test domain.Test) error {
	if err := l.loader.StoreTest(ctx, test); err != nil {
		return err
	}
	l.cacheTest(ctx, test)
	return nil
}

func (l *TestLibrary) cacheTest(ctx context.Context, test domain.Test) {
	raw, err := json.Marshal(test)
	if err != nil {
		return
	}
	// best-effort: a cache write failure just means the next read loads again
	_ = l.client.Set(ctx, l.key(test.ID), raw, l.ttlWithJitter()).Err()
}

func (l *TestLibrary) key(testID string) string {
	return "test:" + testID + ":data"
}

func (l *TestLibrary) ttlWithJitter() time.Duration {
	if l.ttl <= 0 {
		return 0
	}
	jitterMax := int64(l.ttl) / 10
	return l.ttl + time.Duration(l.rnd.Int63n(jitterMax+1))
}
