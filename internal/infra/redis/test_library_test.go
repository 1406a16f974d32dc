package redis_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"lsat-session-service/internal/domain"
	"lsat-session-service/internal/infra/memory"
	redisinfra "lsat-session-service/internal/infra/redis"
)

type countingLoader struct {
	inner *memory.StaticTestLoader
	loads int64
}

func (c *countingLoader) LoadTest(ctx context.Context, testID string) (domain.Test, error) {
	atomic.AddInt64(&c.loads, 1)
	return c.inner.LoadTest(ctx, testID)
}

func (c *countingLoader) ListTests(ctx context.Context) ([]domain.Test, error) {
	return c.inner.ListTests(ctx)
}

func (c *countingLoader) StoreTest(ctx context.Context, test domain.Test) error {
	return c.inner.StoreTest(ctx, test)
}

func TestLibraryCachesInRedis(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)

	loader := &countingLoader{inner: memory.NewStaticTestLoader(map[string]domain.Test{
		"pt1": {ID: "pt1", Name: "PrepTest 1", Type: domain.TestTypeRC},
	})}
	lib := redisinfra.NewTestLibrary(client, loader, time.Minute)

	for i := 0; i < 3; i++ {
		test, err := lib.GetTest(ctx, "pt1")
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if test.Name != "PrepTest 1" {
			t.Fatalf("unexpected test: %+v", test)
		}
	}
	if n := atomic.LoadInt64(&loader.loads); n != 1 {
		t.Fatalf("expected a single backing load, got %d", n)
	}

	raw, err := mr.Get("test:pt1:data")
	if err != nil {
		t.Fatalf("expected cached value in redis: %v", err)
	}
	var cached domain.Test
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		t.Fatalf("cached value is not valid JSON: %v", err)
	}
	if cached.Type != domain.TestTypeRC {
		t.Fatalf("cached test lost its type: %+v", cached)
	}
}

func TestLibraryExpiredKeyReloads(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)

	loader := &countingLoader{inner: memory.NewStaticTestLoader(map[string]domain.Test{
		"pt1": {ID: "pt1", Name: "PrepTest 1"},
	})}
	lib := redisinfra.NewTestLibrary(client, loader, time.Minute)

	if _, err := lib.GetTest(ctx, "pt1"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := lib.GetTest(ctx, "pt1"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if n := atomic.LoadInt64(&loader.loads); n != 2 {
		t.Fatalf("expected a reload after TTL expiry, got %d loads", n)
	}
}

func TestLibraryPutRefreshesCache(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)

	loader := &countingLoader{inner: memory.NewStaticTestLoader(nil)}
	lib := redisinfra.NewTestLibrary(client, loader, time.Minute)

	if err := lib.PutTest(ctx, domain.Test{ID: "pt2", Name: "PrepTest 2"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !mr.Exists("test:pt2:data") {
		t.Fatalf("expected put to prime the cache")
	}

	test, err := lib.GetTest(ctx, "pt2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if test.Name != "PrepTest 2" {
		t.Fatalf("unexpected test: %+v", test)
	}
	if n := atomic.LoadInt64(&loader.loads); n != 0 {
		t.Fatalf("expected cache hit after put, got %d loads", n)
	}
}

func TestLibraryCorruptCacheFallsBack(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)

	loader := &countingLoader{inner: memory.NewStaticTestLoader(map[string]domain.Test{
		"pt3": {ID: "pt3", Name: "PrepTest 3"},
	})}
	lib := redisinfra.NewTestLibrary(client, loader, time.Minute)

	if err := mr.Set("test:pt3:data", "{not json"); err != nil {
		t.Fatalf("seed corrupt value: %v", err)
	}

	test, err := lib.GetTest(ctx, "pt3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if test.Name != "PrepTest 3" {
		t.Fatalf("expected loader fallback, got %+v", test)
	}
	if n := atomic.LoadInt64(&loader.loads); n != 1 {
		t.Fatalf("expected one backing load, got %d", n)
	}
}

func TestLibraryMissPropagates(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)

	loader := &countingLoader{inner: memory.NewStaticTestLoader(nil)}
	lib := redisinfra.NewTestLibrary(client, loader, time.Minute)

	if _, err := lib.GetTest(ctx, "ghost"); err != domain.ErrTestNotFound {
		t.Fatalf("expected ErrTestNotFound, got %v", err)
	}
}
