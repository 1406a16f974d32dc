package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"lsat-session-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// TestLoader fetches test documents from a backing store (e.g., Postgres).
type TestLoader interface {
	LoadTest(ctx context.Context, testID string) (domain.Test, error)
	ListTests(ctx context.Context) ([]domain.Test, error)
	StoreTest(ctx context.Context, test domain.Test) error
}

// TestLibrary caches loaded tests with TTL to avoid repeated store hits.
// Writes go through to the loader and refresh the cache.
type TestLibrary struct {
	loader TestLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedTest
}

type cachedTest struct {
	test      domain.Test
	expiresAt time.Time
}

func NewTestLibrary(loader TestLoader, ttl time.Duration) *TestLibrary {
	return &TestLibrary{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedTest),
	}
}

func (l *TestLibrary) GetTest(ctx context.Context, testID string) (domain.Test, error) {
	now := l.clock()

	l.mu.RLock()
	if entry, ok := l.cache[testID]; ok && entry.expiresAt.After(now) {
		l.mu.RUnlock()
		return domain.CloneTest(entry.test), nil
	}
	l.mu.RUnlock()

	result, err, _ := l.sf.Do(testID, func() (interface{}, error) {
		now := l.clock()
		l.mu.RLock()
		if entry, ok := l.cache[testID]; ok && entry.expiresAt.After(now) {
			l.mu.RUnlock()
			return entry.test, nil
		}
		l.mu.RUnlock()

		test, err := l.loader.LoadTest(ctx, testID)
		if err != nil {
			return domain.Test{}, err
		}

		l.mu.Lock()
		l.cache[testID] = cachedTest{
			test:      test,
			expiresAt: now.Add(l.ttlWithJitter()),
		}
		l.mu.Unlock()
		return test, nil
	})
	if err != nil {
		return domain.Test{}, err
	}
	return domain.CloneTest(result.(domain.Test)), nil
}

func (l *TestLibrary) ListTests(ctx context.Context) ([]domain.Test, error) {
	return l.loader.ListTests(ctx)
}

func (l *TestLibrary) PutTest(ctx context.Context, test domain.Test) error {
	if err := l.loader.StoreTest(ctx, test); err != nil {
		return err
	}
	l.mu.Lock()
	l.cache[test.ID] = cachedTest{
		test:      domain.CloneTest(test),
		expiresAt: l.clock().Add(l.ttlWithJitter()),
	}
	l.mu.Unlock()
	return nil
}

func (l *TestLibrary) ttlWithJitter() time.Duration {
	if l.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(l.ttl) / 10
	return l.ttl + time.Duration(l.rnd.Int63n(jitterMax+1))
}

// StaticTestLoader is a loader backed by an in-memory map (useful for tests/demos).
type StaticTestLoader struct {
	mu    sync.RWMutex
	tests map[string]domain.Test
}

func NewStaticTestLoader(tests map[string]domain.Test) *StaticTestLoader {
	if tests == nil {
		tests = make(map[string]domain.Test)
	}
	return &StaticTestLoader{tests: tests}
}

func (l *StaticTestLoader) LoadTest(_ context.Context, testID string) (domain.Test, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if test, ok := l.tests[testID]; ok {
		return domain.CloneTest(test), nil
	}
	return domain.Test{}, domain.ErrTestNotFound
}

func (l *StaticTestLoader) ListTests(_ context.Context) ([]domain.Test, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Test, 0, len(l.tests))
	for _, test := range l.tests {
		out = append(out, domain.CloneTest(test))
	}
	return out, nil
}

func (l *StaticTestLoader) StoreTest(_ context.Context, test domain.Test) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tests[test.ID] = domain.CloneTest(test)
	return nil
}
