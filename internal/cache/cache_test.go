package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"creatorhub/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[domain.CacheKey]Entry
	saves   int
	loads   int
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[domain.CacheKey]Entry)}
}

func (s *memoryStore) Load(ctx context.Context, key domain.CacheKey) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return Entry{}, false, s.err
	}
	entry, ok := s.entries[key]
	return entry, ok, nil
}

func (s *memoryStore) Save(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.err != nil {
		return s.err
	}
	s.entries[entry.Key] = entry
	return nil
}

func TestPutThenValidUntilExpiry(t *testing.T) {
	clock := newFakeClock()
	c := New(Options{Now: clock.Now})
	key := domain.GenerationRequest{Prompt: "a cat", Provider: "flux"}.CacheKey()

	c.Put(context.Background(), key, domain.Output{"https://x/img.png"})
	if !c.IsValid(key) {
		t.Fatalf("entry should be valid immediately after Put")
	}
	entry, ok := c.Get(key)
	if !ok || entry.Output.First() != "https://x/img.png" {
		t.Fatalf("Get = %#v, %v", entry, ok)
	}

	clock.Advance(DefaultExpiry - time.Second)
	if !c.IsValid(key) {
		t.Fatalf("entry should still be valid inside the window")
	}

	clock.Advance(time.Second)
	if c.IsValid(key) {
		t.Fatalf("entry should expire once the window has elapsed")
	}
	stale, ok := c.Get(key)
	if !ok || stale.Output.First() != "https://x/img.png" {
		t.Fatalf("Get should still return the stale entry, got %#v, %v", stale, ok)
	}
	if _, ok := c.Lookup(context.Background(), key); ok {
		t.Fatalf("Lookup must treat expired entries as absent")
	}
}

func TestPutOverwritesAndRestampsEntry(t *testing.T) {
	clock := newFakeClock()
	c := New(Options{Now: clock.Now, Expiry: time.Minute})
	key := domain.CacheKey("k")

	c.Put(context.Background(), key, domain.Output{"https://x/1.png", "https://x/2.png"})
	clock.Advance(2 * time.Minute)
	c.Put(context.Background(), key, domain.Output{"https://x/3.png"})

	entry, ok := c.Lookup(context.Background(), key)
	if !ok {
		t.Fatalf("overwritten entry should be valid")
	}
	if len(entry.Output) != 1 || entry.Output[0] != "https://x/3.png" {
		t.Fatalf("output not overwritten: %#v", entry.Output)
	}
	if !entry.CachedAt.Equal(clock.Now()) {
		t.Fatalf("CachedAt = %s, want %s", entry.CachedAt, clock.Now())
	}
}

func TestGetReturnsCopies(t *testing.T) {
	c := New(Options{})
	key := domain.CacheKey("k")
	output := domain.Output{"https://x/1.png"}
	c.Put(context.Background(), key, output)
	output[0] = "mutated"

	entry, _ := c.Get(key)
	entry.Output[0] = "mutated again"

	again, _ := c.Get(key)
	if again.Output[0] != "https://x/1.png" {
		t.Fatalf("cache entry was mutated through a returned slice: %#v", again.Output)
	}
}

func TestMissingKeyIsInvalid(t *testing.T) {
	c := New(Options{})
	if c.IsValid("missing") {
		t.Fatalf("missing key reported valid")
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatalf("missing key returned an entry")
	}
}

func TestDistinctKeysDoNotCollide(t *testing.T) {
	c := New(Options{})
	plain := domain.GenerationRequest{Prompt: "a cat", Provider: "flux"}.CacheKey()
	negative := domain.GenerationRequest{Prompt: "a cat", NegativePrompt: "dog", Provider: "flux"}.CacheKey()

	c.Put(context.Background(), plain, domain.Output{"https://x/plain.png"})
	if c.IsValid(negative) {
		t.Fatalf("negative prompt variant should not hit the plain entry")
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestSweepRemovesEntriesPastRetention(t *testing.T) {
	c := New(Options{Expiry: 20 * time.Millisecond, StaleFor: 0, SweepInterval: 10 * time.Millisecond})
	c.Put(context.Background(), "k", domain.Output{"https://x/1.png"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := c.Get("k"); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("entry was not swept")
}

func TestStoreWriteThroughAndReadThrough(t *testing.T) {
	clock := newFakeClock()
	store := newMemoryStore()
	writer := New(Options{Now: clock.Now, Store: store})
	key := domain.CacheKey("shared")
	writer.Put(context.Background(), key, domain.Output{"https://x/shared.png"})
	if store.saves != 1 {
		t.Fatalf("saves = %d, want 1", store.saves)
	}

	reader := New(Options{Now: clock.Now, Store: store})
	entry, ok := reader.Lookup(context.Background(), key)
	if !ok || entry.Output.First() != "https://x/shared.png" {
		t.Fatalf("read-through failed: %#v, %v", entry, ok)
	}
	if !reader.IsValid(key) {
		t.Fatalf("read-through entry should be promoted into memory")
	}
	loads := store.loads
	if _, ok := reader.Lookup(context.Background(), key); !ok {
		t.Fatalf("second lookup should hit memory")
	}
	if store.loads != loads {
		t.Fatalf("second lookup should not reach the store")
	}
}

func TestStoreEntriesRespectExpiry(t *testing.T) {
	clock := newFakeClock()
	store := newMemoryStore()
	store.entries["old"] = Entry{Key: "old", Output: domain.Output{"https://x/old.png"}, CachedAt: clock.Now().Add(-2 * time.Hour)}

	c := New(Options{Now: clock.Now, Store: store})
	if _, ok := c.Lookup(context.Background(), "old"); ok {
		t.Fatalf("expired stored entry must be treated as absent")
	}
}

func TestStoreErrorsAreNotFatal(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("db down")
	c := New(Options{Store: store})

	c.Put(context.Background(), "k", domain.Output{"https://x/1.png"})
	if !c.IsValid("k") {
		t.Fatalf("memory entry should survive a store failure")
	}
	if _, ok := c.Lookup(context.Background(), "other"); ok {
		t.Fatalf("store failure should read as a miss")
	}
}
