// Package cache memoizes completed generation outputs for a fixed expiry
// window, keyed by the request fingerprint.
package cache

import (
	"context"
	"io"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"creatorhub/internal/domain"
	"creatorhub/internal/infra"
)

// DefaultExpiry is how long a cached output stays valid.
const DefaultExpiry = time.Hour

// Entry is a cached output. CachedAt is stamped by the cache.
type Entry struct {
	Key      domain.CacheKey
	Output   domain.Output
	CachedAt time.Time
}

// Store is an optional durable layer behind the in-memory map.
type Store interface {
	Load(ctx context.Context, key domain.CacheKey) (Entry, bool, error)
	Save(ctx context.Context, entry Entry) error
}

// Options configures a ResultCache.
type Options struct {
	// Expiry is the validity window measured from CachedAt.
	Expiry time.Duration
	// StaleFor keeps expired entries readable through Get for this long
	// before the sweep removes them. Only used when SweepInterval > 0.
	StaleFor time.Duration
	// SweepInterval enables periodic removal of entries older than
	// Expiry+StaleFor. Zero keeps entries until overwritten.
	SweepInterval time.Duration
	Now           func() time.Time
	Store         Store
	StoreTimeout  time.Duration
	Logger        *infra.Logger
}

// ResultCache is safe for concurrent use. Expired entries are treated as
// absent by IsValid and Lookup but are still returned by Get.
type ResultCache struct {
	items        *gocache.Cache
	expiry       time.Duration
	retention    time.Duration
	now          func() time.Time
	store        Store
	storeTimeout time.Duration
	logger       *infra.Logger
}

// New builds a ResultCache from opts, applying defaults.
func New(opts Options) *ResultCache {
	expiry := opts.Expiry
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	retention := time.Duration(gocache.NoExpiration)
	cleanup := time.Duration(0)
	if opts.SweepInterval > 0 {
		stale := opts.StaleFor
		if stale < 0 {
			stale = 0
		}
		retention = expiry + stale
		cleanup = opts.SweepInterval
	}
	storeTimeout := opts.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &ResultCache{
		items:        gocache.New(retention, cleanup),
		expiry:       expiry,
		retention:    retention,
		now:          now,
		store:        opts.Store,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// Expiry returns the configured validity window.
func (c *ResultCache) Expiry() time.Duration {
	return c.expiry
}

// IsValid reports whether key has an entry younger than the expiry window.
func (c *ResultCache) IsValid(key domain.CacheKey) bool {
	entry, ok := c.get(key)
	return ok && c.fresh(entry)
}

// Get returns the entry for key regardless of validity. Callers that need
// a usable result check IsValid first or use Lookup.
func (c *ResultCache) Get(key domain.CacheKey) (Entry, bool) {
	entry, ok := c.get(key)
	if !ok {
		return Entry{}, false
	}
	entry.Output = entry.Output.Clone()
	return entry, true
}

// Put stores output under key, overwriting any previous entry. The durable
// store is written on a best-effort basis.
func (c *ResultCache) Put(ctx context.Context, key domain.CacheKey, output domain.Output) Entry {
	entry := Entry{Key: key, Output: output.Clone(), CachedAt: c.now()}
	c.items.Set(string(key), entry, gocache.DefaultExpiration)
	if c.store != nil {
		storeCtx, cancel := context.WithTimeout(ctx, c.storeTimeout)
		defer cancel()
		if err := c.store.Save(storeCtx, entry); err != nil {
			c.logger.Warn().Err(err).Msg("cache: persist entry failed")
		}
	}
	entry.Output = entry.Output.Clone()
	return entry
}

// Lookup returns a valid entry for key. The validity check runs on the same
// entry that is returned. On a miss the durable store is consulted and a
// valid stored entry is promoted into memory.
func (c *ResultCache) Lookup(ctx context.Context, key domain.CacheKey) (Entry, bool) {
	if entry, ok := c.get(key); ok && c.fresh(entry) {
		entry.Output = entry.Output.Clone()
		return entry, true
	}
	if c.store == nil {
		return Entry{}, false
	}
	storeCtx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()
	entry, ok, err := c.store.Load(storeCtx, key)
	if err != nil {
		c.logger.Warn().Err(err).Msg("cache: load entry failed")
		return Entry{}, false
	}
	if !ok || !c.fresh(entry) {
		return Entry{}, false
	}
	entry.Key = key
	c.items.Set(string(key), entry, c.remaining(entry))
	entry.Output = entry.Output.Clone()
	return entry, true
}

// Len reports resident entries, including expired ones not yet swept.
func (c *ResultCache) Len() int {
	return c.items.ItemCount()
}

func (c *ResultCache) get(key domain.CacheKey) (Entry, bool) {
	v, ok := c.items.Get(string(key))
	if !ok {
		return Entry{}, false
	}
	entry, ok := v.(Entry)
	return entry, ok
}

func (c *ResultCache) fresh(entry Entry) bool {
	return c.now().Sub(entry.CachedAt) < c.expiry
}

// remaining is the go-cache TTL for an entry promoted from the store, so it
// is swept on the same schedule as if it had been put locally.
func (c *ResultCache) remaining(entry Entry) time.Duration {
	if c.retention < 0 {
		return gocache.NoExpiration
	}
	left := c.retention - c.now().Sub(entry.CachedAt)
	if left < time.Second {
		left = time.Second
	}
	return left
}
