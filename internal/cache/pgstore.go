package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"creatorhub/internal/domain"
	"creatorhub/internal/infra"
	"creatorhub/internal/sqlinline"
)

// PGStore persists cache entries in the generation_cache table so that
// several API processes can share completed outputs.
type PGStore struct {
	sql infra.SQLExecutor
}

// NewPGStore wraps a SQL executor (usually *infra.SQLRunner).
func NewPGStore(sql infra.SQLExecutor) *PGStore {
	return &PGStore{sql: sql}
}

func (s *PGStore) Load(ctx context.Context, key domain.CacheKey) (Entry, bool, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectCacheEntry, string(key))
	var (
		raw      []byte
		cachedAt time.Time
	)
	if err := row.Scan(&raw, &cachedAt); err != nil {
		if infra.IsNoRows(err) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("cache: load entry: %w", err)
	}
	var output domain.Output
	if err := json.Unmarshal(raw, &output); err != nil {
		return Entry{}, false, fmt.Errorf("cache: decode output: %w", err)
	}
	return Entry{Key: key, Output: output, CachedAt: cachedAt}, true, nil
}

func (s *PGStore) Save(ctx context.Context, entry Entry) error {
	// Stored as an array so single and multi outputs share one shape.
	raw, err := json.Marshal([]string(entry.Output))
	if err != nil {
		return fmt.Errorf("cache: encode output: %w", err)
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertCacheEntry, string(entry.Key), raw, entry.CachedAt); err != nil {
		return fmt.Errorf("cache: save entry: %w", err)
	}
	return nil
}

// Purge deletes rows older than cutoff.
func (s *PGStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.sql.Exec(ctx, sqlinline.QDeleteExpiredCacheEntries, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache: purge entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ Store = (*PGStore)(nil)
