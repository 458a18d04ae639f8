package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/cudev/game-feed/app/cache"
)

// CacheRepository is a cache.Store backed by the cache_entries table.
// Expired rows are treated as misses and left in place.
type CacheRepository struct {
	db  *DB
	now func() time.Time
}

var _ cache.Store = (*CacheRepository)(nil)

func NewCacheRepository(db *DB) *CacheRepository {
	return &CacheRepository{db: db, now: time.Now}
}

func (r *CacheRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query, args, err := sq.Select("value").
		From("cache_entries").
		Where(sq.Eq{"key": key}).
		Where(sq.Gt{"expires_at": r.now().UnixMilli()}).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("failed to build cache query: %w", err)
	}

	var value []byte
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	return value, true, nil
}

func (r *CacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}

	now := r.now()
	query, args, err := sq.Insert("cache_entries").
		Columns("key", "value", "expires_at", "created_at").
		Values(key, value, now.Add(ttl).UnixMilli(), now.UnixMilli()).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at, created_at = excluded.created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build cache upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	return nil
}

// GetStats reports the number of rows, how many of them are expired and the
// total payload size.
func (r *CacheRepository) GetStats(ctx context.Context) (*CacheStats, error) {
	query, args, err := sq.Select("COUNT(*)").
		Column(sq.Expr("COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0)", r.now().UnixMilli())).
		Column("COALESCE(SUM(LENGTH(value)), 0)").
		From("cache_entries").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build cache stats query: %w", err)
	}

	var stats CacheStats
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&stats.Entries, &stats.Expired, &stats.Bytes); err != nil {
		return nil, fmt.Errorf("failed to get cache stats: %w", err)
	}

	return &stats, nil
}
