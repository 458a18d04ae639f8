package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/cudev/game-feed/app/cache"
)

// Fetcher returns the raw body behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// CacheFetcher fetches over HTTP, optionally through a cache store. Without
// a store every call goes to the network. With a store, unexpired entries are
// returned as-is and misses are fetched and written back with the configured
// TTL. Hits never extend an entry's lifetime.
type CacheFetcher struct {
	client HTTPClient
	store  cache.Store
	ttl    time.Duration
}

var _ Fetcher = (*CacheFetcher)(nil)

// NewCacheFetcher builds a fetcher. store may be nil; a non-positive ttl
// falls back to cache.DefaultTTL.
func NewCacheFetcher(client HTTPClient, store cache.Store, ttl time.Duration) *CacheFetcher {
	if client == nil {
		client = NewHTTPClient(0, "")
	}
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &CacheFetcher{
		client: client,
		store:  store,
		ttl:    ttl,
	}
}

func (f *CacheFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.store == nil {
		return f.get(ctx, url)
	}

	key := cache.Key(url)

	data, hit, err := f.store.Get(ctx, key)
	if err != nil {
		// An unreadable cache degrades to a network fetch.
		slog.Warn("Cache read failed", "url", url, "key", key, "error", err)
	} else if hit {
		slog.Debug("Cache hit", "url", url, "key", key)
		return data, nil
	}

	data, err = f.get(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := f.store.Set(ctx, key, data, f.ttl); err != nil {
		slog.Warn("Cache write failed", "url", url, "key", key, "error", err)
	} else {
		slog.Debug("Cache miss, response stored", "url", url, "key", key, "ttl", f.ttl.String())
	}

	return data, nil
}

func (f *CacheFetcher) get(ctx context.Context, url string) ([]byte, error) {
	data, err := f.client.Get(ctx, url)
	if err != nil {
		if IsTransportError(err) {
			return nil, err
		}
		return nil, &TransportError{URL: url, Err: err}
	}
	return data, nil
}
