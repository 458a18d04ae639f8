package feed

import (
	"fmt"
	"sync"
	"time"

	"github.com/cudev/game-feed/app/cache"
)

// Catalog builds and keeps one Retriever per configured source. Retrievers
// are immutable, so a single instance per source is shared by every caller.
type Catalog struct {
	configCache *ConfigCache
	store       cache.Store
	ttl         time.Duration
	userAgent   string

	mu         sync.Mutex
	retrievers map[string]*Retriever
}

// NewCatalog serves the sources of configCache. Every retriever fetches
// through store (which may be nil) with ttl as the default lifetime.
func NewCatalog(configCache *ConfigCache, store cache.Store, ttl time.Duration, userAgent string) *Catalog {
	return &Catalog{
		configCache: configCache,
		store:       store,
		ttl:         ttl,
		userAgent:   userAgent,
		retrievers:  make(map[string]*Retriever),
	}
}

// Retriever returns the retriever of one enabled source. Disabled sources
// fail with ErrSourceDisabled.
func (c *Catalog) Retriever(sourceName string) (*Retriever, error) {
	sourceConfig, err := c.configCache.GetConfig(sourceName)
	if err != nil {
		return nil, err
	}
	if !sourceConfig.Settings.Enabled {
		return nil, fmt.Errorf("source %s: %w", sourceName, ErrSourceDisabled)
	}
	return c.retriever(sourceConfig)
}

// Retrievers returns the retrievers of all enabled sources in declaration
// order.
func (c *Catalog) Retrievers() ([]*Retriever, error) {
	configs := c.configCache.GetEnabledConfigs()

	retrievers := make([]*Retriever, 0, len(configs))
	for _, sourceConfig := range configs {
		retriever, err := c.retriever(sourceConfig)
		if err != nil {
			return nil, err
		}
		retrievers = append(retrievers, retriever)
	}
	return retrievers, nil
}

// Games returns a fresh aggregate over all enabled sources.
func (c *Catalog) Games(opts ...GamesOption) (*Games, error) {
	retrievers, err := c.Retrievers()
	if err != nil {
		return nil, err
	}
	return NewGames(retrievers, opts...), nil
}

func (c *Catalog) retriever(sourceConfig *SourceConfig) (*Retriever, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if retriever, ok := c.retrievers[sourceConfig.Name]; ok {
		return retriever, nil
	}

	retriever, err := BuildRetriever(sourceConfig,
		WithHTTPClient(NewHTTPClient(sourceConfig.Timeout(), c.userAgent)),
		WithCache(c.store),
		WithCacheTTL(c.ttl),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build retriever: %w", err)
	}

	c.retrievers[sourceConfig.Name] = retriever
	return retriever, nil
}

// Invalidate drops built retrievers so the next call rebuilds them from the
// current configuration.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retrievers = make(map[string]*Retriever)
}
