package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// KeyPrefix namespaces every response cached by game-feed.
const KeyPrefix = "game-feed/"

// DefaultTTL is applied when a caller does not configure an expiration.
const DefaultTTL = 24 * time.Hour

// Store is a key-addressed blob store with per-key expiration.
// Get never reports an entry past its expiration as a hit.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key returns the cache key for a request URL: the fixed prefix followed by
// the hex SHA-256 digest of the literal URL string.
func Key(url string) string {
	hash := sha256.Sum256([]byte(url))
	return KeyPrefix + hex.EncodeToString(hash[:])
}
