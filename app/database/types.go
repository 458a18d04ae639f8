package database

import (
	"time"
)

type Source struct {
	Name          string // Configuration source identifier derived from filename
	Type          string // xml or json
	URL           string
	Enabled       bool
	Order         int
	DeclaredCount *int       // Last count reported by the source
	LastCountedAt *time.Time // Last successful count
	LastError     string     // Error of the last count attempt, empty on success
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CacheStats struct {
	Entries int
	Expired int
	Bytes   int64
}
