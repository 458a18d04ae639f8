package feed

import (
	"time"
)

// Normalized game types

type Game struct {
	GUID        string
	Source      string
	Title       string
	Link        string
	Description string
	ImageURL    string
	PublishedAt *time.Time
	Authors     []string // "email (name)" or "name"
	Categories  []string

	ContentHash  string
	IsFiltered   bool
	FilterReason string
}

// Configuration types

type SourceConfig struct {
	Name       string            // Derived from filename (without .yml extension)
	Type       SourceType        `yaml:"type"`
	URL        string            `yaml:"url"`
	Order      int               `yaml:"order"`
	Normalizer string            `yaml:"normalizer"`
	Fields     map[string]string `yaml:"fields"` // game field -> dotted path in a JSON entry
	XML        XMLSettings       `yaml:"xml"`
	JSON       JSONSettings      `yaml:"json"`
	Settings   SourceSettings    `yaml:"settings"`
	Filters    []ConfigFilter    `yaml:"filters"`
}

type XMLSettings struct {
	Channel string `yaml:"channel"`
	Item    string `yaml:"item"`
}

type JSONSettings struct {
	Params          map[string]string `yaml:"params"`
	PageParam       string            `yaml:"page_param"`
	StartPage       int               `yaml:"start_page"`
	EntriesKey      string            `yaml:"entries_key"`
	TotalPagesKey   string            `yaml:"total_pages_key"`
	TotalEntriesKey string            `yaml:"total_entries_key"`
	IDKey           string            `yaml:"id_key"`
}

type SourceSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	Timeout         int  `yaml:"timeout"`          // seconds
	CacheTTL        int  `yaml:"cache_ttl"`        // seconds, 0 uses the process default
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

func (c *SourceConfig) Timeout() time.Duration {
	return time.Duration(c.Settings.Timeout) * time.Second
}

func (c *SourceConfig) CacheTTL() time.Duration {
	return time.Duration(c.Settings.CacheTTL) * time.Second
}

func (c *SourceConfig) RefreshInterval() time.Duration {
	return time.Duration(c.Settings.RefreshInterval) * time.Second
}
