package feed

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSourceFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestConfigCacheLoadValidConfig(t *testing.T) {
	tempDir := t.TempDir()

	writeSourceFile(t, tempDir, "spilgames", `
type: json
url: "https://publishers.example.com/api/games"
order: 2

json:
  params:
    limit: "100"
    format: json
  page_param: page
  start_page: 1

fields:
  title: title
  link: gameURL

settings:
  enabled: true
  refresh_interval: 1800
  timeout: 15
  cache_ttl: 600

filters:
  - field: "title"
    excludes:
      - "casino"
`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	if configCache.GetConfigCount() != 1 {
		t.Errorf("Expected 1 sourceConfig, got %d", configCache.GetConfigCount())
	}

	sourceConfig, err := configCache.GetConfig("spilgames")
	if err != nil {
		t.Fatal(err)
	}

	if sourceConfig.Name != "spilgames" {
		t.Errorf("Expected name 'spilgames', got '%s'", sourceConfig.Name)
	}
	if sourceConfig.Type != SourceTypeJSON {
		t.Errorf("Expected type json, got '%s'", sourceConfig.Type)
	}
	if sourceConfig.Normalizer != NormalizerJSON {
		t.Errorf("Expected default normalizer json, got '%s'", sourceConfig.Normalizer)
	}
	if sourceConfig.JSON.Params["limit"] != "100" {
		t.Errorf("Expected limit param 100, got '%s'", sourceConfig.JSON.Params["limit"])
	}
	if sourceConfig.RefreshInterval() != 1800*time.Second {
		t.Errorf("Expected refresh interval 1800s, got %v", sourceConfig.RefreshInterval())
	}
	if sourceConfig.Timeout() != 15*time.Second {
		t.Errorf("Expected timeout 15s, got %v", sourceConfig.Timeout())
	}
	if sourceConfig.CacheTTL() != 600*time.Second {
		t.Errorf("Expected cache ttl 600s, got %v", sourceConfig.CacheTTL())
	}
	if len(sourceConfig.Filters) != 1 {
		t.Errorf("Expected 1 filter, got %d", len(sourceConfig.Filters))
	}
}

func TestConfigCacheLoadConfigWithDefaults(t *testing.T) {
	tempDir := t.TempDir()

	writeSourceFile(t, tempDir, "arcade", `
type: xml
url: "https://example.com/feed.xml"
`)

	configCache := NewConfigCache(tempDir)
	sourceConfig, err := configCache.LoadConfig("arcade")
	if err != nil {
		t.Fatal(err)
	}

	if sourceConfig.Normalizer != NormalizerRSS {
		t.Errorf("Expected default normalizer rss, got '%s'", sourceConfig.Normalizer)
	}
	if sourceConfig.RefreshInterval() != 3600*time.Second {
		t.Errorf("Expected default refresh interval 3600s, got %v", sourceConfig.RefreshInterval())
	}
	if sourceConfig.Timeout() != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", sourceConfig.Timeout())
	}
	if sourceConfig.CacheTTL() != 0 {
		t.Errorf("Expected no source cache ttl, got %v", sourceConfig.CacheTTL())
	}
	if sourceConfig.Settings.Enabled {
		t.Error("Expected sources to be disabled unless enabled explicitly")
	}
}

func TestConfigCacheInvalidConfig(t *testing.T) {
	tempDir := t.TempDir()

	// Missing source URL
	writeSourceFile(t, tempDir, "invalid", `
type: xml
settings:
  enabled: true
`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err == nil {
		t.Error("Expected error for invalid sourceConfig")
	}
}

func TestConfigCacheMissingDirectory(t *testing.T) {
	configCache := NewConfigCache(filepath.Join(t.TempDir(), "missing"))
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	if configCache.GetConfigCount() != 0 {
		t.Errorf("Expected 0 sourceConfigs, got %d", configCache.GetConfigCount())
	}
}

func TestConfigCacheEnabledConfigsOrdered(t *testing.T) {
	tempDir := t.TempDir()

	writeSourceFile(t, tempDir, "b-feed", "type: xml\nurl: https://b.example.com/feed\norder: 1\nsettings:\n  enabled: true\n")
	writeSourceFile(t, tempDir, "a-feed", "type: xml\nurl: https://a.example.com/feed\norder: 1\nsettings:\n  enabled: true\n")
	writeSourceFile(t, tempDir, "first", "type: json\nurl: https://api.example.com/games\norder: 0\nsettings:\n  enabled: true\n")
	writeSourceFile(t, tempDir, "disabled", "type: xml\nurl: https://c.example.com/feed\nsettings:\n  enabled: false\n")

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	enabled := configCache.GetEnabledConfigs()
	if len(enabled) != 3 {
		t.Fatalf("Expected 3 enabled sources, got %d", len(enabled))
	}

	expected := []string{"first", "a-feed", "b-feed"}
	for i, name := range expected {
		if enabled[i].Name != name {
			t.Errorf("Position %d: expected %s, got %s", i, name, enabled[i].Name)
		}
	}

	configs := configCache.GetConfigs()
	delete(configs, "first")
	if configCache.GetConfigCount() != 4 {
		t.Error("Modifying returned configs map affected the cache")
	}
}

func TestConfigCacheGetConfigNotFound(t *testing.T) {
	configCache := NewConfigCache(t.TempDir())

	if _, err := configCache.GetConfig("missing"); err == nil {
		t.Error("Expected error for unknown source")
	}
}

// Validation tests

func validSourceConfig() *SourceConfig {
	return &SourceConfig{
		Name:       "test-source",
		Type:       SourceTypeXML,
		URL:        "https://example.com/feed.xml",
		Normalizer: NormalizerRSS,
	}
}

func TestConfigCacheValidateConfigNil(t *testing.T) {
	configCache := NewConfigCache("")
	if err := configCache.validateConfig(nil); err == nil {
		t.Error("Expected error for nil sourceConfig, got none")
	}
}

func TestConfigCacheValidateConfig(t *testing.T) {
	configCache := NewConfigCache("")

	if err := configCache.validateConfig(validSourceConfig()); err != nil {
		t.Fatalf("Expected valid config, got: %v", err)
	}

	invalid := map[string]func(*SourceConfig){
		"empty name":          func(c *SourceConfig) { c.Name = "" },
		"empty url":           func(c *SourceConfig) { c.URL = "" },
		"relative url":        func(c *SourceConfig) { c.URL = "/feed.xml" },
		"ftp url":             func(c *SourceConfig) { c.URL = "ftp://example.com/feed.xml" },
		"unknown type":        func(c *SourceConfig) { c.Type = "csv" },
		"negative timeout":    func(c *SourceConfig) { c.Settings.Timeout = -1 },
		"negative cache ttl":  func(c *SourceConfig) { c.Settings.CacheTTL = -1 },
		"negative start page": func(c *SourceConfig) { c.JSON.StartPage = -1 },
		"unknown normalizer":  func(c *SourceConfig) { c.Normalizer = "html" },
		"json normalizer":     func(c *SourceConfig) { c.Normalizer = NormalizerJSON },
		"filters without game": func(c *SourceConfig) {
			c.Normalizer = NormalizerNone
			c.Filters = []ConfigFilter{{Field: "title", Includes: []string{"a"}}}
		},
		"invalid filter field": func(c *SourceConfig) { c.Filters = []ConfigFilter{{Field: "content", Includes: []string{"a"}}} },
		"empty filter":         func(c *SourceConfig) { c.Filters = []ConfigFilter{{Field: "title"}} },
	}

	for name, mutate := range invalid {
		sourceConfig := validSourceConfig()
		mutate(sourceConfig)
		if err := configCache.validateConfig(sourceConfig); err == nil {
			t.Errorf("%s: expected error, got none", name)
		}
	}
}

func TestConfigCacheValidateJSONFields(t *testing.T) {
	configCache := NewConfigCache("")

	sourceConfig := validSourceConfig()
	sourceConfig.Type = SourceTypeJSON
	sourceConfig.Normalizer = NormalizerJSON
	sourceConfig.Fields = map[string]string{"rating": "score"}

	if err := configCache.validateConfig(sourceConfig); err == nil {
		t.Error("Expected error for unknown field mapping")
	}

	sourceConfig.Fields = map[string]string{"title": "name"}
	if err := configCache.validateConfig(sourceConfig); err != nil {
		t.Errorf("Expected valid field mapping, got: %v", err)
	}
}
