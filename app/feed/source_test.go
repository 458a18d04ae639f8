package feed

import (
	"context"
	"testing"
	"time"

	"github.com/cudev/game-feed/app/cache"
)

func TestNewSourceDecoder(t *testing.T) {
	xmlDecoder, err := NewSourceDecoder(&SourceConfig{Type: SourceTypeXML, URL: testFeedURL})
	if err != nil {
		t.Fatal(err)
	}
	if TypeOf(xmlDecoder) != SourceTypeXML {
		t.Errorf("Expected xml decoder, got: %s", TypeOf(xmlDecoder))
	}

	jsonDecoder, err := NewSourceDecoder(&SourceConfig{
		Type: SourceTypeJSON,
		URL:  testAPIURL,
		JSON: JSONSettings{Params: map[string]string{"limit": "100", "format": "json"}, StartPage: 2},
	})
	if err != nil {
		t.Fatal(err)
	}

	pageURL, err := jsonDecoder.(*JSONDecoder).PageURL(2)
	if err != nil {
		t.Fatal(err)
	}
	if pageURL != testPageURL("2") {
		t.Errorf("Expected %s, got: %s", testPageURL("2"), pageURL)
	}

	if _, err := NewSourceDecoder(&SourceConfig{Type: "csv"}); err == nil {
		t.Error("Expected error for unknown source type")
	}
}

func TestNewSourceTransformerNone(t *testing.T) {
	transformer, err := NewSourceTransformer(&SourceConfig{Normalizer: NormalizerNone})
	if err != nil {
		t.Fatal(err)
	}
	if transformer != nil {
		t.Error("Expected no transformer for the none normalizer")
	}
}

func TestNewSourceTransformerAppliesFilters(t *testing.T) {
	transformer, err := NewSourceTransformer(&SourceConfig{
		Normalizer: NormalizerRSS,
		Filters:    []ConfigFilter{{Field: "title", Excludes: []string{"space"}}},
	})
	if err != nil {
		t.Fatal(err)
	}

	record, err := transformer(Record{Value: "<item><title>Space Race</title></item>"})
	if err != nil {
		t.Fatal(err)
	}
	if !record.Value.(*Game).IsFiltered {
		t.Error("Expected excluded game to be marked filtered")
	}
}

func TestBuildRetrieverCustomItemName(t *testing.T) {
	body := `<catalog><games><game><title>A</title><link>https://example.com/a</link></game><game><title>B</title><link>https://example.com/b</link></game></games></catalog>`

	sourceConfig := &SourceConfig{
		Name:       "catalog",
		Type:       SourceTypeXML,
		URL:        testFeedURL,
		Normalizer: NormalizerRSS,
		XML:        XMLSettings{Channel: "games", Item: "game"},
	}
	if err := NewConfigCache(t.TempDir()).validateConfig(sourceConfig); err != nil {
		t.Fatalf("Expected valid config, got: %v", err)
	}

	retriever, err := BuildRetriever(sourceConfig, WithFetcher(staticFetcher{testFeedURL: body}))
	if err != nil {
		t.Fatal(err)
	}

	records, err := Collect(context.Background(), retriever.Retrieve())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got: %d", len(records))
	}
	if title := records[1].Value.(*Game).Title; title != "B" {
		t.Errorf("Expected title 'B', got: %s", title)
	}
	if records[0].Key != "https://example.com/a" {
		t.Errorf("Expected key from link, got: %s", records[0].Key)
	}
}

func TestBuildRetriever(t *testing.T) {
	client := newMockClient()
	client.respond(testPageURL("1"), `{"entries":[{"id":1,"title":"A","gameURL":"https://example.com/a"}],"totalPages":1,"totalEntries":1}`)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := cache.NewMemoryStoreWithClock(func() time.Time { return now })

	sourceConfig := &SourceConfig{
		Name:       "spilgames",
		Type:       SourceTypeJSON,
		URL:        testAPIURL,
		Normalizer: NormalizerJSON,
		JSON:       JSONSettings{Params: map[string]string{"limit": "100", "format": "json"}},
		Settings:   SourceSettings{CacheTTL: 60},
	}

	retriever, err := BuildRetriever(sourceConfig, WithHTTPClient(client), WithCache(store), WithCacheTTL(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if retriever.Name() != "spilgames" {
		t.Errorf("Expected name 'spilgames', got: %s", retriever.Name())
	}

	records, err := Collect(context.Background(), retriever.Retrieve())
	if err != nil {
		t.Fatal(err)
	}
	games := GamesOf(records)
	if len(games) != 1 || games[0].Title != "A" || games[0].Source != "spilgames" {
		t.Fatalf("Unexpected games: %+v", games)
	}

	// The source TTL overrides the process default.
	now = now.Add(2 * time.Minute)
	if _, err := retriever.Count(context.Background()); err != nil {
		t.Fatal(err)
	}
	if client.callCount(testPageURL("1")) != 2 {
		t.Errorf("Expected the source TTL to expire the entry, got %d calls", client.callCount(testPageURL("1")))
	}
}

func TestBuildRetrieverInvalidNormalizer(t *testing.T) {
	_, err := BuildRetriever(&SourceConfig{Name: "x", Type: SourceTypeXML, URL: testFeedURL, Normalizer: "html"})
	if err == nil {
		t.Error("Expected error for unknown normalizer")
	}
}
