package feed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cudev/game-feed/app/cache"
)

func TestNewRetrieverRequiresDecoder(t *testing.T) {
	if _, err := NewRetriever("broken", nil); err == nil {
		t.Error("Expected an error without a decoder")
	}
}

func TestRetrieverWithoutTransformer(t *testing.T) {
	client := newMockClient()
	client.respond(testFeedURL, testRSS)

	retriever, err := NewRetriever("xml-games", NewXMLDecoder(testFeedURL), WithHTTPClient(client))
	if err != nil {
		t.Fatal(err)
	}

	records, err := Collect(context.Background(), retriever.Retrieve())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got: %d", len(records))
	}
	for _, record := range records {
		if record.Source != "xml-games" {
			t.Errorf("Expected source 'xml-games', got: %s", record.Source)
		}
		if _, ok := record.Value.(string); !ok {
			t.Errorf("Expected raw string value, got: %T", record.Value)
		}
	}
	if retriever.Type() != SourceTypeXML {
		t.Errorf("Expected xml type, got: %s", retriever.Type())
	}
}

func TestRetrieverAppliesTransformerOncePerRecord(t *testing.T) {
	client := newMockClient()
	client.respond(testFeedURL, testRSS)

	calls := 0
	upper := func(record Record) (Record, error) {
		calls++
		record.Value = strings.ToUpper(record.Value.(string))
		return record, nil
	}

	retriever, err := NewRetriever("xml-games", NewXMLDecoder(testFeedURL),
		WithHTTPClient(client),
		WithTransformer(upper),
	)
	if err != nil {
		t.Fatal(err)
	}

	records, err := Collect(context.Background(), retriever.Retrieve())
	if err != nil {
		t.Fatal(err)
	}
	if calls != len(records) {
		t.Errorf("Expected %d transformer calls, got: %d", len(records), calls)
	}
	if !strings.Contains(records[2].Value.(string), "SPACE RACE") {
		t.Errorf("Expected transformed value, got: %s", records[2].Value)
	}
}

func TestRetrieverTransformerError(t *testing.T) {
	client := newMockClient()
	client.respond(testFeedURL, testRSS)

	failure := errors.New("bad record")
	retriever, err := NewRetriever("xml-games", NewXMLDecoder(testFeedURL),
		WithHTTPClient(client),
		WithTransformer(func(Record) (Record, error) { return Record{}, failure }),
	)
	if err != nil {
		t.Fatal(err)
	}

	_, err = retriever.Retrieve().Next(context.Background())
	if !errors.Is(err, failure) {
		t.Errorf("Expected transformer error to be wrapped, got: %v", err)
	}
}

func TestRetrieverCountIsIndependent(t *testing.T) {
	client := newMockClient()
	client.respond(testPageURL("1"), `{"entries":[{"id":1}],"totalPages":2,"totalEntries":2}`)
	client.respond(testPageURL("2"), `{"entries":[{"id":2}],"totalPages":2,"totalEntries":2}`)

	retriever, err := NewRetriever("json-games", newTestJSONDecoder(),
		WithHTTPClient(client),
		WithCache(cache.NewMemoryStore()),
	)
	if err != nil {
		t.Fatal(err)
	}

	it := retriever.Retrieve()
	if _, err := it.Next(context.Background()); err != nil {
		t.Fatal(err)
	}

	count, err := retriever.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("Expected count 2, got: %d", count)
	}

	record, err := it.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if record.Key != "2" {
		t.Errorf("Expected iteration to continue with key 2, got: %s", record.Key)
	}

	// Page 1 served from cache for Count.
	if client.callCount(testPageURL("1")) != 1 {
		t.Errorf("Expected page 1 to be fetched once, got: %d", client.callCount(testPageURL("1")))
	}
}

func TestRetrieverSequencesAreIndependent(t *testing.T) {
	client := newMockClient()
	client.respond(testFeedURL, testRSS)

	retriever, err := NewRetriever("xml-games", NewXMLDecoder(testFeedURL),
		WithHTTPClient(client),
		WithCache(cache.NewMemoryStore()),
	)
	if err != nil {
		t.Fatal(err)
	}

	first := retriever.Retrieve()
	second := retriever.Retrieve()

	if _, err := first.Next(context.Background()); err != nil {
		t.Fatal(err)
	}
	records, err := Collect(context.Background(), second)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Errorf("Expected the second sequence to start over, got %d records", len(records))
	}
	if client.callCount(testFeedURL) != 1 {
		t.Errorf("Expected the cache to serve the second sequence, got %d calls", client.callCount(testFeedURL))
	}
}

type staticFetcher map[string]string

func (f staticFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, ok := f[url]
	if !ok {
		return nil, &TransportError{URL: url, Err: errors.New("not found")}
	}
	return []byte(body), nil
}

func TestRetrieverWithFetcher(t *testing.T) {
	retriever, err := NewRetriever("static", NewXMLDecoder(testFeedURL),
		WithFetcher(staticFetcher{testFeedURL: testRSS}),
	)
	if err != nil {
		t.Fatal(err)
	}

	count, err := retriever.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("Expected count 3, got: %d", count)
	}
}
