package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cudev/game-feed/app/cfg"
	"github.com/cudev/game-feed/app/database"
	"github.com/cudev/game-feed/app/feed"
)

// MockSourceRepository keeps sources in memory
type MockSourceRepository struct {
	mu      sync.Mutex
	sources map[string]*database.Source
	err     error
}

func NewMockSourceRepository() *MockSourceRepository {
	return &MockSourceRepository{sources: make(map[string]*database.Source)}
}

func (m *MockSourceRepository) GetSource(name string) (*database.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	source, ok := m.sources[name]
	if !ok {
		return nil, nil
	}
	snapshot := *source
	return &snapshot, nil
}

func (m *MockSourceRepository) sourceSnapshot(name string) *database.Source {
	source, _ := m.GetSource(name)
	return source
}

func (m *MockSourceRepository) GetSources() ([]database.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sources []database.Source
	for _, source := range m.sources {
		sources = append(sources, *source)
	}
	return sources, m.err
}

func (m *MockSourceRepository) UpsertSource(name, sourceType, url string, enabled bool, order int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.sources[name] = &database.Source{Name: name, Type: sourceType, URL: url, Enabled: enabled, Order: order}
	return nil
}

func (m *MockSourceRepository) UpdateSourceCount(name string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, ok := m.sources[name]
	if !ok {
		return fmt.Errorf("source '%s' not found", name)
	}
	now := time.Now()
	source.DeclaredCount = &count
	source.LastCountedAt = &now
	source.LastError = ""
	return nil
}

func (m *MockSourceRepository) UpdateSourceError(name string, countErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, ok := m.sources[name]
	if !ok {
		return fmt.Errorf("source '%s' not found", name)
	}
	source.LastError = countErr.Error()
	return nil
}

func (m *MockSourceRepository) DeleteSourcesExcept(names []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keep := make(map[string]bool, len(names))
	for _, name := range names {
		keep[name] = true
	}
	var deleted int64
	for name := range m.sources {
		if !keep[name] {
			delete(m.sources, name)
			deleted++
		}
	}
	return deleted, nil
}

type staticFetcher map[string]string

func (f staticFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, ok := f[url]
	if !ok {
		return nil, &feed.TransportError{URL: url, StatusCode: 503, Err: errors.New("unexpected status 503")}
	}
	return []byte(body), nil
}

// MockRetrieverProvider serves retrievers over static bodies
type MockRetrieverProvider struct {
	retrievers map[string]*feed.Retriever
}

func (m *MockRetrieverProvider) Retriever(sourceName string) (*feed.Retriever, error) {
	retriever, ok := m.retrievers[sourceName]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", sourceName)
	}
	return retriever, nil
}

func newMockRetrieverProvider(t *testing.T) *MockRetrieverProvider {
	t.Helper()

	fetcher := staticFetcher{
		"https://example.com/feed.xml": `<rss><channel><item><title>A</title></item><item><title>B</title></item></channel></rss>`,
	}

	working, err := feed.NewRetriever("arcade", feed.NewXMLDecoder("https://example.com/feed.xml"), feed.WithFetcher(fetcher))
	if err != nil {
		t.Fatal(err)
	}
	broken, err := feed.NewRetriever("broken", feed.NewXMLDecoder("https://example.com/down.xml"), feed.WithFetcher(fetcher))
	if err != nil {
		t.Fatal(err)
	}

	return &MockRetrieverProvider{retrievers: map[string]*feed.Retriever{
		"arcade": working,
		"broken": broken,
	}}
}

func TestSyncSourceConfigTask(t *testing.T) {
	repo := NewMockSourceRepository()
	sourceConfig := &feed.SourceConfig{
		Name:     "arcade",
		Type:     feed.SourceTypeXML,
		URL:      "https://example.com/feed.xml",
		Order:    2,
		Settings: feed.SourceSettings{Enabled: true},
	}

	task := NewSyncSourceConfigTask("arcade", sourceConfig, repo)
	if task.GetType() != TaskTypeSyncSourceConfig {
		t.Errorf("Expected type %s, got %s", TaskTypeSyncSourceConfig, task.GetType())
	}
	if task.GetID() == "" {
		t.Error("Expected a task ID")
	}

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	source := repo.sources["arcade"]
	if source == nil {
		t.Fatal("Expected source to be stored")
	}
	if source.Type != "xml" || source.Order != 2 || !source.Enabled {
		t.Errorf("Unexpected source: %+v", source)
	}
}

func TestSyncSourceConfigTaskCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := NewSyncSourceConfigTask("arcade", &feed.SourceConfig{Name: "arcade"}, NewMockSourceRepository())
	if err := task.Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestWarmSourceTask(t *testing.T) {
	repo := NewMockSourceRepository()
	_ = repo.UpsertSource("arcade", "xml", "https://example.com/feed.xml", true, 0)

	task := NewWarmSourceTask("arcade", newMockRetrieverProvider(t), repo)
	task.Start()
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	source := repo.sources["arcade"]
	if source.DeclaredCount == nil || *source.DeclaredCount != 2 {
		t.Errorf("Expected declared count 2, got: %v", source.DeclaredCount)
	}
	if source.LastCountedAt == nil {
		t.Error("Expected last counted time to be set")
	}
}

func TestWarmSourceTaskRecordsFailure(t *testing.T) {
	repo := NewMockSourceRepository()
	_ = repo.UpsertSource("broken", "xml", "https://example.com/down.xml", true, 0)

	err := NewWarmSourceTask("broken", newMockRetrieverProvider(t), repo).Execute(context.Background())
	if !feed.IsTransportError(err) {
		t.Fatalf("Expected a transport error, got: %v", err)
	}

	if repo.sources["broken"].LastError == "" {
		t.Error("Expected the failure to be recorded")
	}
	if repo.sources["broken"].DeclaredCount != nil {
		t.Error("Expected no count after a failure")
	}
}

func TestWarmSourceTaskUnknownSource(t *testing.T) {
	err := NewWarmSourceTask("missing", newMockRetrieverProvider(t), NewMockSourceRepository()).Execute(context.Background())
	if err == nil {
		t.Error("Expected an error for an unknown source")
	}
}

func TestIsDue(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-10 * time.Minute)
	old := now.Add(-2 * time.Hour)

	cases := []struct {
		name     string
		source   database.Source
		expected bool
	}{
		{"never counted", database.Source{}, true},
		{"recent", database.Source{LastCountedAt: &recent}, false},
		{"old", database.Source{LastCountedAt: &old}, true},
		{"failed", database.Source{LastCountedAt: &recent, LastError: "HTTP 503"}, true},
	}

	for _, c := range cases {
		if got := isDue(&c.source, time.Hour, now); got != c.expected {
			t.Errorf("%s: expected %v, got %v", c.name, c.expected, got)
		}
	}
}

func setupScheduler(t *testing.T) (*Scheduler, *MockSourceRepository) {
	t.Helper()

	cfg.Set(&cfg.Cfg{WorkerCount: 1, SchedulerInterval: 3600})

	tempDir := t.TempDir()
	sources := map[string]string{
		"arcade":   "type: xml\nurl: https://example.com/feed.xml\nsettings:\n  enabled: true\n",
		"broken":   "type: xml\nurl: https://example.com/down.xml\norder: 1\nsettings:\n  enabled: true\n",
		"disabled": "type: xml\nurl: https://example.com/off.xml\nsettings:\n  enabled: false\n",
	}
	for name, content := range sources {
		if err := os.WriteFile(filepath.Join(tempDir, name+".yml"), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	configCache := feed.NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	repo := NewMockSourceRepository()
	scheduler := NewScheduler(configCache, repo, newMockRetrieverProvider(t))
	t.Cleanup(scheduler.cancel)

	return scheduler, repo
}

func TestSchedulerStartupTasks(t *testing.T) {
	scheduler, repo := setupScheduler(t)
	_ = repo.UpsertSource("stale", "xml", "https://example.com/stale.xml", true, 0)

	scheduler.enqueueStartupTasks()

	if _, ok := repo.sources["stale"]; ok {
		t.Error("Expected unconfigured source to be pruned")
	}
	if len(repo.sources) != 3 {
		t.Errorf("Expected 3 synced sources, got %d", len(repo.sources))
	}

	// Warm-ups for the two enabled sources.
	if len(scheduler.taskQueue) != 2 {
		t.Fatalf("Expected 2 queued tasks, got %d", len(scheduler.taskQueue))
	}
	first := <-scheduler.taskQueue
	if first.GetType() != TaskTypeWarmSource || first.GetSourceName() != "arcade" {
		t.Errorf("Expected warm-up of arcade first, got %s %s", first.GetType(), first.GetSourceName())
	}
}

func TestSchedulerSkipsFreshSources(t *testing.T) {
	scheduler, repo := setupScheduler(t)
	scheduler.enqueueStartupTasks()
	for len(scheduler.taskQueue) > 0 {
		scheduler.executeTask(0, <-scheduler.taskQueue)
	}

	if repo.sources["arcade"].DeclaredCount == nil {
		t.Fatal("Expected arcade to be counted")
	}

	scheduler.enqueueTasks()

	// Only the failed source is due again.
	if len(scheduler.taskQueue) != 1 {
		t.Fatalf("Expected 1 queued task, got %d", len(scheduler.taskQueue))
	}
	if task := <-scheduler.taskQueue; task.GetSourceName() != "broken" {
		t.Errorf("Expected broken to be retried on the next tick, got %s", task.GetSourceName())
	}
}

func TestSchedulerWarmSource(t *testing.T) {
	scheduler, _ := setupScheduler(t)

	id, err := scheduler.WarmSource("arcade")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if id == "" {
		t.Error("Expected a task ID")
	}

	if _, err := scheduler.WarmSource("missing"); err == nil {
		t.Error("Expected an error for an unknown source")
	}

	if _, err := scheduler.WarmSource("disabled"); !errors.Is(err, feed.ErrSourceDisabled) {
		t.Errorf("Expected ErrSourceDisabled, got: %v", err)
	}
	if len(scheduler.taskQueue) != 1 {
		t.Errorf("Expected only the enabled source to be queued, got %d tasks", len(scheduler.taskQueue))
	}
}

func TestSchedulerStartStop(t *testing.T) {
	scheduler, repo := setupScheduler(t)

	scheduler.Start()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		source := repo.sourceSnapshot("arcade")
		if source != nil && source.DeclaredCount != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	scheduler.Stop()

	source := repo.sourceSnapshot("arcade")
	if source == nil || source.DeclaredCount == nil || *source.DeclaredCount != 2 {
		t.Errorf("Expected arcade to be warmed by the running scheduler, got: %+v", source)
	}
}
