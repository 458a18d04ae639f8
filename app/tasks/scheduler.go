package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cudev/game-feed/app/cfg"
	"github.com/cudev/game-feed/app/database"
	"github.com/cudev/game-feed/app/feed"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	configCache *feed.ConfigCache
	sourceRepo  database.SourceRepository
	retrievers  RetrieverProvider
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(configCache *feed.ConfigCache, sourceRepo database.SourceRepository, retrievers RetrieverProvider) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		configCache: configCache,
		sourceRepo:  sourceRepo,
		retrievers:  retrievers,
		interval:    time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount: cfg.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// WarmSource queues a warm-up of one source outside the regular schedule.
func (s *Scheduler) WarmSource(sourceName string) (string, error) {
	sourceConfig, err := s.configCache.GetConfig(sourceName)
	if err != nil {
		return "", err
	}
	if !sourceConfig.Settings.Enabled {
		return "", fmt.Errorf("source %s: %w", sourceName, feed.ErrSourceDisabled)
	}

	task := NewWarmSourceTask(sourceName, s.retrievers, s.sourceRepo)
	if err := s.EnqueueTask(task); err != nil {
		return "", err
	}
	return task.GetID(), nil
}

func (s *Scheduler) enqueueStartupTasks() {
	sourceConfigs := s.configCache.GetConfigs()

	names := make([]string, 0, len(sourceConfigs))
	for name := range sourceConfigs {
		names = append(names, name)
	}
	if deleted, err := s.sourceRepo.DeleteSourcesExcept(names); err != nil {
		slog.Warn("Failed to prune unconfigured sources", "error", err)
	} else if deleted > 0 {
		slog.Info("Pruned unconfigured sources", "count", deleted)
	}

	if len(sourceConfigs) == 0 {
		slog.Debug("No source configurations found")
		return
	}

	slog.Debug("Processing source configurations", "count", len(sourceConfigs))

	// Registry rows must exist before warm-up tasks record counts.
	for _, sourceConfig := range sourceConfigs {
		s.executeTask(-1, NewSyncSourceConfigTask(sourceConfig.Name, sourceConfig, s.sourceRepo))
	}

	s.enqueueTasks()
}

func (s *Scheduler) enqueueTasks() {
	sourceConfigs := s.configCache.GetEnabledConfigs()
	if len(sourceConfigs) == 0 {
		slog.Debug("No enabled source configurations found")
		return
	}

	slog.Debug("Processing enabled source configurations for task scheduling", "count", len(sourceConfigs))

	now := time.Now()
	for _, sourceConfig := range sourceConfigs {
		source, err := s.sourceRepo.GetSource(sourceConfig.Name)
		if err != nil {
			slog.Warn("Failed to get source from database, skipping", "source", sourceConfig.Name, "error", err)
			continue
		}
		if source == nil {
			slog.Warn("Source not found in database, skipping", "source", sourceConfig.Name)
			continue
		}

		if !isDue(source, sourceConfig.RefreshInterval(), now) {
			slog.Debug("Source not due for warm-up yet", "source", sourceConfig.Name, "last_counted_at", source.LastCountedAt)
			continue
		}

		warmTask := NewWarmSourceTask(sourceConfig.Name, s.retrievers, s.sourceRepo)
		if err := s.EnqueueTask(warmTask); err != nil {
			slog.Warn("Failed to enqueue WarmSourceTask", "source", sourceConfig.Name, "error", err)
		}
	}
}

// isDue reports whether a source has never been counted, failed its last
// count, or was counted longer than interval ago.
func isDue(source *database.Source, interval time.Duration, now time.Time) bool {
	if source.LastCountedAt == nil || source.LastError != "" {
		return true
	}
	return !source.LastCountedAt.Add(interval).After(now)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	if err := task.Execute(taskCtx); err != nil {
		slog.Error("Worker task execution failed",
			"worker_id", workerID,
			"type", string(task.GetType()),
			"id", task.GetID(),
			"source", task.GetSourceName(),
			"duration", task.GetDuration(),
			"error", err)
	}
}
