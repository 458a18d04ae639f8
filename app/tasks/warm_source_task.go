package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cudev/game-feed/app/database"
	"github.com/cudev/game-feed/app/feed"
)

// RetrieverProvider resolves a configured source to its Retriever.
type RetrieverProvider interface {
	Retriever(sourceName string) (*feed.Retriever, error)
}

// WarmSourceTask counts a source. Counting fetches the feed document or the
// first API page through the response cache, so later requests are served
// from it. The declared count is recorded in the source registry.
type WarmSourceTask struct {
	Task
	retrievers RetrieverProvider
	sourceRepo database.SourceRepository
}

func NewWarmSourceTask(sourceName string, retrievers RetrieverProvider, sourceRepo database.SourceRepository) *WarmSourceTask {
	return &WarmSourceTask{
		Task:       NewTask(TaskTypeWarmSource, sourceName),
		retrievers: retrievers,
		sourceRepo: sourceRepo,
	}
}

func (t *WarmSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	retriever, err := t.retrievers.Retriever(t.SourceName)
	if err != nil {
		return fmt.Errorf("failed to resolve source: %w", err)
	}

	count, err := retriever.Count(ctx)
	if err != nil {
		if repoErr := t.sourceRepo.UpdateSourceError(t.SourceName, err); repoErr != nil {
			slog.Warn("Failed to record source error", "source", t.SourceName, "error", repoErr)
		}
		return fmt.Errorf("failed to count source: %w", err)
	}

	if err := t.sourceRepo.UpdateSourceCount(t.SourceName, count); err != nil {
		return fmt.Errorf("failed to record source count: %w", err)
	}

	slog.Info("Task completed",
		"type", "WarmSource",
		"source", t.SourceName,
		"source_type", string(retriever.Type()),
		"count", count,
		"duration", t.GetDuration())

	return nil
}
