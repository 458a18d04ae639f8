package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cudev/game-feed/app/database"
	"github.com/cudev/game-feed/app/feed"
)

type SyncSourceConfigTask struct {
	Task
	SourceConfig *feed.SourceConfig
	sourceRepo   database.SourceRepository
}

func NewSyncSourceConfigTask(sourceName string, sourceConfig *feed.SourceConfig, sourceRepo database.SourceRepository) *SyncSourceConfigTask {
	return &SyncSourceConfigTask{
		Task:         NewTask(TaskTypeSyncSourceConfig, sourceName),
		SourceConfig: sourceConfig,
		sourceRepo:   sourceRepo,
	}
}

func (t *SyncSourceConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := t.sourceRepo.UpsertSource(
		t.SourceConfig.Name,
		string(t.SourceConfig.Type),
		t.SourceConfig.URL,
		t.SourceConfig.Settings.Enabled,
		t.SourceConfig.Order)
	if err != nil {
		return fmt.Errorf("failed to sync source config to database: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncSourceConfig",
		"source", t.SourceName,
		"duration", t.GetDuration())

	return nil
}
