package api

import (
	"context"
	"time"

	"github.com/cudev/game-feed/app/database"
	"github.com/cudev/game-feed/app/feed"
	"github.com/cudev/game-feed/app/tasks"
)

type GeneratorInterface interface {
	Run(games []*feed.Game) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

// GamesProvider builds aggregates and retrievers over the configured sources.
type GamesProvider interface {
	Games(opts ...feed.GamesOption) (*feed.Games, error)
	Retriever(sourceName string) (*feed.Retriever, error)
	Invalidate()
}

var _ GamesProvider = (*feed.Catalog)(nil)

type CacheStatsProvider interface {
	GetStats(ctx context.Context) (*database.CacheStats, error)
}

type Handler struct {
	configCache *feed.ConfigCache
	catalog     GamesProvider
	sourceRepo  database.SourceRepository
	cacheStats  CacheStatsProvider
	generator   GeneratorInterface
	scheduler   tasks.TaskSchedulerInterface
	maxGames    int
}

type GameResponse struct {
	Key          string     `json:"key"`
	Source       string     `json:"source"`
	Position     int        `json:"position"`
	GUID         string     `json:"guid,omitempty"`
	Title        string     `json:"title,omitempty"`
	Link         string     `json:"link,omitempty"`
	Description  string     `json:"description,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	Authors      []string   `json:"authors,omitempty"`
	Categories   []string   `json:"categories,omitempty"`
	IsFiltered   bool       `json:"is_filtered,omitempty"`
	FilterReason string     `json:"filter_reason,omitempty"`
	Raw          any        `json:"raw,omitempty"` // Set for sources without a normalizer
}

func newGameResponse(record feed.Record, position int) GameResponse {
	response := GameResponse{
		Key:      record.Key,
		Source:   record.Source,
		Position: position,
	}

	game, ok := record.Value.(*feed.Game)
	if !ok {
		response.Raw = record.Value
		return response
	}

	response.GUID = game.GUID
	response.Title = game.Title
	response.Link = game.Link
	response.Description = game.Description
	response.ImageURL = game.ImageURL
	response.PublishedAt = game.PublishedAt
	response.Authors = game.Authors
	response.Categories = game.Categories
	response.IsFiltered = game.IsFiltered
	response.FilterReason = game.FilterReason
	return response
}
