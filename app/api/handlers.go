package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cudev/game-feed/app/database"
	"github.com/cudev/game-feed/app/feed"
	"github.com/cudev/game-feed/app/tasks"
	"github.com/gin-gonic/gin"
)

func NewHandler(configCache *feed.ConfigCache, catalog GamesProvider,
	sourceRepo database.SourceRepository, cacheStats CacheStatsProvider,
	scheduler tasks.TaskSchedulerInterface, maxGames int) *Handler {
	return &Handler{
		configCache: configCache,
		catalog:     catalog,
		sourceRepo:  sourceRepo,
		cacheStats:  cacheStats,
		generator:   feed.NewGenerator(),
		scheduler:   scheduler,
		maxGames:    maxGames,
	}
}

func (h *Handler) GetGames(c *gin.Context) {
	limit, offset, ok := h.pagination(c)
	if !ok {
		return
	}

	games, ok := h.games(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	responses := make([]GameResponse, 0, limit)
	for len(responses) < limit && games.Next(ctx) {
		if games.Position() < offset {
			continue
		}
		responses = append(responses, newGameResponse(games.Record(), games.Position()))
	}
	if err := games.Err(); err != nil {
		respondSourceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"games":  responses,
		"count":  len(responses),
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) GetGamesCount(c *gin.Context) {
	games, ok := h.games(c)
	if !ok {
		return
	}

	count, err := games.Count(c.Request.Context())
	if err != nil {
		respondSourceError(c, err)
		return
	}

	response := gin.H{"count": count}
	if source := c.Query("source"); source != "" {
		response["source"] = source
	}
	c.JSON(http.StatusOK, response)
}

func (h *Handler) GetGamesRSS(c *gin.Context) {
	limit, _, ok := h.pagination(c)
	if !ok {
		return
	}

	games, ok := h.games(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	records := make([]feed.Record, 0, limit)
	for len(records) < limit && games.Next(ctx) {
		records = append(records, games.Record())
	}
	if err := games.Err(); err != nil {
		respondSourceError(c, err)
		return
	}

	items := feed.GamesOf(records)
	rss, err := h.generator.Run(items)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.Header("X-Generated-At", time.Now().Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp":             time.Now().In(time.Local).Format(time.RFC3339),
		"loaded_configurations": h.configCache.GetConfigCount(),
	}

	if sources, err := h.sourceRepo.GetSources(); err == nil {
		health["sources"] = len(sources)
	}

	if h.cacheStats != nil {
		if stats, err := h.cacheStats.GetStats(c.Request.Context()); err == nil {
			health["cache"] = map[string]interface{}{
				"entries": stats.Entries,
				"expired": stats.Expired,
				"bytes":   stats.Bytes,
			}
		} else {
			slog.Warn("Failed to read cache stats", "error", err)
		}
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	sources := make([]map[string]interface{}, 0, len(configs))
	for _, sourceConfig := range configs {
		sourceInfo := map[string]interface{}{
			"name":             sourceConfig.Name,
			"type":             sourceConfig.Type,
			"url":              sourceConfig.URL,
			"order":            sourceConfig.Order,
			"enabled":          sourceConfig.Settings.Enabled,
			"normalizer":       sourceConfig.Normalizer,
			"refresh_interval": sourceConfig.RefreshInterval().String(),
			"filters":          len(sourceConfig.Filters),
		}

		if source, err := h.sourceRepo.GetSource(sourceConfig.Name); err == nil && source != nil {
			addRegistryInfo(sourceInfo, source)
		}

		sources = append(sources, sourceInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIGetSourceDetails(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing source name parameter"})
		return
	}

	sourceConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Source configuration not found", "source", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	details := map[string]interface{}{
		"name":             name,
		"type":             sourceConfig.Type,
		"url":              sourceConfig.URL,
		"order":            sourceConfig.Order,
		"enabled":          sourceConfig.Settings.Enabled,
		"normalizer":       sourceConfig.Normalizer,
		"fields":           sourceConfig.Fields,
		"refresh_interval": sourceConfig.RefreshInterval().String(),
		"timeout":          sourceConfig.Timeout().String(),
		"cache_ttl":        sourceConfig.CacheTTL().String(),
		"filters":          sourceConfig.Filters,
	}

	source, err := h.sourceRepo.GetSource(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if source != nil {
		registry := map[string]interface{}{
			"created_at": source.CreatedAt,
			"updated_at": source.UpdatedAt,
		}
		addRegistryInfo(registry, source)
		details["database"] = registry
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIWarmSource(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing source name parameter"})
		return
	}

	taskID, err := h.scheduler.WarmSource(name)
	if err != nil {
		slog.Error("Error enqueueing warm task", "source", name, "error", err)
		status := http.StatusInternalServerError
		if _, cfgErr := h.configCache.GetConfig(name); cfgErr != nil {
			status = http.StatusNotFound
		} else if errors.Is(err, feed.ErrSourceDisabled) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{
			"error":   "Failed to enqueue warm task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Warm task enqueued",
		"source":  name,
		"task": gin.H{
			"id":   taskID,
			"type": tasks.TaskTypeWarmSource,
		},
	})
}

func (h *Handler) APIReloadSource(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing source name parameter"})
		return
	}

	if _, err := h.configCache.GetConfig(name); err != nil {
		slog.Error("Source configuration not found", "source", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	sourceConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	// Retrievers are immutable, so the reloaded settings need fresh ones.
	h.catalog.Invalidate()

	syncTask := tasks.NewSyncSourceConfigTask(name, sourceConfig, h.sourceRepo)
	if err := h.scheduler.EnqueueTask(syncTask); err != nil {
		slog.Error("Error enqueueing sync task", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded and sync task enqueued",
		"source": gin.H{
			"name":    name,
			"url":     sourceConfig.URL,
			"enabled": sourceConfig.Settings.Enabled,
		},
		"tasks": []gin.H{
			{
				"id":   syncTask.ID,
				"type": syncTask.Type,
			},
		},
	})
}

// games resolves the aggregate for the request: a single source when the
// source query parameter is set, every enabled source otherwise.
func (h *Handler) games(c *gin.Context) (*feed.Games, bool) {
	source := c.Query("source")
	if source == "" {
		games, err := h.catalog.Games()
		if err != nil {
			slog.Error("Failed to build games aggregate", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build games aggregate"})
			return nil, false
		}
		return games, true
	}

	retriever, err := h.catalog.Retriever(source)
	if err != nil {
		slog.Error("Source not available", "source", source, "error", err)
		message := "Source configuration not found"
		if errors.Is(err, feed.ErrSourceDisabled) {
			message = "Source is disabled"
		}
		c.JSON(http.StatusNotFound, gin.H{"error": message})
		return nil, false
	}
	return feed.From(retriever), true
}

func (h *Handler) pagination(c *gin.Context) (int, int, bool) {
	limit := h.maxGames
	if raw := c.Query("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return 0, 0, false
		}
		limit = min(value, h.maxGames)
	}

	offset := 0
	if raw := c.Query("offset"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset parameter"})
			return 0, 0, false
		}
		offset = value
	}

	return limit, offset, true
}

func addRegistryInfo(info map[string]interface{}, source *database.Source) {
	if source.DeclaredCount != nil {
		info["declared_count"] = *source.DeclaredCount
	}
	if source.LastCountedAt != nil {
		info["last_counted_at"] = source.LastCountedAt
	}
	if source.LastError != "" {
		info["last_error"] = source.LastError
	}
}

func respondSourceError(c *gin.Context, err error) {
	var transportErr *feed.TransportError
	if errors.As(err, &transportErr) {
		slog.Error("Source transport error", "url", transportErr.URL, "status", transportErr.StatusCode, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Source unavailable",
			"url":     transportErr.URL,
			"details": err.Error(),
		})
		return
	}

	var decodeErr *feed.DecodeError
	if errors.As(err, &decodeErr) {
		slog.Error("Source decode error", "url", decodeErr.URL, "kind", decodeErr.Kind.String(), "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Source returned an unreadable response",
			"kind":    decodeErr.Kind.String(),
			"url":     decodeErr.URL,
			"code":    decodeErr.Code,
			"details": decodeErr.Message,
		})
		return
	}

	slog.Error("Failed to read games", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "Failed to read games",
		"details": err.Error(),
	})
}
