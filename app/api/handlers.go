package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/truth-news/app/database"
	"github.com/lysyi3m/truth-news/app/search"
)

type Handler struct {
	sourceRepo      database.SourceRepository
	maintenanceRepo database.MaintenanceRepository
	searcher        SearcherInterface
	trigger         RunTriggerInterface
	pipeline        LastRunInterface
}

// NewHandler wires the API handlers. searcher and trigger may be nil, in which case the
// matching endpoints answer 503.
func NewHandler(sourceRepo database.SourceRepository, maintenanceRepo database.MaintenanceRepository,
	searcher SearcherInterface, trigger RunTriggerInterface, pipeline LastRunInterface) *Handler {
	return &Handler{
		sourceRepo:      sourceRepo,
		maintenanceRepo: maintenanceRepo,
		searcher:        searcher,
		trigger:         trigger,
		pipeline:        pipeline,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":     "ok",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"collection": h.pipeline.CollectionName(),
	}

	if stats, err := h.maintenanceRepo.GetStats(c.Request.Context()); err == nil {
		health["sources"] = stats.Sources
	} else {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		health["status"] = "degraded"
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.maintenanceRepo.GetStats(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListSources(c *gin.Context) {
	rows, err := h.sourceRepo.ListSourcesHealth(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_sources_health", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	sources := make([]sourceHealthResponse, 0, len(rows))
	for _, row := range rows {
		sources = append(sources, sourceHealthResponse{
			SourceID:       row.SourceID,
			Name:           row.Name,
			Enabled:        row.Enabled,
			TotalItems:     row.TotalItems,
			QueuedItems:    row.QueuedItems,
			ExtractedItems: row.ExtractedItems,
			FailedItems:    row.FailedItems,
			LastSuccessAt:  formatTime(row.LastSuccessAt),
			LastErrorAt:    formatTime(row.LastErrorAt),
			LastError:      row.LastError,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APISearch(c *gin.Context) {
	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Search is not configured"})
		return
	}

	query := c.Query("q")
	topK := search.DefaultTopK
	if raw := c.Query("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil || k <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Parameter k must be a positive integer"})
			return
		}
		topK = k
	}

	results, err := h.searcher.Search(c.Request.Context(), query, topK)
	if errors.Is(err, search.ErrEmptyQuery) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing query parameter q"})
		return
	}
	if err != nil {
		slog.Error("Search failed", "query", query, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Search failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"results": results,
		"total":   len(results),
	})
}

func (h *Handler) APITriggerRun(c *gin.Context) {
	if h.trigger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler is not running"})
		return
	}

	taskID, err := h.trigger.Trigger("api")
	if err != nil {
		slog.Error("Error enqueueing pipeline run", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue pipeline run",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task": gin.H{
			"id":   taskID,
			"type": "pipeline_run",
		},
	})
}

func (h *Handler) APIGetLastRun(c *gin.Context) {
	stats := h.pipeline.LastRun()
	if stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No completed run yet"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
