package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey, version string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(requestLogger("/health", "/metrics"))
	r.Use(gin.Recovery())

	setupRoutes(r, handler, apiAccessKey, version)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey, version string) {
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", cors(http.MethodGet), handler.GetStats)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API endpoints (conditionally enabled with authentication)
	if apiAccessKey != "" {
		api := r.Group("/api", cors(http.MethodGet, http.MethodPost))
		// Preflight requests carry no credentials
		api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		api.Use(authMiddleware(apiAccessKey))
		{
			api.GET("/sources", handler.APIListSources)
			api.GET("/search", handler.APISearch)
			api.POST("/runs", handler.APITriggerRun)
			api.GET("/runs/last", handler.APIGetLastRun)
		}
		slog.Info("API endpoints enabled with authentication")
	} else {
		slog.Info("API endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"health":  "/health",
			"stats":   "/stats",
			"metrics": "/metrics",
		}

		if apiAccessKey != "" {
			endpoints["sources"] = "/api/sources (requires X-API-Key header)"
			endpoints["search"] = "/api/search?q=<text>&k=<n> (requires X-API-Key header)"
			endpoints["runs"] = "/api/runs (POST, requires X-API-Key header)"
			endpoints["last_run"] = "/api/runs/last (requires X-API-Key header)"
		}

		c.JSON(http.StatusOK, gin.H{
			"service":     "Truth News",
			"version":     version,
			"description": "RSS news ingestion pipeline with extraction, deduplication, chunking and vector indexing",
			"endpoints":   endpoints,
			"api_status": map[string]interface{}{
				"enabled":       apiAccessKey != "",
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}
