package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yanqian/bank-support/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, gatherer prometheus.Gatherer, logger *slog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(logger.With("component", "http.access")),
		errorHandlingMiddleware(logger.With("component", "http.errors")),
	)

	router.GET("/healthz", handler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		kb := api.Group("/knowledge")
		kb.POST("/search", handler.Search)
		kb.GET("/stats", handler.Stats)
		kb.POST("/rebuild", handler.Rebuild)

		sup := api.Group("/support")
		sup.POST("/users", handler.Register)
		sup.POST("/users/:userID/messages", handler.Message)
		sup.POST("/users/:userID/operator", handler.CallOperator)
		sup.DELETE("/users/:userID/operator", handler.EndDialog)
		sup.POST("/users/:userID/ratings", handler.Rate)
		sup.GET("/tickets", handler.Tickets)
		sup.GET("/ratings/summary", handler.RatingSummary)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, logger.With("component", "http.retry")),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
