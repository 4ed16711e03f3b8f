package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/bank-support/internal/domain/knowledge"
	"github.com/yanqian/bank-support/internal/domain/support"
)

// Retriever is the retrieval gate as seen by the transport.
type Retriever interface {
	Config() knowledge.Config
	RetrieveWith(ctx context.Context, query string, k int, threshold float64) (knowledge.Outcome, error)
}

// KnowledgeAdmin exposes store maintenance.
type KnowledgeAdmin interface {
	Stats(ctx context.Context) (knowledge.Stats, error)
	BuildFromFile(ctx context.Context, path string) (knowledge.BuildReport, error)
}

// Handler wires the HTTP transport to domain services.
type Handler struct {
	retriever  Retriever
	admin      KnowledgeAdmin
	supportSvc support.Service
	corpusPath string
	logger     *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(retriever Retriever, admin KnowledgeAdmin, supportSvc support.Service, corpusPath string, logger *slog.Logger) *Handler {
	return &Handler{
		retriever:  retriever,
		admin:      admin,
		supportSvc: supportSvc,
		corpusPath: corpusPath,
		logger:     logger.With("component", "http.handler"),
	}
}

// Health reports whether the knowledge store has anything published.
func (h *Handler) Health(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	if stats.Entries == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "empty", "entries": 0})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "entries": stats.Entries})
}

func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "userID must be an integer", err))
		return 0, false
	}
	return id, true
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
