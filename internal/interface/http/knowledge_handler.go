package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/bank-support/internal/domain/knowledge"
)

type searchRequest struct {
	Query     string   `json:"query"`
	K         *int     `json:"k"`
	Threshold *float64 `json:"threshold"`
}

type searchResponse struct {
	Found   bool              `json:"found"`
	Matches []knowledge.Match `json:"matches"`
	Context string            `json:"context"`
}

// Search runs the retrieval gate. An empty result is a NoMatch, not an error.
func (h *Handler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	cfg := h.retriever.Config()
	k, threshold := cfg.TopK, cfg.Threshold
	if req.K != nil {
		k = *req.K
	}
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	outcome, err := h.retriever.RetrieveWith(c.Request.Context(), req.Query, k, threshold)
	if err != nil {
		abortWithError(c, domainError(err))
		return
	}

	matches := outcome.Matches
	if matches == nil {
		matches = []knowledge.Match{}
	}
	c.JSON(http.StatusOK, searchResponse{
		Found:   outcome.Found(),
		Matches: matches,
		Context: outcome.Context(),
	})
}

// Stats reports the published corpus.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		abortWithError(c, domainError(err))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Rebuild reloads the corpus file and republishes it when it changed.
func (h *Handler) Rebuild(c *gin.Context) {
	report, err := h.admin.BuildFromFile(c.Request.Context(), h.corpusPath)
	if err != nil {
		abortWithError(c, domainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries":     report.Entries,
		"dimensions":  report.Dimensions,
		"fingerprint": report.Fingerprint,
		"skipped":     report.Skipped,
		"durationMs":  report.Duration.Milliseconds(),
	})
}
