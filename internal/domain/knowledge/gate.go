package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	apperrors "github.com/yanqian/bank-support/pkg/errors"
	"github.com/yanqian/bank-support/pkg/metrics"
)

// Querier is the nearest-neighbour half of the Store used by the Gate.
type Querier interface {
	Query(ctx context.Context, text string, k int) ([]Match, error)
}

// Gate turns raw nearest-neighbour results into a confidence-gated Outcome.
// It keeps no state between calls.
type Gate struct {
	cfg     Config
	store   Querier
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewGate builds a gate over store with cfg defaults applied.
func NewGate(cfg Config, store Querier, logger *slog.Logger, recorder *metrics.Recorder) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		cfg:     cfg.withDefaults(),
		store:   store,
		logger:  logger.With("component", "knowledge.gate"),
		metrics: recorder,
	}
}

// Config returns the effective configuration.
func (g *Gate) Config() Config {
	return g.cfg
}

// Retrieve runs the gate with the configured top-K and threshold.
func (g *Gate) Retrieve(ctx context.Context, query string) (Outcome, error) {
	return g.RetrieveWith(ctx, query, g.cfg.TopK, g.cfg.Threshold)
}

// RetrieveWith runs the gate with explicit k and threshold. Store errors are
// returned unchanged; NoMatch is never an error.
func (g *Gate) RetrieveWith(ctx context.Context, query string, k int, threshold float64) (Outcome, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return NoMatch, apperrors.Wrap(CodeInvalidQuery, "query is empty", nil)
	}
	if k <= 0 {
		return NoMatch, apperrors.Wrap(CodeInvalidQuery, fmt.Sprintf("k must be positive, got %d", k), nil)
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return NoMatch, apperrors.Wrap(CodeInvalidQuery, fmt.Sprintf("threshold must be within [0,1], got %v", threshold), nil)
	}

	if g.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.QueryTimeout)
		defer cancel()
	}

	start := time.Now()
	results, err := g.store.Query(ctx, query, k)
	if err != nil {
		g.metrics.ObserveRetrieval(metrics.OutcomeError, time.Since(start), 0)
		g.logger.Warn("retrieval failed", "code", apperrors.CodeOf(err), "error", err)
		return NoMatch, err
	}

	kept := make([]Match, 0, len(results))
	for _, m := range results {
		if m.Score >= threshold {
			kept = append(kept, m)
		}
	}
	elapsed := time.Since(start)
	if len(kept) == 0 {
		g.metrics.ObserveRetrieval(metrics.OutcomeNoMatch, elapsed, 0)
		g.logger.Debug("retrieval below threshold", "candidates", len(results), "threshold", threshold)
		return NoMatch, nil
	}
	g.metrics.ObserveRetrieval(metrics.OutcomeMatch, elapsed, len(kept))
	g.logger.Debug("retrieval matched", "matches", len(kept), "best", kept[0].Score)
	return Outcome{Matches: kept}, nil
}
