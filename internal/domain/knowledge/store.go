package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	apperrors "github.com/yanqian/bank-support/pkg/errors"
	"github.com/yanqian/bank-support/pkg/metrics"
)

// tieSlack is how many hits beyond k are requested from the index.
const tieSlack = 4

// Store owns the published FAQ entries. Builds are serialized and publish
// atomically with respect to queries: a query sees either the previous or the
// new corpus, never a mix.
type Store struct {
	index    Index
	embedder Embedder
	modelID  string
	logger   *slog.Logger
	metrics  *metrics.Recorder

	// mu guards the index contents: queries hold it shared, publishing holds
	// it exclusively.
	mu sync.RWMutex
	// buildMu serializes builds so embedding runs outside mu.
	buildMu sync.Mutex
}

// NewStore wires a store over index. modelID names the embedding model and is
// mixed into the corpus fingerprint.
func NewStore(index Index, embedder Embedder, modelID string, logger *slog.Logger, recorder *metrics.Recorder) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		index:    index,
		embedder: embedder,
		modelID:  modelID,
		logger:   logger.With("component", "knowledge.store"),
		metrics:  recorder,
	}
}

// BuildFromFile loads the corpus at path and builds it.
func (s *Store) BuildFromFile(ctx context.Context, path string) (BuildReport, error) {
	corpus, err := LoadCorpus(path)
	if err != nil {
		s.metrics.ObserveBuild(metrics.BuildFailed, 0)
		return BuildReport{}, apperrors.Wrap(CodeBuild, "load corpus", err)
	}
	return s.Build(ctx, corpus)
}

// Build embeds every question of corpus and replaces the published entries.
// It is skipped when the index already holds the same corpus embedded by the
// same model. On failure the previous contents stay published.
func (s *Store) Build(ctx context.Context, corpus Corpus) (BuildReport, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	start := time.Now()
	report, err := s.build(ctx, corpus)
	report.Duration = time.Since(start)
	switch {
	case err != nil:
		s.metrics.ObserveBuild(metrics.BuildFailed, 0)
		s.logger.Error("knowledge build failed", "entries", len(corpus), "error", err)
	case report.Skipped:
		s.metrics.ObserveBuild(metrics.BuildSkipped, report.Entries)
		s.logger.Info("knowledge build skipped, corpus unchanged", "entries", report.Entries, "fingerprint", report.Fingerprint)
	default:
		s.metrics.ObserveBuild(metrics.BuildBuilt, report.Entries)
		s.logger.Info("knowledge build complete",
			"entries", report.Entries,
			"dimensions", report.Dimensions,
			"durationMs", report.Duration.Milliseconds(),
		)
	}
	return report, err
}

func (s *Store) build(ctx context.Context, corpus Corpus) (BuildReport, error) {
	if len(corpus) == 0 {
		return BuildReport{}, apperrors.Wrap(CodeBuild, "corpus is empty", nil)
	}
	fingerprint := corpus.Fingerprint(s.modelID)
	report := BuildReport{Entries: len(corpus), Fingerprint: fingerprint}

	current, ok, err := s.index.Fingerprint(ctx)
	if err != nil {
		return BuildReport{}, apperrors.Wrap(CodeBuild, "read index fingerprint", err)
	}
	if ok && current == fingerprint {
		count, err := s.index.Count(ctx)
		if err != nil {
			return BuildReport{}, apperrors.Wrap(CodeBuild, "count index entries", err)
		}
		if count == len(corpus) {
			report.Skipped = true
			return report, nil
		}
	}

	vectors, err := s.embedder.Embed(ctx, corpus.Questions())
	if err != nil {
		return BuildReport{}, apperrors.Wrap(CodeBuild, "embed corpus", err)
	}
	if len(vectors) != len(corpus) {
		return BuildReport{}, apperrors.Wrap(CodeBuild, "embed corpus",
			fmt.Errorf("embedder returned %d vectors for %d questions", len(vectors), len(corpus)))
	}

	dims := len(vectors[0])
	entries := make([]Entry, len(corpus))
	for i, qa := range corpus {
		if len(vectors[i]) == 0 || len(vectors[i]) != dims {
			return BuildReport{}, apperrors.Wrap(CodeBuild, "embed corpus",
				fmt.Errorf("question %d has %d dimensions, want %d", i+1, len(vectors[i]), dims))
		}
		entries[i] = Entry{
			ID:        int64(i + 1),
			Question:  qa.Question,
			Answer:    qa.Answer,
			Embedding: vectors[i],
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Replace(ctx, fingerprint, entries); err != nil {
		return BuildReport{}, apperrors.Wrap(CodeBuild, "publish entries", err)
	}
	report.Dimensions = dims
	return report, nil
}

// Query returns the min(k, size) entries nearest to text, ranked by
// similarity descending with ties in corpus order.
func (s *Store) Query(ctx context.Context, text string, k int) ([]Match, error) {
	if k <= 0 {
		return nil, apperrors.Wrap(CodeInvalidQuery, fmt.Sprintf("k must be positive, got %d", k), nil)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	count, err := s.index.Count(ctx)
	if err != nil {
		return nil, wrapContext(ctx, CodeIndex, "count index entries", err)
	}
	if count == 0 {
		return nil, apperrors.Wrap(CodeEmptyStore, "knowledge store has no entries", nil)
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, wrapContext(ctx, CodeEmbedding, "embed query", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, apperrors.Wrap(CodeEmbedding, "embed query", errors.New("embedder returned no vector"))
	}

	hits, err := s.search(ctx, vectors[0], k, count)
	if err != nil {
		return nil, err
	}
	if len(hits) > k {
		hits = hits[:k]
	}

	matches := make([]Match, len(hits))
	for i, hit := range hits {
		matches[i] = Match{
			Question: hit.Entry.Question,
			Answer:   hit.Entry.Answer,
			Score:    hit.Similarity,
		}
	}
	return matches, nil
}

// Stats reports what is currently published.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count, err := s.index.Count(ctx)
	if err != nil {
		return Stats{}, apperrors.Wrap(CodeIndex, "count index entries", err)
	}
	fingerprint, _, err := s.index.Fingerprint(ctx)
	if err != nil {
		return Stats{}, apperrors.Wrap(CodeIndex, "read index fingerprint", err)
	}
	return Stats{Entries: count, Fingerprint: fingerprint}, nil
}

// rank orders hits by similarity descending, then by ascending ID. Backends
// disagree on tie order, so the store never trusts theirs.
// search asks the index for more than k hits so entries tied with the k-th
// one are all present before ranking; backends cut their result at the limit
// in arbitrary tie order. The limit grows while the tail still ties.
func (s *Store) search(ctx context.Context, vector []float32, k, count int) ([]Scored, error) {
	limit := min(k+tieSlack, count)
	for {
		hits, err := s.index.Search(ctx, vector, limit)
		if err != nil {
			return nil, wrapContext(ctx, CodeIndex, "search index", err)
		}
		rank(hits)
		if limit >= count || len(hits) < limit || len(hits) <= k ||
			hits[k-1].Similarity > hits[len(hits)-1].Similarity {
			return hits, nil
		}
		limit = min(limit*2, count)
	}
}

func rank(hits []Scored) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Entry.ID < hits[j].Entry.ID
	})
}

// wrapContext reports a deadline as a timeout regardless of which step hit it.
func wrapContext(ctx context.Context, code, message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.Wrap(CodeTimeout, message+" timed out", err)
	}
	return apperrors.Wrap(code, message, err)
}
