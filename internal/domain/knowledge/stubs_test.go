package knowledge

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tableEmbedder maps known texts to fixed vectors and counts calls.
type tableEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   int
	block   bool
}

func (e *tableEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := e.vectors[text]
		if !ok {
			vec = []float32{0, 0, 1}
		}
		out[i] = vec
	}
	return out, nil
}

func (e *tableEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// sliceIndex is a minimal Index; it returns hits in reverse ID order on ties
// so the store's own tie-breaking is exercised.
type sliceIndex struct {
	entries     []Entry
	fingerprint string
	published   bool
	replaces    int
	replaceErr  error
	lastLimit   int
}

func (s *sliceIndex) Replace(_ context.Context, fingerprint string, entries []Entry) error {
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.replaces++
	s.entries = append([]Entry(nil), entries...)
	s.fingerprint = fingerprint
	s.published = true
	return nil
}

func (s *sliceIndex) Search(_ context.Context, vector []float32, k int) ([]Scored, error) {
	s.lastLimit = k
	hits := make([]Scored, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		hits = append(hits, Scored{Entry: s.entries[i], Similarity: Cosine(vector, s.entries[i].Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *sliceIndex) Count(context.Context) (int, error) {
	return len(s.entries), nil
}

func (s *sliceIndex) Fingerprint(context.Context) (string, bool, error) {
	return s.fingerprint, s.published, nil
}

// stubQuerier returns canned results to the gate.
type stubQuerier struct {
	results []Match
	err     error
	calls   int
	lastK   int
}

func (q *stubQuerier) Query(_ context.Context, _ string, k int) ([]Match, error) {
	q.calls++
	q.lastK = k
	if q.err != nil {
		return nil, q.err
	}
	if k < len(q.results) {
		return q.results[:k], nil
	}
	return q.results, nil
}
