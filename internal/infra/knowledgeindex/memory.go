package knowledgeindex

import (
	"context"
	"sort"
	"sync"

	"github.com/yanqian/bank-support/internal/domain/knowledge"
)

// Memory keeps entries in process and answers queries by brute-force cosine
// similarity. It suits the small FAQ corpora the bot ships with.
type Memory struct {
	mu          sync.RWMutex
	entries     []knowledge.Entry
	fingerprint string
	published   bool
}

// NewMemory constructs an empty index.
func NewMemory() *Memory {
	return &Memory{}
}

// Replace swaps the whole entry set.
func (m *Memory) Replace(_ context.Context, fingerprint string, entries []knowledge.Entry) error {
	copied := make([]knowledge.Entry, len(entries))
	copy(copied, entries)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = copied
	m.fingerprint = fingerprint
	m.published = true
	return nil
}

// Search scores every entry against vector and returns the best k.
func (m *Memory) Search(_ context.Context, vector []float32, k int) ([]knowledge.Scored, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]knowledge.Scored, 0, len(m.entries))
	for _, entry := range m.entries {
		hits = append(hits, knowledge.Scored{Entry: entry, Similarity: knowledge.Cosine(vector, entry.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of published entries.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Fingerprint returns the tag of the last Replace.
func (m *Memory) Fingerprint(_ context.Context) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fingerprint, m.published, nil
}

var _ knowledge.Index = (*Memory)(nil)
