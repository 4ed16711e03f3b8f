package knowledge

import "context"

// Embedder turns texts into fixed-length vectors. The result is parallel to
// the input and must be deterministic for a given model.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is the similarity-search backend behind the Store. Search returns
// cosine similarities; the Store applies the final ranking.
type Index interface {
	// Replace discards every published entry and stores entries tagged with
	// fingerprint. Implementations keep the previous contents on failure
	// where the backend allows it.
	Replace(ctx context.Context, fingerprint string, entries []Entry) error
	Search(ctx context.Context, vector []float32, k int) ([]Scored, error)
	Count(ctx context.Context) (int, error)
	// Fingerprint returns the tag of the published corpus; ok is false when
	// nothing was ever published.
	Fingerprint(ctx context.Context) (fingerprint string, ok bool, err error)
}
