package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/yanqian/bank-support/internal/domain/knowledge"
)

// DefaultTrigramDimensions is the bucket count of the trigram embedder.
const DefaultTrigramDimensions = 2048

// Trigram embeds text offline by hashing padded character trigrams of every
// normalized word into a fixed number of buckets. Paraphrases sharing most
// words land close together; unrelated questions do not.
type Trigram struct {
	dim int
}

// NewTrigram constructs the embedder. dim <= 0 selects the default.
func NewTrigram(dim int) *Trigram {
	if dim <= 0 {
		dim = DefaultTrigramDimensions
	}
	return &Trigram{dim: dim}
}

// Model identifies the embedding space for corpus fingerprints.
func (e *Trigram) Model() string {
	return fmt.Sprintf("trigram-%d", e.dim)
}

// Dimensions reports the vector length.
func (e *Trigram) Dimensions() int {
	return e.dim
}

// Embed returns one L2-normalized vector per text. Text without letters or
// digits yields a zero vector.
func (e *Trigram) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector := make([]float32, e.dim)
		for _, word := range knowledge.Words(text) {
			runes := []rune(" " + word + " ")
			for j := 0; j+3 <= len(runes); j++ {
				hash := fnv.New64a()
				_, _ = hash.Write([]byte(string(runes[j : j+3])))
				vector[hash.Sum64()%uint64(e.dim)]++
			}
		}
		normalize(vector)
		vectors[i] = vector
	}
	return vectors, nil
}

func normalize(vector []float32) {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vector {
		vector[i] /= norm
	}
}

var _ knowledge.Embedder = (*Trigram)(nil)
