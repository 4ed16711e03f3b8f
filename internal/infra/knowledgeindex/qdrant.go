package knowledgeindex

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/yanqian/bank-support/internal/domain/knowledge"
)

const (
	payloadQuestion    = "question"
	payloadAnswer      = "answer"
	payloadFingerprint = "fingerprint"
)

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
	APIKey     string
	UseTLS     bool
}

// Qdrant stores entries as points of a cosine-distance collection. Point IDs
// are the entry IDs.
type Qdrant struct {
	client     *qdrant.Client
	collection string
}

// NewQdrant connects to Qdrant over gRPC.
func NewQdrant(cfg QdrantConfig) (*Qdrant, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "bank_faq"
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: create client: %w", err)
	}
	return &Qdrant{client: client, collection: cfg.Collection}, nil
}

// Replace drops and recreates the collection sized to the new vectors, then
// uploads every entry. Qdrant has no transactions: a failure after the drop
// leaves the collection empty until the next successful build.
func (q *Qdrant) Replace(ctx context.Context, fingerprint string, entries []knowledge.Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("qdrant: refusing to publish an empty corpus")
	}
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("qdrant: check collection: %w", err)
	}
	if exists {
		if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
			return fmt.Errorf("qdrant: drop collection: %w", err)
		}
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(len(entries[0].Embedding)),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %q: %w", q.collection, err)
	}

	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(e.ID)),
			Vectors: qdrant.NewVectors(e.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadQuestion:    e.Question,
				payloadAnswer:      e.Answer,
				payloadFingerprint: fingerprint,
			}),
		})
	}
	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert: %w", err)
	}
	return nil
}

// Search runs a cosine query; Qdrant scores are already similarities.
func (q *Qdrant) Search(ctx context.Context, vector []float32, k int) ([]knowledge.Scored, error) {
	limit := uint64(k)
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query: %w", err)
	}
	hits := make([]knowledge.Scored, 0, len(results))
	for _, r := range results {
		hits = append(hits, knowledge.Scored{
			Entry:      entryFromPayload(r.GetId(), r.GetPayload()),
			Similarity: float64(r.GetScore()),
		})
	}
	return hits, nil
}

// Count returns the exact number of points; a missing collection counts as
// empty.
func (q *Qdrant) Count(ctx context.Context) (int, error) {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return 0, fmt.Errorf("qdrant: check collection: %w", err)
	}
	if !exists {
		return 0, nil
	}
	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count: %w", err)
	}
	return int(count), nil
}

// Fingerprint reads the tag stored on any point of the collection.
func (q *Qdrant) Fingerprint(ctx context.Context) (string, bool, error) {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return "", false, fmt.Errorf("qdrant: check collection: %w", err)
	}
	if !exists {
		return "", false, nil
	}
	limit := uint32(1)
	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.collection,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("qdrant: scroll: %w", err)
	}
	if len(points) == 0 {
		return "", false, nil
	}
	value, ok := points[0].GetPayload()[payloadFingerprint]
	if !ok {
		return "", false, nil
	}
	return value.GetStringValue(), true, nil
}

// Close releases the gRPC connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}

func entryFromPayload(id *qdrant.PointId, payload map[string]*qdrant.Value) knowledge.Entry {
	entry := knowledge.Entry{ID: int64(id.GetNum())}
	if v, ok := payload[payloadQuestion]; ok {
		entry.Question = v.GetStringValue()
	}
	if v, ok := payload[payloadAnswer]; ok {
		entry.Answer = v.GetStringValue()
	}
	return entry
}

var _ knowledge.Index = (*Qdrant)(nil)
