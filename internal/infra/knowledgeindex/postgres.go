package knowledgeindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/yanqian/bank-support/internal/domain/knowledge"
)

const postgresSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS knowledge_entries (
	id            BIGINT PRIMARY KEY,
	question_text TEXT   NOT NULL,
	answer_text   TEXT   NOT NULL,
	embedding     vector NOT NULL
);

CREATE TABLE IF NOT EXISTS knowledge_meta (
	singleton   BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
	fingerprint TEXT        NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Postgres stores entries in a pgvector table and ranks with the cosine
// distance operator.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs the index.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the tables when they do not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate knowledge schema: %w", err)
	}
	return nil
}

// Replace truncates and refills the table in one transaction, so a failed
// build leaves the previous corpus in place.
func (p *Postgres) Replace(ctx context.Context, fingerprint string, entries []knowledge.Entry) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `TRUNCATE knowledge_entries`); err != nil {
		return fmt.Errorf("truncate entries: %w", err)
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO knowledge_entries (id, question_text, answer_text, embedding)
			VALUES ($1, $2, $3, $4)
		`, e.ID, e.Question, e.Answer, pgvector.NewVector(e.Embedding))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert entries: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO knowledge_meta (singleton, fingerprint, updated_at)
		VALUES (TRUE, $1, now())
		ON CONFLICT (singleton) DO UPDATE SET fingerprint = EXCLUDED.fingerprint, updated_at = EXCLUDED.updated_at
	`, fingerprint); err != nil {
		return fmt.Errorf("store fingerprint: %w", err)
	}
	return tx.Commit(ctx)
}

// Search returns the k nearest entries by cosine distance, ties by id.
func (p *Postgres) Search(ctx context.Context, vector []float32, k int) ([]knowledge.Scored, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, question_text, answer_text, 1 - (embedding <=> $1) AS similarity
		FROM knowledge_entries
		ORDER BY embedding <=> $1, id
		LIMIT $2
	`, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []knowledge.Scored
	for rows.Next() {
		var hit knowledge.Scored
		if err := rows.Scan(&hit.Entry.ID, &hit.Entry.Question, &hit.Entry.Answer, &hit.Similarity); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// Count returns the number of stored entries.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM knowledge_entries`).Scan(&count)
	return count, err
}

// Fingerprint reads the tag written by the last Replace.
func (p *Postgres) Fingerprint(ctx context.Context) (string, bool, error) {
	var fingerprint string
	err := p.pool.QueryRow(ctx, `SELECT fingerprint FROM knowledge_meta WHERE singleton`).Scan(&fingerprint)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return fingerprint, true, nil
}

var _ knowledge.Index = (*Postgres)(nil)
