package supportrepo

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/yanqian/bank-support/internal/domain/support"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tickets (
    id          TEXT    PRIMARY KEY,
    user_id     INTEGER NOT NULL,
    question    TEXT    NOT NULL,
    created_at  INTEGER NOT NULL  -- Unix milliseconds
);
CREATE INDEX IF NOT EXISTS idx_tickets_created ON tickets (created_at);

CREATE TABLE IF NOT EXISTS ratings (
    id          TEXT    PRIMARY KEY,
    user_id     INTEGER NOT NULL,
    question    TEXT    NOT NULL,
    answer      TEXT    NOT NULL,
    score       INTEGER NOT NULL CHECK (score BETWEEN 1 AND 5),
    created_at  INTEGER NOT NULL
);
`

// SQLiteRepository persists tickets and ratings in a local SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it. Use
// ":memory:" in tests.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("supportrepo: create dir for %s: %w", path, err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("supportrepo: open %s: %w", path, err)
	}
	// one connection: avoids SQLITE_BUSY and keeps a :memory: database alive
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("supportrepo: migrate: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) CreateTicket(ctx context.Context, ticket support.Ticket) error {
	const q = `INSERT INTO tickets (id, user_id, question, created_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q, ticket.ID, ticket.UserID, ticket.Question, ticket.CreatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("supportrepo: create ticket: %w", err)
	}
	return nil
}

// ListTickets returns up to limit tickets, newest first.
func (r *SQLiteRepository) ListTickets(ctx context.Context, limit int) ([]support.Ticket, error) {
	const q = `SELECT id, user_id, question, created_at FROM tickets ORDER BY created_at DESC, rowid DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("supportrepo: list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []support.Ticket
	for rows.Next() {
		var (
			t  support.Ticket
			ms int64
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Question, &ms); err != nil {
			return nil, fmt.Errorf("supportrepo: scan ticket: %w", err)
		}
		t.CreatedAt = time.UnixMilli(ms).UTC()
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (r *SQLiteRepository) SaveRating(ctx context.Context, rating support.Rating) error {
	const q = `INSERT INTO ratings (id, user_id, question, answer, score, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		rating.ID, rating.UserID, rating.Question, rating.Answer, rating.Score, rating.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("supportrepo: save rating: %w", err)
	}
	return nil
}

// RatingSummary aggregates every stored rating.
func (r *SQLiteRepository) RatingSummary(ctx context.Context) (support.RatingSummary, error) {
	var (
		avg     sql.NullFloat64
		summary support.RatingSummary
	)
	err := r.db.QueryRowContext(ctx, `SELECT AVG(score), COUNT(*) FROM ratings`).Scan(&avg, &summary.Count)
	if err != nil {
		return support.RatingSummary{}, fmt.Errorf("supportrepo: rating summary: %w", err)
	}
	summary.Average = avg.Float64
	return summary, nil
}

// Close releases the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

var (
	_ support.TicketRepository = (*SQLiteRepository)(nil)
	_ support.RatingRepository = (*SQLiteRepository)(nil)
)
