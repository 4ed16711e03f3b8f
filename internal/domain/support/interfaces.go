package support

import (
	"context"

	"github.com/yanqian/bank-support/internal/domain/knowledge"
)

// Retriever supplies confidence-gated FAQ context.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (knowledge.Outcome, error)
}

// LLM is an opaque chat completion service.
type LLM interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// SessionStore persists per-user sessions.
type SessionStore interface {
	Get(ctx context.Context, userID int64) (Session, bool, error)
	Save(ctx context.Context, session Session) error
}

// OperatorDesk tracks the single human operator. Acquire reports false when
// another user holds the desk; Release is a no-op unless userID holds it.
type OperatorDesk interface {
	Acquire(ctx context.Context, userID int64) (bool, error)
	Release(ctx context.Context, userID int64) error
}

// TicketRepository persists handoff tickets.
type TicketRepository interface {
	CreateTicket(ctx context.Context, ticket Ticket) error
	ListTickets(ctx context.Context, limit int) ([]Ticket, error)
}

// RatingRepository persists answer ratings.
type RatingRepository interface {
	SaveRating(ctx context.Context, rating Rating) error
	RatingSummary(ctx context.Context) (RatingSummary, error)
}

// RatingArchive mirrors ratings to long-term storage.
type RatingArchive interface {
	Archive(ctx context.Context, rating Rating) error
}
