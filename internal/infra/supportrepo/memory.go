package supportrepo

import (
	"context"
	"sync"

	"github.com/yanqian/bank-support/internal/domain/support"
)

// MemoryRepository keeps tickets and ratings in process.
type MemoryRepository struct {
	mu      sync.RWMutex
	tickets []support.Ticket
	ratings []support.Rating
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) CreateTicket(_ context.Context, ticket support.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets = append(r.tickets, ticket)
	return nil
}

// ListTickets returns up to limit tickets, newest first.
func (r *MemoryRepository) ListTickets(_ context.Context, limit int) ([]support.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]support.Ticket, 0, min(limit, len(r.tickets)))
	for i := len(r.tickets) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.tickets[i])
	}
	return out, nil
}

func (r *MemoryRepository) SaveRating(_ context.Context, rating support.Rating) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ratings = append(r.ratings, rating)
	return nil
}

// RatingSummary aggregates every stored rating.
func (r *MemoryRepository) RatingSummary(_ context.Context) (support.RatingSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	summary := support.RatingSummary{Count: len(r.ratings)}
	if summary.Count == 0 {
		return summary, nil
	}
	var total int
	for _, rating := range r.ratings {
		total += rating.Score
	}
	summary.Average = float64(total) / float64(summary.Count)
	return summary, nil
}

var (
	_ support.TicketRepository = (*MemoryRepository)(nil)
	_ support.RatingRepository = (*MemoryRepository)(nil)
)
