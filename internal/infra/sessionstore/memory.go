package sessionstore

import (
	"context"
	"sync"

	"github.com/yanqian/bank-support/internal/domain/support"
)

// MemoryStore keeps sessions and the operator desk in process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]support.Session

	deskMu sync.Mutex
	holder int64
	held   bool
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]support.Session)}
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (support.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	return session, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, session support.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.UserID] = session
	return nil
}

// Acquire takes the desk for userID; it is re-entrant for the holder.
func (s *MemoryStore) Acquire(_ context.Context, userID int64) (bool, error) {
	s.deskMu.Lock()
	defer s.deskMu.Unlock()
	if s.held && s.holder != userID {
		return false, nil
	}
	s.holder, s.held = userID, true
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, userID int64) error {
	s.deskMu.Lock()
	defer s.deskMu.Unlock()
	if s.held && s.holder == userID {
		s.holder, s.held = 0, false
	}
	return nil
}

var (
	_ support.SessionStore = (*MemoryStore)(nil)
	_ support.OperatorDesk = (*MemoryStore)(nil)
)
