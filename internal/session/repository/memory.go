package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"core-auth/internal/session/domain"
)

// MemoryRepository is an in-process Repository guarded by a mutex. It backs
// service tests and single-node development setups.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	// FailWith, when set, is returned by every call.
	FailWith error
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*domain.Session)}
}

func clone(s *domain.Session) *domain.Session {
	c := *s
	if s.RevokedAt != nil {
		t := *s.RevokedAt
		c.RevokedAt = &t
	}
	return &c
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return clone(s), nil
}

func (m *MemoryRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	for _, s := range m.sessions {
		if s.RefreshTokenHash == hash {
			return clone(s), nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) ListByAccount(ctx context.Context, accountID string) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	out := make([]*domain.Session, 0)
	for _, s := range m.sessions {
		if s.AccountID == accountID {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) Create(ctx context.Context, s *domain.Session) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return "", m.FailWith
	}
	m.sessions[s.ID] = clone(s)
	return s.ID, nil
}

func (m *MemoryRepository) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return false, m.FailWith
	}
	return m.revokeLocked(id, "", at), nil
}

func (m *MemoryRepository) RevokeForAccount(ctx context.Context, accountID, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return false, m.FailWith
	}
	return m.revokeLocked(id, accountID, at), nil
}

func (m *MemoryRepository) revokeLocked(id, accountID string, at time.Time) bool {
	s, ok := m.sessions[id]
	if !ok || s.RevokedAt != nil || (accountID != "" && s.AccountID != accountID) {
		return false
	}
	t := at
	s.RevokedAt = &t
	return true
}

func (m *MemoryRepository) RevokeAllByAccount(ctx context.Context, accountID, exceptID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return 0, m.FailWith
	}
	var n int64
	for id, s := range m.sessions {
		if s.AccountID == accountID && id != exceptID && m.revokeLocked(id, accountID, at) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) DeleteAllByAccount(ctx context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return 0, m.FailWith
	}
	var n int64
	for id, s := range m.sessions {
		if s.AccountID == accountID {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) Rotate(ctx context.Context, oldID, oldHash string, next *domain.Session) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return false, m.FailWith
	}
	old, ok := m.sessions[oldID]
	if !ok || old.RefreshTokenHash != oldHash || old.RevokedAt != nil {
		return false, nil
	}
	delete(m.sessions, oldID)
	m.sessions[next.ID] = clone(next)
	return true, nil
}

func (m *MemoryRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return 0, m.FailWith
	}
	var n int64
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(before) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions in any state.
func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
