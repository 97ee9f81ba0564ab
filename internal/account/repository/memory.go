package repository

import (
	"context"
	"sync"
	"time"

	"core-auth/internal/account/domain"
)

// MemoryRepository is an in-process Repository guarded by a mutex. It backs
// service tests and single-node development setups. Like the Postgres schema it
// enforces unique usernames.
type MemoryRepository struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	// FailWith, when set, is returned by every call.
	FailWith error
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{accounts: make(map[string]*domain.Account)}
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (m *MemoryRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	for _, a := range m.accounts {
		if a.Username == username {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) Create(ctx context.Context, a *domain.Account) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return "", m.FailWith
	}
	if m.usernameTakenLocked(a.Username, "") {
		return "", ErrUsernameTaken
	}
	c := *a
	m.accounts[a.ID] = &c
	return a.ID, nil
}

func (m *MemoryRepository) UpdateUsername(ctx context.Context, id, username string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return false, m.FailWith
	}
	a, ok := m.accounts[id]
	if !ok {
		return false, nil
	}
	if m.usernameTakenLocked(username, id) {
		return false, ErrUsernameTaken
	}
	a.Username = username
	a.UpdatedAt = at
	return true, nil
}

func (m *MemoryRepository) UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return false, m.FailWith
	}
	a, ok := m.accounts[id]
	if !ok {
		return false, nil
	}
	a.PasswordHash = hash
	a.UpdatedAt = at
	return true, nil
}

func (m *MemoryRepository) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return false, m.FailWith
	}
	if _, ok := m.accounts[id]; !ok {
		return false, nil
	}
	delete(m.accounts, id)
	return true, nil
}

func (m *MemoryRepository) usernameTakenLocked(username, exceptID string) bool {
	for id, a := range m.accounts {
		if a.Username == username && id != exceptID {
			return true
		}
	}
	return false
}
