// Package user reads the residents directory slice this service needs: users
// and their project memberships.
package user

import (
	"context"
	"sync"

	"gatepass/internal/guestpass/models"
	"gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

type MemoryStore struct {
	mu    sync.RWMutex
	users map[domain.UserID]*models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[domain.UserID]*models.User)}
}

func (s *MemoryStore) FindByID(_ context.Context, userID domain.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *stored
	found.Memberships = append([]models.Membership(nil), stored.Memberships...)
	return &found, nil
}

// Put upserts a user; seeding and test helper.
func (s *MemoryStore) Put(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *user
	stored.Memberships = append([]models.Membership(nil), user.Memberships...)
	s.users[user.ID] = &stored
	return nil
}
