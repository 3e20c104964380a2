// Package pass persists guest pass records. The memory store backs unit tests
// and single-process deployments; PostgresStore is the production backend.
package pass

import (
	"context"
	"sort"
	"sync"
	"time"

	"gatepass/internal/guestpass/models"
	"gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// MemoryStore keeps passes in a map keyed by (project, pass id). All state
// transitions run under the write lock, so MarkUsed is a true compare-and-set.
type MemoryStore struct {
	mu     sync.RWMutex
	passes map[string]*models.GuestPass
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{passes: make(map[string]*models.GuestPass)}
}

func key(projectID domain.ProjectID, passID domain.PassID) string {
	return projectID.String() + "/" + passID.String()
}

func (s *MemoryStore) Save(_ context.Context, pass *models.GuestPass) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(pass.ProjectID, pass.ID)
	if _, exists := s.passes[k]; exists {
		return sentinel.ErrConflict
	}
	stored := *pass
	s.passes[k] = &stored
	return nil
}

func (s *MemoryStore) FindByPublicID(_ context.Context, projectID domain.ProjectID, passID domain.PassID) (*models.GuestPass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.passes[key(projectID, passID)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *stored
	return &found, nil
}

func (s *MemoryStore) MarkSent(_ context.Context, projectID domain.ProjectID, passID domain.PassID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.passes[key(projectID, passID)]
	if !ok || stored.Deleted {
		return sentinel.ErrNotFound
	}
	stored.SentStatus = true
	stored.SentAt = &at
	stored.UpdatedAt = at
	return nil
}

// MarkUsed ignores the deleted flag: soft deletion affects quota counting and
// listing, never redemption validity.
func (s *MemoryStore) MarkUsed(_ context.Context, projectID domain.ProjectID, passID domain.PassID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.passes[key(projectID, passID)]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Used {
		return sentinel.ErrAlreadyUsed
	}
	stored.Used = true
	stored.UsedAt = &at
	stored.UpdatedAt = at
	return nil
}

func (s *MemoryStore) CountActive(_ context.Context, projectID domain.ProjectID, scope models.CountScope, value string, since time.Time) (int, error) {
	if !scope.IsValid() {
		return 0, sentinel.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, stored := range s.passes {
		if matches(stored, projectID, scope, value) && !stored.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) List(_ context.Context, projectID domain.ProjectID, scope models.CountScope, value string) ([]*models.GuestPass, error) {
	if !scope.IsValid() {
		return nil, sentinel.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.GuestPass
	for _, stored := range s.passes {
		if matches(stored, projectID, scope, value) {
			found := *stored
			result = append(result, &found)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Delete soft-deletes a pass; test and admin helper.
func (s *MemoryStore) Delete(_ context.Context, projectID domain.ProjectID, passID domain.PassID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.passes[key(projectID, passID)]
	if !ok {
		return sentinel.ErrNotFound
	}
	stored.Deleted = true
	return nil
}

func matches(pass *models.GuestPass, projectID domain.ProjectID, scope models.CountScope, value string) bool {
	if pass.ProjectID != projectID || pass.Deleted {
		return false
	}
	switch scope {
	case models.ScopeUser:
		return pass.UserID.String() == value
	case models.ScopeUnit:
		return pass.Unit.String() == value
	default:
		return false
	}
}
