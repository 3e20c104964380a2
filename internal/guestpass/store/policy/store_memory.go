// Package policy persists the three policy scopes: project, unit and the
// deprecated per-user block flag.
package policy

import (
	"context"
	"sync"

	"gatepass/internal/guestpass/models"
	"gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// MemoryStore keeps policy documents in maps. Absent documents return
// sentinel.ErrNotFound per the store contract.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[domain.ProjectID]*models.ProjectPolicy
	units    map[string]*models.UnitPolicy
	users    map[string]*models.UserPolicy
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[domain.ProjectID]*models.ProjectPolicy),
		units:    make(map[string]*models.UnitPolicy),
		users:    make(map[string]*models.UserPolicy),
	}
}

func unitKey(projectID domain.ProjectID, unit domain.UnitID) string {
	return projectID.String() + "/" + unit.String()
}

func userKey(projectID domain.ProjectID, userID domain.UserID) string {
	return projectID.String() + "/" + userID.String()
}

func (s *MemoryStore) ProjectPolicy(_ context.Context, projectID domain.ProjectID) (*models.ProjectPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.projects[projectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *stored
	return &found, nil
}

func (s *MemoryStore) UnitPolicy(_ context.Context, projectID domain.ProjectID, unit domain.UnitID) (*models.UnitPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.units[unitKey(projectID, unit)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *stored
	return &found, nil
}

func (s *MemoryStore) UserPolicy(_ context.Context, projectID domain.ProjectID, userID domain.UserID) (*models.UserPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.users[userKey(projectID, userID)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *stored
	return &found, nil
}

// PutProjectPolicy upserts a project policy; seeding and test helper.
func (s *MemoryStore) PutProjectPolicy(_ context.Context, policy *models.ProjectPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *policy
	s.projects[policy.ProjectID] = &stored
	return nil
}

// PutUnitPolicy upserts a unit policy; seeding and test helper.
func (s *MemoryStore) PutUnitPolicy(_ context.Context, policy *models.UnitPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *policy
	s.units[unitKey(policy.ProjectID, policy.Unit)] = &stored
	return nil
}

// PutUserPolicy upserts a user policy; seeding and test helper.
func (s *MemoryStore) PutUserPolicy(_ context.Context, policy *models.UserPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *policy
	s.users[userKey(policy.ProjectID, policy.UserID)] = &stored
	return nil
}
