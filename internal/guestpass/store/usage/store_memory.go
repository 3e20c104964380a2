// Package usage persists the informational per-unit usage aggregate, keyed by
// (project, unit, period). Enforcement never reads it; the month display and
// reconciliation do.
package usage

import (
	"context"
	"sync"
	"time"

	"gatepass/internal/guestpass/models"
	"gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

type MemoryStore struct {
	mu     sync.Mutex
	usages map[string]*models.UnitUsage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{usages: make(map[string]*models.UnitUsage)}
}

func key(projectID domain.ProjectID, unit domain.UnitID, period string) string {
	return projectID.String() + "/" + unit.String() + "/" + period
}

func (s *MemoryStore) IncrementUsed(_ context.Context, projectID domain.ProjectID, unit domain.UnitID, period string, by domain.UserID, byName string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(projectID, unit, period)
	stored, ok := s.usages[k]
	if !ok {
		stored = &models.UnitUsage{
			ProjectID: projectID,
			Unit:      unit,
			Period:    period,
		}
		s.usages[k] = stored
	}
	stored.UsedThisMonth++
	stored.LastPassCreatedBy = by
	stored.LastPassCreatedByName = byName
	stored.UpdatedAt = now
	return nil
}

func (s *MemoryStore) SetUsed(_ context.Context, projectID domain.ProjectID, unit domain.UnitID, period string, count int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(projectID, unit, period)
	stored, ok := s.usages[k]
	if !ok {
		stored = &models.UnitUsage{
			ProjectID: projectID,
			Unit:      unit,
			Period:    period,
		}
		s.usages[k] = stored
	}
	stored.UsedThisMonth = count
	stored.UpdatedAt = now
	return nil
}

func (s *MemoryStore) UnitUsage(_ context.Context, projectID domain.ProjectID, unit domain.UnitID, period string) (*models.UnitUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.usages[key(projectID, unit, period)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *stored
	return &found, nil
}
