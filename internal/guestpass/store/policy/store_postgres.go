package policy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gatepass/internal/guestpass/models"
	"gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// PostgresStore reads policy documents from PostgreSQL. Policy writes happen
// through the admin tooling, not this service, so the store is read-only.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ProjectPolicy(ctx context.Context, projectID domain.ProjectID) (*models.ProjectPolicy, error) {
	query := `
		SELECT project_id, block_all_users, block_family_members, monthly_limit, validity_duration_hours, updated_at
		FROM project_policies
		WHERE project_id = $1
	`
	var policy models.ProjectPolicy
	var id string
	err := s.db.QueryRowContext(ctx, query, projectID.String()).Scan(
		&id,
		&policy.BlockAllUsers,
		&policy.BlockFamilyMembers,
		&policy.MonthlyLimit,
		&policy.ValidityDurationHours,
		&policy.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get project policy: %w", err)
	}
	policy.ProjectID = domain.ProjectID(id)
	return &policy, nil
}

func (s *PostgresStore) UnitPolicy(ctx context.Context, projectID domain.ProjectID, unit domain.UnitID) (*models.UnitPolicy, error) {
	query := `
		SELECT project_id, unit, blocked, blocked_reason, blocked_at, monthly_limit, updated_at
		FROM unit_policies
		WHERE project_id = $1 AND unit = $2
	`
	var policy models.UnitPolicy
	var id, unitID string
	var blockedReason sql.NullString
	var blockedAt sql.NullTime
	var monthlyLimit sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, projectID.String(), unit.String()).Scan(
		&id,
		&unitID,
		&policy.Blocked,
		&blockedReason,
		&blockedAt,
		&monthlyLimit,
		&policy.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get unit policy: %w", err)
	}
	policy.ProjectID = domain.ProjectID(id)
	policy.Unit = domain.UnitID(unitID)
	if blockedReason.Valid {
		policy.BlockedReason = blockedReason.String
	}
	if blockedAt.Valid {
		policy.BlockedAt = &blockedAt.Time
	}
	if monthlyLimit.Valid {
		limit := int(monthlyLimit.Int64)
		policy.MonthlyLimit = &limit
	}
	return &policy, nil
}

func (s *PostgresStore) UserPolicy(ctx context.Context, projectID domain.ProjectID, userID domain.UserID) (*models.UserPolicy, error) {
	query := `
		SELECT project_id, user_id, blocked, blocked_reason, blocked_at
		FROM user_policies
		WHERE project_id = $1 AND user_id = $2
	`
	var policy models.UserPolicy
	var id, user string
	var blockedReason sql.NullString
	var blockedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, projectID.String(), userID.String()).Scan(
		&id,
		&user,
		&policy.Blocked,
		&blockedReason,
		&blockedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get user policy: %w", err)
	}
	policy.ProjectID = domain.ProjectID(id)
	policy.UserID = domain.UserID(user)
	if blockedReason.Valid {
		policy.BlockedReason = blockedReason.String
	}
	if blockedAt.Valid {
		policy.BlockedAt = &blockedAt.Time
	}
	return &policy, nil
}
