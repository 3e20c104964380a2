package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gatepass/internal/guestpass/models"
	"gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// PostgresStore persists the unit usage aggregate. IncrementUsed is a single
// upsert so concurrent issuances never lose an increment.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) IncrementUsed(ctx context.Context, projectID domain.ProjectID, unit domain.UnitID, period string, by domain.UserID, byName string, now time.Time) error {
	query := `
		INSERT INTO unit_usage (project_id, unit, period, used_this_month, last_pass_created_by, last_pass_created_by_name, updated_at)
		VALUES ($1, $2, $3, 1, $4, $5, $6)
		ON CONFLICT (project_id, unit, period) DO UPDATE SET
			used_this_month = unit_usage.used_this_month + 1,
			last_pass_created_by = EXCLUDED.last_pass_created_by,
			last_pass_created_by_name = EXCLUDED.last_pass_created_by_name,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, projectID.String(), unit.String(), period, by.String(), byName, now)
	if err != nil {
		return fmt.Errorf("increment unit usage: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetUsed(ctx context.Context, projectID domain.ProjectID, unit domain.UnitID, period string, count int, now time.Time) error {
	query := `
		INSERT INTO unit_usage (project_id, unit, period, used_this_month, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id, unit, period) DO UPDATE SET
			used_this_month = EXCLUDED.used_this_month,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, projectID.String(), unit.String(), period, count, now)
	if err != nil {
		return fmt.Errorf("set unit usage: %w", err)
	}
	return nil
}

func (s *PostgresStore) UnitUsage(ctx context.Context, projectID domain.ProjectID, unit domain.UnitID, period string) (*models.UnitUsage, error) {
	query := `
		SELECT project_id, unit, period, used_this_month, last_pass_created_by, last_pass_created_by_name, updated_at
		FROM unit_usage
		WHERE project_id = $1 AND unit = $2 AND period = $3
	`
	var usage models.UnitUsage
	var id, unitID string
	var lastBy, lastByName sql.NullString
	err := s.db.QueryRowContext(ctx, query, projectID.String(), unit.String(), period).Scan(
		&id,
		&unitID,
		&usage.Period,
		&usage.UsedThisMonth,
		&lastBy,
		&lastByName,
		&usage.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get unit usage: %w", err)
	}
	usage.ProjectID = domain.ProjectID(id)
	usage.Unit = domain.UnitID(unitID)
	if lastBy.Valid {
		usage.LastPassCreatedBy = domain.UserID(lastBy.String)
	}
	if lastByName.Valid {
		usage.LastPassCreatedByName = lastByName.String
	}
	return &usage, nil
}
