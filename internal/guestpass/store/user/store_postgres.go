package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gatepass/internal/guestpass/models"
	"gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// PostgresStore reads users and memberships from PostgreSQL. The directory is
// owned by the residents system; this service only reads it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByID(ctx context.Context, userID domain.UserID) (*models.User, error) {
	var user models.User
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM users WHERE id = $1`,
		userID.String(),
	).Scan(&id, &user.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	user.ID = domain.UserID(id)

	rows, err := s.db.QueryContext(ctx,
		`SELECT project_id, unit, role FROM user_memberships WHERE user_id = $1`,
		userID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var projectID, unit, role string
		if err := rows.Scan(&projectID, &unit, &role); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		user.Memberships = append(user.Memberships, models.Membership{
			ProjectID: domain.ProjectID(projectID),
			Unit:      domain.UnitID(unit),
			Role:      domain.Role(role),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list memberships rows: %w", err)
	}
	return &user, nil
}
