package pass

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

// PostgresStore persists guest passes in PostgreSQL. Pure I/O; the verifier
// owns the redemption rules, the store only guarantees the atomicity of the
// used transition.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const passColumns = `id, project_id, user_id, user_name, unit, guest_name, purpose, phone_number,
		valid_from, valid_until, created_at, updated_at, sent_status, sent_at, used, used_at,
		verification_token, credential_url, deleted`

func (s *PostgresStore) Save(ctx context.Context, pass *models.GuestPass) error {
	query := `
		INSERT INTO guest_passes (` + passColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := s.db.ExecContext(ctx, query,
		pass.ID.String(),
		pass.ProjectID.String(),
		pass.UserID.String(),
		pass.UserName,
		pass.Unit.String(),
		pass.GuestName,
		pass.Purpose,
		pass.PhoneNumber,
		pass.ValidFrom,
		pass.ValidUntil,
		pass.CreatedAt,
		pass.UpdatedAt,
		pass.SentStatus,
		pass.SentAt,
		pass.Used,
		pass.UsedAt,
		pass.VerificationToken,
		pass.CredentialURL,
		pass.Deleted,
	)
	if err != nil {
		return fmt.Errorf("save guest pass: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByPublicID(ctx context.Context, projectID domain.ProjectID, passID domain.PassID) (*models.GuestPass, error) {
	query := `
		SELECT ` + passColumns + `
		FROM guest_passes
		WHERE project_id = $1 AND id = $2
	`
	pass, err := scanPass(s.db.QueryRowContext(ctx, query, projectID.String(), passID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find guest pass: %w", err)
	}
	return pass, nil
}

func (s *PostgresStore) MarkSent(ctx context.Context, projectID domain.ProjectID, passID domain.PassID, at time.Time) error {
	query := `
		UPDATE guest_passes
		SET sent_status = TRUE, sent_at = $3, updated_at = $3
		WHERE project_id = $1 AND id = $2 AND deleted = FALSE
	`
	result, err := s.db.ExecContext(ctx, query, projectID.String(), passID.String(), at)
	if err != nil {
		return fmt.Errorf("mark guest pass sent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark sent rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// MarkUsed is the single-row compare-and-set that decides the winner between
// concurrent redemptions. A zero-row update is disambiguated with a follow-up
// read. The deleted flag is not consulted: soft deletion affects quota
// counting and listing, never redemption validity.
func (s *PostgresStore) MarkUsed(ctx context.Context, projectID domain.ProjectID, passID domain.PassID, at time.Time) error {
	query := `
		UPDATE guest_passes
		SET used = TRUE, used_at = $3, updated_at = $3
		WHERE project_id = $1 AND id = $2 AND used = FALSE
	`
	result, err := s.db.ExecContext(ctx, query, projectID.String(), passID.String(), at)
	if err != nil {
		return fmt.Errorf("mark guest pass used: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark used rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var used bool
	err = s.db.QueryRowContext(ctx,
		`SELECT used FROM guest_passes WHERE project_id = $1 AND id = $2`,
		projectID.String(), passID.String(),
	).Scan(&used)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return sentinel.ErrNotFound
	case err != nil:
		return fmt.Errorf("mark used disambiguate: %w", err)
	case used:
		return sentinel.ErrAlreadyUsed
	default:
		return sentinel.ErrNotFound
	}
}

func (s *PostgresStore) CountActive(ctx context.Context, projectID domain.ProjectID, scope models.CountScope, value string, since time.Time) (int, error) {
	column, err := scopeColumn(scope)
	if err != nil {
		return 0, err
	}
	query := `
		SELECT COUNT(*)
		FROM guest_passes
		WHERE project_id = $1 AND ` + column + ` = $2 AND deleted = FALSE AND created_at >= $3
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, projectID.String(), value, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active passes: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) List(ctx context.Context, projectID domain.ProjectID, scope models.CountScope, value string) ([]*models.GuestPass, error) {
	column, err := scopeColumn(scope)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + passColumns + `
		FROM guest_passes
		WHERE project_id = $1 AND ` + column + ` = $2 AND deleted = FALSE
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, projectID.String(), value)
	if err != nil {
		return nil, fmt.Errorf("list passes: %w", err)
	}
	defer rows.Close()

	var passes []*models.GuestPass
	for rows.Next() {
		pass, err := scanPass(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		passes = append(passes, pass)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list passes rows: %w", err)
	}
	return passes, nil
}

// scopeColumn maps the count scope to its column. The whitelist keeps scope
// values out of SQL interpolation.
func scopeColumn(scope models.CountScope) (string, error) {
	switch scope {
	case models.ScopeUser:
		return "user_id", nil
	case models.ScopeUnit:
		return "unit", nil
	default:
		return "", fmt.Errorf("unsupported count scope %q", scope)
	}
}

type passRow interface {
	Scan(dest ...any) error
}

func scanPass(row passRow) (*models.GuestPass, error) {
	var pass models.GuestPass
	var id, projectID, userID, unit string
	var phoneNumber sql.NullString
	var sentAt, usedAt sql.NullTime
	err := row.Scan(
		&id,
		&projectID,
		&userID,
		&pass.UserName,
		&unit,
		&pass.GuestName,
		&pass.Purpose,
		&phoneNumber,
		&pass.ValidFrom,
		&pass.ValidUntil,
		&pass.CreatedAt,
		&pass.UpdatedAt,
		&pass.SentStatus,
		&sentAt,
		&pass.Used,
		&usedAt,
		&pass.VerificationToken,
		&pass.CredentialURL,
		&pass.Deleted,
	)
	if err != nil {
		return nil, err
	}
	pass.ID = domain.PassID(id)
	pass.ProjectID = domain.ProjectID(projectID)
	pass.UserID = domain.UserID(userID)
	pass.Unit = domain.UnitID(unit)
	if phoneNumber.Valid {
		pass.PhoneNumber = &phoneNumber.String
	}
	if sentAt.Valid {
		pass.SentAt = &sentAt.Time
	}
	if usedAt.Valid {
		pass.UsedAt = &usedAt.Time
	}
	return &pass, nil
}
