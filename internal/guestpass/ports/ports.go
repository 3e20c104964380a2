// Package ports defines shared interfaces for the guestpass module.
// Interfaces are placed here when consumed by multiple services to avoid
// duplication; single-consumer interfaces live next to their consumer.
package ports

import (
	"context"
	"log/slog"
	"time"

	"gatepass/internal/audit"
	"gatepass/internal/guestpass/models"
	"gatepass/pkg/domain"
	"gatepass/pkg/requestcontext"
)

// UserStore reads the slice of the residents directory this core needs.
type UserStore interface {
	// FindByID returns the user with memberships, or sentinel.ErrNotFound.
	FindByID(ctx context.Context, userID domain.UserID) (*models.User, error)
}

// PolicyStore reads the three policy scopes. Absent documents are reported as
// sentinel.ErrNotFound; callers decide the default, keeping the fail-open
// choice auditable at the call site.
type PolicyStore interface {
	ProjectPolicy(ctx context.Context, projectID domain.ProjectID) (*models.ProjectPolicy, error)
	UnitPolicy(ctx context.Context, projectID domain.ProjectID, unit domain.UnitID) (*models.UnitPolicy, error)
	// UserPolicy reads the deprecated per-user scope.
	UserPolicy(ctx context.Context, projectID domain.ProjectID, userID domain.UserID) (*models.UserPolicy, error)
}

// UsageStore maintains the informational per-unit usage aggregate.
type UsageStore interface {
	// IncrementUsed atomically bumps the aggregate for (project, unit, period)
	// and records who created the last pass.
	IncrementUsed(ctx context.Context, projectID domain.ProjectID, unit domain.UnitID, period string, by domain.UserID, byName string, now time.Time) error

	// SetUsed overwrites the aggregate; used by drift reconciliation.
	SetUsed(ctx context.Context, projectID domain.ProjectID, unit domain.UnitID, period string, count int, now time.Time) error

	UnitUsage(ctx context.Context, projectID domain.ProjectID, unit domain.UnitID, period string) (*models.UnitUsage, error)
}

// PassStore persists guest pass records.
type PassStore interface {
	// Save persists a new pass keyed by its public id.
	Save(ctx context.Context, pass *models.GuestPass) error

	// FindByPublicID looks a pass up by field equality on its public id.
	// Returns sentinel.ErrNotFound when no record matches.
	FindByPublicID(ctx context.Context, projectID domain.ProjectID, passID domain.PassID) (*models.GuestPass, error)

	// MarkSent records out-of-band delivery. Not a redemption gate.
	MarkSent(ctx context.Context, projectID domain.ProjectID, passID domain.PassID, at time.Time) error

	// MarkUsed transitions used=false -> true exactly once (compare-and-set).
	// Returns sentinel.ErrAlreadyUsed when the pass was already consumed and
	// sentinel.ErrNotFound when it does not exist.
	MarkUsed(ctx context.Context, projectID domain.ProjectID, passID domain.PassID, at time.Time) error

	// CountActive counts non-deleted passes created at or after since,
	// matched on the scope field.
	CountActive(ctx context.Context, projectID domain.ProjectID, scope models.CountScope, value string, since time.Time) (int, error)

	// List returns non-deleted passes matched on the scope field, newest
	// first.
	List(ctx context.Context, projectID domain.ProjectID, scope models.CountScope, value string) ([]*models.GuestPass, error)
}

// CredentialRenderer hands the credential payload to the out-of-band
// renderer/object-store collaborator and returns a stored-resource locator.
type CredentialRenderer interface {
	Render(ctx context.Context, payload models.CredentialPayload) (string, error)
}

// IssueLock serializes pass issuance per (project, user, period). Acquire
// returns sentinel.ErrConflict when another issuance holds the key and
// sentinel.ErrUnavailable when the lock backend is unreachable.
type IssueLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// AuditPublisher emits audit events for security-relevant operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LogAudit is a shared helper for emitting audit events across the guestpass
// services. It logs to the structured logger and, when configured, the audit
// publisher; publisher failures are logged, never propagated.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.Event, attrs ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	args := append(attrs, "event", event.Action, "log_type", "audit")

	if logger != nil {
		logger.InfoContext(ctx, event.Action, args...)
	}

	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", event.Action, "error", err)
	}
}
