// Package policy resolves whether a user may generate guest passes and which
// monthly limit applies, walking the project / unit / deprecated-user override
// hierarchy.
package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"gatepass/internal/guestpass/models"
	"gatepass/internal/guestpass/ports"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/sentinel"
)

// Documented fail-open defaults. When a policy document is absent or its
// fetch fails, the resolver applies these explicitly so the degradation is
// auditable and unit-testable.
const (
	DefaultMonthlyLimit  = 30
	DefaultValidityHours = 2
)

// Resolver applies the blocking hierarchy and resolves the effective monthly
// limit. Order, first match wins: deprecated per-user block, project-wide
// block, family-member block, unit block, then allowed with the unit override
// limit falling back to the project limit and then the built-in default.
type Resolver struct {
	users    ports.UserStore
	policies ports.PolicyStore
	logger   *slog.Logger
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func New(users ports.UserStore, policies ports.PolicyStore, opts ...Option) (*Resolver, error) {
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if policies == nil {
		return nil, fmt.Errorf("policy store is required")
	}
	r := &Resolver{users: users, policies: policies}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns whether pass generation is allowed for the user in the
// project and the effective monthly limit. Missing users and memberships are
// structured outcomes, not errors; only invalid input and user-store
// unavailability surface as errors.
func (r *Resolver) Resolve(ctx context.Context, projectID domain.ProjectID, userID domain.UserID) (*models.EligibilityResult, error) {
	if projectID.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "project id is required")
	}
	if userID.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return denied(domain.ReasonUserNotFound, "User not found in the system"), nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load user")
	}

	membership, ok := user.MembershipFor(projectID)
	if !ok {
		return denied(domain.ReasonNotInProject, "User does not belong to this project"), nil
	}

	// Deprecated per-user scope, consulted first for backward compatibility.
	if r.legacyUserBlocked(ctx, projectID, userID) {
		return denied(domain.ReasonBlocked, "Guest pass generation is blocked for your account"), nil
	}

	projectPolicy, unitPolicy := r.fetchPolicies(ctx, projectID, membership.Unit)

	if projectPolicy != nil && projectPolicy.BlockAllUsers {
		return denied(domain.ReasonProjectBlocked,
			"Guest pass generation is currently disabled for all users in this project"), nil
	}

	if projectPolicy != nil && projectPolicy.BlockFamilyMembers && membership.Role == domain.RoleFamily {
		return denied(domain.ReasonFamilyMembersBlocked,
			"Guest pass generation is currently disabled for family members. Only property owners can generate passes."), nil
	}

	if unitPolicy != nil && unitPolicy.Blocked {
		return denied(domain.ReasonUnitBlocked, "Guest pass generation is blocked for your unit"), nil
	}

	limit := DefaultMonthlyLimit
	if projectPolicy != nil && projectPolicy.MonthlyLimit > 0 {
		limit = projectPolicy.MonthlyLimit
	}
	if unitPolicy != nil && unitPolicy.MonthlyLimit != nil {
		limit = *unitPolicy.MonthlyLimit
	}

	return &models.EligibilityResult{
		Allowed:      true,
		Reason:       domain.ReasonEligible,
		Message:      "User is eligible to generate passes in this project",
		Unit:         membership.Unit,
		MonthlyLimit: limit,
	}, nil
}

// legacyUserBlocked consults the deprecated per-user block flag. Fetch
// failures degrade to "not blocked": the scope only exists for records
// written before unit-level blocking shipped.
func (r *Resolver) legacyUserBlocked(ctx context.Context, projectID domain.ProjectID, userID domain.UserID) bool {
	userPolicy, err := r.policies.UserPolicy(ctx, projectID, userID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) && r.logger != nil {
			r.logger.WarnContext(ctx, "legacy user policy fetch failed, treating as unblocked",
				"project_id", projectID,
				"user_id", userID,
				"error", err,
			)
		}
		return false
	}
	return userPolicy != nil && userPolicy.Blocked
}

// fetchPolicies loads the project and unit policy documents concurrently.
// An unreachable policy store must not block residents, so each scope
// degrades to nil and the caller applies the documented defaults.
func (r *Resolver) fetchPolicies(ctx context.Context, projectID domain.ProjectID, unit domain.UnitID) (*models.ProjectPolicy, *models.UnitPolicy) {
	var (
		projectPolicy *models.ProjectPolicy
		unitPolicy    *models.UnitPolicy
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pp, err := r.policies.ProjectPolicy(gctx, projectID)
		if err != nil {
			r.logDegraded(ctx, "project", projectID, err)
			return nil
		}
		projectPolicy = pp
		return nil
	})
	if !unit.IsEmpty() {
		g.Go(func() error {
			up, err := r.policies.UnitPolicy(gctx, projectID, unit)
			if err != nil {
				r.logDegraded(ctx, "unit", projectID, err)
				return nil
			}
			unitPolicy = up
			return nil
		})
	}
	_ = g.Wait()

	return projectPolicy, unitPolicy
}

func (r *Resolver) logDegraded(ctx context.Context, scope string, projectID domain.ProjectID, err error) {
	if r.logger == nil || errors.Is(err, sentinel.ErrNotFound) {
		return
	}
	r.logger.WarnContext(ctx, "policy fetch failed, applying defaults",
		"scope", scope,
		"project_id", projectID,
		"error", err,
	)
}

func denied(reason domain.EligibilityReason, message string) *models.EligibilityResult {
	return &models.EligibilityResult{
		Allowed: false,
		Reason:  reason,
		Message: message,
	}
}
