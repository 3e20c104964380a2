// Package issuer orchestrates guest pass issuance: eligibility re-check,
// validity window computation, credential generation, persistence and the
// best-effort unit usage aggregate update.
package issuer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gatepass/internal/audit"
	"gatepass/internal/guestpass/credential"
	"gatepass/internal/guestpass/models"
	"gatepass/internal/guestpass/policy"
	"gatepass/internal/guestpass/ports"
	"gatepass/internal/guestpass/quota"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
)

// EligibilityResolver resolves the blocking hierarchy and effective limit.
type EligibilityResolver interface {
	Resolve(ctx context.Context, projectID domain.ProjectID, userID domain.UserID) (*models.EligibilityResult, error)
}

// PassCounter counts active passes for a scope within the current period.
type PassCounter interface {
	CountActive(ctx context.Context, projectID domain.ProjectID, scope models.CountScope, value string, periodStart time.Time) (int, error)
}

// EligibilityDenied is returned by Issue when the re-check at issuance time
// denies the request. It carries the full result so transport layers can
// surface the stable reason code alongside the original denial message.
type EligibilityDenied struct {
	Result *models.EligibilityResult
}

func (e *EligibilityDenied) Error() string {
	return e.Result.Message
}

// Issuer issues guest passes.
type Issuer struct {
	resolver EligibilityResolver
	counter  PassCounter
	passes   ports.PassStore
	policies ports.PolicyStore
	usage    ports.UsageStore
	renderer ports.CredentialRenderer
	locks    ports.IssueLock
	auditor  ports.AuditPublisher
	logger   *slog.Logger
	lockTTL  time.Duration
}

type Option func(*Issuer)

func WithLogger(logger *slog.Logger) Option {
	return func(i *Issuer) {
		i.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(i *Issuer) {
		i.auditor = publisher
	}
}

// WithIssueLock enables per-(project, user, period) serialization of
// issuance. Without it the issuer runs in the legacy lock-free mode where
// concurrent requests can jointly exceed the limit.
func WithIssueLock(locks ports.IssueLock) Option {
	return func(i *Issuer) {
		i.locks = locks
	}
}

func WithLockTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		i.lockTTL = ttl
	}
}

func New(
	resolver EligibilityResolver,
	counter PassCounter,
	passes ports.PassStore,
	policies ports.PolicyStore,
	usage ports.UsageStore,
	renderer ports.CredentialRenderer,
	opts ...Option,
) (*Issuer, error) {
	if resolver == nil || counter == nil || passes == nil || policies == nil || usage == nil || renderer == nil {
		return nil, fmt.Errorf("resolver, counter, pass store, policy store, usage store and renderer are required")
	}
	i := &Issuer{
		resolver: resolver,
		counter:  counter,
		passes:   passes,
		policies: policies,
		usage:    usage,
		renderer: renderer,
		lockTTL:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Eligibility resolves the policy hierarchy and folds in the user-scoped
// quota count. A count failure degrades to zero usage: availability wins
// over strict enforcement, and the degradation is logged.
func (i *Issuer) Eligibility(ctx context.Context, projectID domain.ProjectID, userID domain.UserID) (*models.EligibilityResult, error) {
	result, err := i.resolver.Resolve(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !result.Allowed {
		return result, nil
	}

	periodStart := quota.PeriodStart(requestcontext.Now(ctx))
	used, err := i.counter.CountActive(ctx, projectID, models.ScopeUser, userID.String(), periodStart)
	if err != nil {
		if i.logger != nil {
			i.logger.WarnContext(ctx, "quota count failed, assuming zero usage",
				"project_id", projectID,
				"user_id", userID,
				"error", err,
			)
		}
		used = 0
	}

	result.UsedThisMonth = used
	if used >= result.MonthlyLimit {
		return &models.EligibilityResult{
			Allowed:       false,
			Reason:        domain.ReasonLimitReached,
			Message:       fmt.Sprintf("You have reached your monthly limit of %d passes for this project", result.MonthlyLimit),
			Unit:          result.Unit,
			UsedThisMonth: used,
			MonthlyLimit:  result.MonthlyLimit,
		}, nil
	}

	result.RemainingQuota = result.MonthlyLimit - used
	return result, nil
}

// Issue re-validates eligibility at issuance time and creates the pass. The
// re-check is required because time passes between a caller's eligibility
// probe and this call. Returns *EligibilityDenied when the re-check denies.
func (i *Issuer) Issue(ctx context.Context, req models.IssueRequest) (*models.IssueResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)

	if i.locks != nil {
		key := fmt.Sprintf("%s:%s:%s", req.ProjectID, req.UserID, quota.Period(now))
		release, err := i.locks.Acquire(ctx, key, i.lockTTL)
		switch {
		case err == nil:
			defer release()
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "another pass request for this user is in progress")
		default:
			// Lock backend down: degrade to the legacy lock-free behavior
			// rather than blocking issuance.
			if i.logger != nil {
				i.logger.WarnContext(ctx, "issue lock unavailable, proceeding without serialization",
					"project_id", req.ProjectID,
					"user_id", req.UserID,
					"error", err,
				)
			}
		}
	}

	eligibility, err := i.Eligibility(ctx, req.ProjectID, req.UserID)
	if err != nil {
		return nil, err
	}
	if !eligibility.Allowed {
		return nil, &EligibilityDenied{Result: eligibility}
	}

	validUntil := now.Add(i.validityDuration(ctx, req.ProjectID))

	passID, err := credential.NewPassID(now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate pass id")
	}
	token, err := credential.NewVerificationToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate verification token")
	}

	pass := &models.GuestPass{
		ID:                passID,
		ProjectID:         req.ProjectID,
		UserID:            req.UserID,
		UserName:          req.UserName,
		Unit:              eligibility.Unit,
		GuestName:         req.GuestName,
		Purpose:           req.Purpose,
		PhoneNumber:       req.PhoneNumber,
		ValidFrom:         now,
		ValidUntil:        validUntil,
		CreatedAt:         now,
		UpdatedAt:         now,
		VerificationToken: token,
	}

	locator, err := i.renderer.Render(ctx, credential.Payload(pass))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store credential")
	}
	pass.CredentialURL = locator

	if err := i.passes.Save(ctx, pass); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist pass")
	}

	// The pass is durable from here on; the aggregate is informational, so
	// its failure must not fail the issuance.
	i.updateUnitUsage(ctx, pass, now)

	ports.LogAudit(ctx, i.logger, i.auditor, audit.Event{
		Action:    "guest_pass_issued",
		ProjectID: pass.ProjectID.String(),
		UserID:    pass.UserID.String(),
		PassID:    pass.ID.String(),
		Timestamp: now,
	},
		"unit", pass.Unit,
		"valid_until", pass.ValidUntil,
	)

	return &models.IssueResult{Pass: pass, CredentialURL: locator}, nil
}

// validityDuration reads the project's configured window, defaulting to two
// hours when the document is absent or unreachable (fail-open).
func (i *Issuer) validityDuration(ctx context.Context, projectID domain.ProjectID) time.Duration {
	hours := policy.DefaultValidityHours
	projectPolicy, err := i.policies.ProjectPolicy(ctx, projectID)
	switch {
	case err != nil:
		if !errors.Is(err, sentinel.ErrNotFound) && i.logger != nil {
			i.logger.WarnContext(ctx, "project policy fetch failed, using default validity",
				"project_id", projectID,
				"error", err,
			)
		}
	case projectPolicy != nil && projectPolicy.ValidityDurationHours > 0:
		hours = projectPolicy.ValidityDurationHours
	}
	return time.Duration(hours) * time.Hour
}

func (i *Issuer) updateUnitUsage(ctx context.Context, pass *models.GuestPass, now time.Time) {
	if pass.Unit.IsEmpty() {
		return
	}
	err := i.usage.IncrementUsed(ctx, pass.ProjectID, pass.Unit, quota.Period(now), pass.UserID, pass.UserName, now)
	if err != nil && i.logger != nil {
		i.logger.WarnContext(ctx, "unit usage update failed after pass creation",
			"project_id", pass.ProjectID,
			"unit", pass.Unit,
			"pass_id", pass.ID,
			"error", err,
		)
	}
}
