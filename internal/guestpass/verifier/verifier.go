// Package verifier implements one-time pass redemption at the gate.
package verifier

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gatepass/internal/audit"
	"gatepass/internal/guestpass/models"
	"gatepass/internal/guestpass/ports"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
)

// RedeemError is a failed redemption with a stable outcome code. The message
// is safe to show to gate staff; UsedAt is set for already-used passes only.
type RedeemError struct {
	Outcome domain.RedeemOutcome
	Message string
	UsedAt  *time.Time
}

func (e *RedeemError) Error() string {
	return e.Message
}

// Verifier redeems guest passes.
type Verifier struct {
	passes  ports.PassStore
	auditor ports.AuditPublisher
	logger  *slog.Logger
}

type Option func(*Verifier)

func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(v *Verifier) {
		v.auditor = publisher
	}
}

func New(passes ports.PassStore, opts ...Option) (*Verifier, error) {
	if passes == nil {
		return nil, fmt.Errorf("pass store is required")
	}
	v := &Verifier{passes: passes}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Redeem validates the presented credential and consumes the pass. Checks run
// in a fixed order so the caller always learns the most specific failure:
// existence, token, prior use, expiry. The actual consumption is a
// compare-and-set on the store, so two concurrent attempts on the same pass
// admit exactly one guest.
func (v *Verifier) Redeem(ctx context.Context, req models.RedeemRequest) (*models.RedeemResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)

	pass, err := v.passes.FindByPublicID(ctx, req.ProjectID, req.PassID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, v.deny(ctx, req, &RedeemError{
				Outcome: domain.OutcomeNotFound,
				Message: "Pass not found",
			})
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load pass")
	}

	// Soft deletion only affects quota counting and listing; a deleted pass
	// whose credential is otherwise valid still admits the guest.

	if subtle.ConstantTimeCompare([]byte(pass.VerificationToken), []byte(req.VerificationToken)) != 1 {
		return nil, v.deny(ctx, req, &RedeemError{
			Outcome: domain.OutcomeInvalidToken,
			Message: "Invalid verification token",
		})
	}

	if pass.Used {
		return nil, v.deny(ctx, req, &RedeemError{
			Outcome: domain.OutcomeAlreadyUsed,
			Message: "This pass has already been used",
			UsedAt:  pass.UsedAt,
		})
	}

	if pass.ExpiredAt(now) {
		return nil, v.deny(ctx, req, &RedeemError{
			Outcome: domain.OutcomeExpired,
			Message: "This pass has expired",
		})
	}

	// The read above is only advisory; the CAS below decides the winner
	// between concurrent redeemers.
	if err := v.passes.MarkUsed(ctx, req.ProjectID, req.PassID, now); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			refreshed, findErr := v.passes.FindByPublicID(ctx, req.ProjectID, req.PassID)
			redeemErr := &RedeemError{
				Outcome: domain.OutcomeAlreadyUsed,
				Message: "This pass has already been used",
			}
			if findErr == nil {
				redeemErr.UsedAt = refreshed.UsedAt
			}
			return nil, v.deny(ctx, req, redeemErr)
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, v.deny(ctx, req, &RedeemError{
				Outcome: domain.OutcomeNotFound,
				Message: "Pass not found",
			})
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to mark pass used")
		}
	}

	ports.LogAudit(ctx, v.logger, v.auditor, audit.Event{
		Action:    "guest_pass_redeemed",
		ProjectID: req.ProjectID.String(),
		UserID:    pass.UserID.String(),
		PassID:    pass.ID.String(),
		Timestamp: now,
	},
		"guest_name", pass.GuestName,
	)

	return &models.RedeemResult{
		PassID:    pass.ID,
		GuestName: pass.GuestName,
		Purpose:   pass.Purpose,
		UsedAt:    now,
	}, nil
}

// deny records the failed attempt in the audit trail and returns the error.
// Failed redemptions matter for the trail as much as successes: they are the
// signal for guessed or replayed credentials.
func (v *Verifier) deny(ctx context.Context, req models.RedeemRequest, redeemErr *RedeemError) *RedeemError {
	ports.LogAudit(ctx, v.logger, v.auditor, audit.Event{
		Action:    "guest_pass_redeem_denied",
		ProjectID: req.ProjectID.String(),
		PassID:    req.PassID.String(),
		Timestamp: requestcontext.Now(ctx),
		Metadata:  map[string]string{"outcome": string(redeemErr.Outcome)},
	},
		"outcome", redeemErr.Outcome,
	)
	return redeemErr
}
