// Package service is the guestpass facade consumed by transport handlers. It
// composes the issuer and verifier with the pass store's read paths and owns
// the module's metrics.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gatepass/internal/audit"
	"gatepass/internal/guestpass/issuer"
	"gatepass/internal/guestpass/metrics"
	"gatepass/internal/guestpass/models"
	"gatepass/internal/guestpass/ports"
	"gatepass/internal/guestpass/verifier"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
)

// Service exposes the guest pass operations.
type Service struct {
	issuer   *issuer.Issuer
	verifier *verifier.Verifier
	passes   ports.PassStore
	auditor  ports.AuditPublisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = publisher
	}
}

func New(iss *issuer.Issuer, ver *verifier.Verifier, passes ports.PassStore, opts ...Option) (*Service, error) {
	if iss == nil || ver == nil || passes == nil {
		return nil, fmt.Errorf("issuer, verifier and pass store are required")
	}
	s := &Service{issuer: iss, verifier: ver, passes: passes}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CheckEligibility reports whether the user may issue a pass right now,
// without creating anything.
func (s *Service) CheckEligibility(ctx context.Context, projectID domain.ProjectID, userID domain.UserID) (*models.EligibilityResult, error) {
	return s.issuer.Eligibility(ctx, projectID, userID)
}

// Issue creates a pass for the authenticated user. Denials surface as
// *issuer.EligibilityDenied.
func (s *Service) Issue(ctx context.Context, req models.IssueRequest) (*models.IssueResult, error) {
	start := time.Now()
	result, err := s.issuer.Issue(ctx, req)
	if err != nil {
		var denied *issuer.EligibilityDenied
		if errors.As(err, &denied) {
			s.metrics.IncrementDenied(string(denied.Result.Reason))
		}
		return nil, err
	}
	s.metrics.IncrementIssued()
	s.metrics.ObserveIssue(time.Since(start))
	return result, nil
}

// MarkSent records that the pass was delivered to the guest out of band.
func (s *Service) MarkSent(ctx context.Context, projectID domain.ProjectID, passID domain.PassID) error {
	now := requestcontext.Now(ctx)
	if err := s.passes.MarkSent(ctx, projectID, passID, now); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "pass not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark pass sent")
	}

	ports.LogAudit(ctx, s.logger, s.auditor, audit.Event{
		Action:    "guest_pass_sent",
		ProjectID: projectID.String(),
		PassID:    passID.String(),
		Timestamp: now,
	})
	return nil
}

// Redeem consumes a pass at the gate. Failures surface as *verifier.RedeemError.
func (s *Service) Redeem(ctx context.Context, req models.RedeemRequest) (*models.RedeemResult, error) {
	result, err := s.verifier.Redeem(ctx, req)
	if err != nil {
		var redeemErr *verifier.RedeemError
		if errors.As(err, &redeemErr) {
			s.metrics.IncrementRedeemFailure(string(redeemErr.Outcome))
		}
		return nil, err
	}
	s.metrics.IncrementRedeemed()
	return result, nil
}

// List returns the user's passes in the project, newest first.
func (s *Service) List(ctx context.Context, projectID domain.ProjectID, userID domain.UserID) ([]*models.GuestPass, error) {
	if projectID.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "project id is required")
	}
	if userID.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	passes, err := s.passes.List(ctx, projectID, models.ScopeUser, userID.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list passes")
	}
	return passes, nil
}

// Get returns a single pass by its public id. Soft-deleted passes are not
// found.
func (s *Service) Get(ctx context.Context, projectID domain.ProjectID, passID domain.PassID) (*models.GuestPass, error) {
	if projectID.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "project id is required")
	}
	if passID.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "pass id is required")
	}
	pass, err := s.passes.FindByPublicID(ctx, projectID, passID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "pass not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load pass")
	}
	if pass.Deleted {
		return nil, dErrors.New(dErrors.CodeNotFound, "pass not found")
	}
	return pass, nil
}
