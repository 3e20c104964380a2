// Package quota counts pass usage within the current calendar month.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gatepass/internal/guestpass/models"
	"gatepass/internal/guestpass/ports"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
)

// PeriodStart returns the first instant of the calendar month containing now,
// in now's location. The reference behavior computes the boundary in server
// local time; switch to now.UTC() here if that is ever UTC-normalized.
func PeriodStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

// Period returns the YYYY-MM label of the month containing now. Used to key
// the unit usage aggregate and the issuance lock.
func Period(now time.Time) string {
	return now.Format("2006-01")
}

// Counter counts non-deleted passes issued in the current period, scoped
// either to a user (the enforcement count) or to a unit (the informational
// aggregate).
type Counter struct {
	passes ports.PassStore
	logger *slog.Logger
}

type Option func(*Counter)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Counter) {
		c.logger = logger
	}
}

func New(passes ports.PassStore, opts ...Option) (*Counter, error) {
	if passes == nil {
		return nil, fmt.Errorf("pass store is required")
	}
	c := &Counter{passes: passes}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CountActive counts passes matching the scope field that were created at or
// after periodStart, excluding soft-deleted records. Store failures surface
// as errors; the eligibility path applies its documented fail-open fallback
// at the call site.
func (c *Counter) CountActive(ctx context.Context, projectID domain.ProjectID, scope models.CountScope, value string, periodStart time.Time) (int, error) {
	if projectID.IsEmpty() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "project id is required")
	}
	if !scope.IsValid() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid count scope")
	}
	if value == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "scope value is required")
	}

	count, err := c.passes.CountActive(ctx, projectID, scope, value, periodStart)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to count passes")
	}
	return count, nil
}
