// Package models defines the guest pass data model: policy documents at the
// project, unit and (deprecated) user scopes, the pass record itself, and the
// request/result shapes of the public operations.
package models

import (
	"time"

	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
)

// ProjectPolicy is the global per-project policy document.
// Zero values mean "not configured"; the resolver applies built-in defaults.
type ProjectPolicy struct {
	ProjectID             domain.ProjectID `json:"project_id"`
	BlockAllUsers         bool             `json:"block_all_users"`
	BlockFamilyMembers    bool             `json:"block_family_members"`
	MonthlyLimit          int              `json:"monthly_limit"`
	ValidityDurationHours int              `json:"validity_duration_hours"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// UnitPolicy is the optional per-unit override document. A nil MonthlyLimit
// means the unit inherits the project limit.
type UnitPolicy struct {
	ProjectID     domain.ProjectID `json:"project_id"`
	Unit          domain.UnitID    `json:"unit"`
	Blocked       bool             `json:"blocked"`
	BlockedReason string           `json:"blocked_reason,omitempty"`
	BlockedAt     *time.Time       `json:"blocked_at,omitempty"`
	MonthlyLimit  *int             `json:"monthly_limit,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// UnitUsage is the informational per-unit aggregate. It is not consulted for
// enforcement; the user-scoped count is.
type UnitUsage struct {
	ProjectID             domain.ProjectID `json:"project_id"`
	Unit                  domain.UnitID    `json:"unit"`
	Period                string           `json:"period"` // YYYY-MM
	UsedThisMonth         int              `json:"used_this_month"`
	LastPassCreatedBy     domain.UserID    `json:"last_pass_created_by,omitempty"`
	LastPassCreatedByName string           `json:"last_pass_created_by_name,omitempty"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// UserPolicy is the deprecated per-user-per-project block flag. Consulted
// first in the hierarchy for backward compatibility only; new blocks are
// configured at the unit or project scope.
type UserPolicy struct {
	ProjectID     domain.ProjectID `json:"project_id"`
	UserID        domain.UserID    `json:"user_id"`
	Blocked       bool             `json:"blocked"`
	BlockedReason string           `json:"blocked_reason,omitempty"`
	BlockedAt     *time.Time       `json:"blocked_at,omitempty"`
}

// Membership ties a user to a project with a unit and role.
type Membership struct {
	ProjectID domain.ProjectID `json:"project_id"`
	Unit      domain.UnitID    `json:"unit"`
	Role      domain.Role      `json:"role"`
}

// User is the slice of the residents directory this core needs.
type User struct {
	ID          domain.UserID `json:"id"`
	Name        string        `json:"name"`
	Memberships []Membership  `json:"memberships"`
}

// MembershipFor returns the user's membership in the given project, if any.
func (u *User) MembershipFor(projectID domain.ProjectID) (Membership, bool) {
	for _, m := range u.Memberships {
		if m.ProjectID == projectID {
			return m, true
		}
	}
	return Membership{}, false
}

// GuestPass is the issued credential record, keyed by its public id.
type GuestPass struct {
	ID                domain.PassID    `json:"id"`
	ProjectID         domain.ProjectID `json:"project_id"`
	UserID            domain.UserID    `json:"user_id"`
	UserName          string           `json:"user_name"`
	Unit              domain.UnitID    `json:"unit"`
	GuestName         string           `json:"guest_name"`
	Purpose           string           `json:"purpose"`
	PhoneNumber       *string          `json:"phone_number,omitempty"`
	ValidFrom         time.Time        `json:"valid_from"`
	ValidUntil        time.Time        `json:"valid_until"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	SentStatus        bool             `json:"sent_status"`
	SentAt            *time.Time       `json:"sent_at,omitempty"`
	Used              bool             `json:"used"`
	UsedAt            *time.Time       `json:"used_at,omitempty"`
	VerificationToken string           `json:"-"`
	CredentialURL     string           `json:"credential_url,omitempty"`
	Deleted           bool             `json:"-"`
}

// ExpiredAt reports whether the pass validity window has passed. Expiry is a
// computed outcome, never a stored state.
func (p *GuestPass) ExpiredAt(now time.Time) bool {
	return now.After(p.ValidUntil)
}

// CountScope selects which pass field a quota count matches on.
type CountScope string

const (
	ScopeUser CountScope = "user_id"
	ScopeUnit CountScope = "unit"
)

// IsValid checks if the scope is one of the supported values.
func (s CountScope) IsValid() bool {
	return s == ScopeUser || s == ScopeUnit
}

// EligibilityResult is the outcome of a policy + quota resolution.
type EligibilityResult struct {
	Allowed        bool                     `json:"allowed"`
	Reason         domain.EligibilityReason `json:"reason"`
	Message        string                   `json:"message"`
	Unit           domain.UnitID            `json:"unit,omitempty"`
	UsedThisMonth  int                      `json:"used_this_month"`
	MonthlyLimit   int                      `json:"monthly_limit"`
	RemainingQuota int                      `json:"remaining_quota"`
}

// IssueRequest carries everything needed to issue a pass. UserID comes from
// the authenticated context, never from the request body.
type IssueRequest struct {
	ProjectID   domain.ProjectID `json:"-"`
	UserID      domain.UserID    `json:"-"`
	UserName    string           `json:"user_name"`
	GuestName   string           `json:"guest_name"`
	Purpose     string           `json:"purpose"`
	PhoneNumber *string          `json:"phone_number,omitempty"`
}

// Validate checks required fields.
func (r *IssueRequest) Validate() error {
	switch {
	case r.ProjectID.IsEmpty():
		return dErrors.New(dErrors.CodeInvalidInput, "project id is required")
	case r.UserID.IsEmpty():
		return dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	case r.GuestName == "":
		return dErrors.New(dErrors.CodeInvalidInput, "guest name is required")
	case r.Purpose == "":
		return dErrors.New(dErrors.CodeInvalidInput, "purpose is required")
	}
	return nil
}

// IssueResult is the successful outcome of an issuance.
type IssueResult struct {
	Pass          *GuestPass `json:"pass"`
	CredentialURL string     `json:"credential_url"`
}

// RedeemRequest carries a redemption attempt.
type RedeemRequest struct {
	ProjectID         domain.ProjectID `json:"-"`
	PassID            domain.PassID    `json:"pass_id"`
	VerificationToken string           `json:"verification_token"`
}

// Validate checks required fields.
func (r *RedeemRequest) Validate() error {
	switch {
	case r.ProjectID.IsEmpty():
		return dErrors.New(dErrors.CodeInvalidInput, "project id is required")
	case r.PassID.IsEmpty():
		return dErrors.New(dErrors.CodeInvalidInput, "pass id is required")
	case r.VerificationToken == "":
		return dErrors.New(dErrors.CodeInvalidInput, "verification token is required")
	}
	return nil
}

// RedeemResult is the successful outcome of a redemption.
type RedeemResult struct {
	PassID    domain.PassID `json:"pass_id"`
	GuestName string        `json:"guest_name"`
	Purpose   string        `json:"purpose"`
	UsedAt    time.Time     `json:"used_at"`
}

// CredentialPayload is the document encoded into the scannable artifact.
// Field names and the ISO-8601 timestamps are a wire contract with the
// scanner application; do not rename.
type CredentialPayload struct {
	PassID            string `json:"passId"`
	ProjectID         string `json:"projectId"`
	GuestName         string `json:"guestName"`
	ValidUntil        string `json:"validUntil"`
	CreatedAt         string `json:"createdAt"`
	VerificationToken string `json:"verificationToken"`
}
