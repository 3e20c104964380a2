package handler

import (
	"time"

	"gatepass/internal/guestpass/models"
)

// EligibilityResponse is the HTTP response for the eligibility probe and the
// body of a denied issuance.
type EligibilityResponse struct {
	Allowed        bool   `json:"allowed"`
	Reason         string `json:"reason"`
	Message        string `json:"message,omitempty"`
	Unit           string `json:"unit,omitempty"`
	UsedThisMonth  int    `json:"used_this_month"`
	MonthlyLimit   int    `json:"monthly_limit"`
	RemainingQuota int    `json:"remaining_quota"`
}

// FromEligibility converts a domain eligibility result to an HTTP response.
func FromEligibility(result *models.EligibilityResult) *EligibilityResponse {
	return &EligibilityResponse{
		Allowed:        result.Allowed,
		Reason:         string(result.Reason),
		Message:        result.Message,
		Unit:           result.Unit.String(),
		UsedThisMonth:  result.UsedThisMonth,
		MonthlyLimit:   result.MonthlyLimit,
		RemainingQuota: result.RemainingQuota,
	}
}

// IssueResponse is the HTTP response for a successful issuance.
type IssueResponse struct {
	Pass          *models.GuestPass `json:"pass"`
	CredentialURL string            `json:"credential_url"`
}

// RedeemResponse is the HTTP response for a redemption attempt, successful or
// not. Failed attempts carry the stable reason and, for already-used passes,
// when the pass was consumed.
type RedeemResponse struct {
	Valid     bool       `json:"valid"`
	Reason    string     `json:"reason,omitempty"`
	Message   string     `json:"message,omitempty"`
	PassID    string     `json:"pass_id,omitempty"`
	GuestName string     `json:"guest_name,omitempty"`
	Purpose   string     `json:"purpose,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// ListResponse is the HTTP response for the pass listing.
type ListResponse struct {
	Passes []*models.GuestPass `json:"passes"`
}
