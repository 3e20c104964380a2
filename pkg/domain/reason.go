package domain

// EligibilityReason is the stable machine-readable outcome of an eligibility
// check. Clients branch on the reason, not on the human-readable message.
type EligibilityReason string

const (
	ReasonEligible             EligibilityReason = "eligible"
	ReasonUserNotFound         EligibilityReason = "user_not_found"
	ReasonNotInProject         EligibilityReason = "not_in_project"
	ReasonBlocked              EligibilityReason = "blocked" // deprecated per-user scope
	ReasonProjectBlocked       EligibilityReason = "project_blocked"
	ReasonFamilyMembersBlocked EligibilityReason = "family_members_blocked"
	ReasonUnitBlocked          EligibilityReason = "unit_blocked"
	ReasonLimitReached         EligibilityReason = "limit_reached"
)

// IsValid checks if the reason is one of the supported enum values.
func (r EligibilityReason) IsValid() bool {
	switch r {
	case ReasonEligible, ReasonUserNotFound, ReasonNotInProject, ReasonBlocked,
		ReasonProjectBlocked, ReasonFamilyMembersBlocked, ReasonUnitBlocked,
		ReasonLimitReached:
		return true
	}
	return false
}

func (r EligibilityReason) String() string { return string(r) }

// RedeemOutcome is the stable failure code for a redemption attempt.
type RedeemOutcome string

const (
	OutcomeNotFound     RedeemOutcome = "not_found"
	OutcomeInvalidToken RedeemOutcome = "invalid_token"
	OutcomeAlreadyUsed  RedeemOutcome = "already_used"
	OutcomeExpired      RedeemOutcome = "expired"
)

func (o RedeemOutcome) String() string { return string(o) }
