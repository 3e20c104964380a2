package handler

// IssueRequest is the HTTP request body for POST /guest-passes. The issuing
// user comes from the authenticated context, never from the body.
type IssueRequest struct {
	GuestName   string  `json:"guest_name"`
	Purpose     string  `json:"purpose"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

// RedeemRequest is the HTTP request body for POST /guest-passes/redeem.
type RedeemRequest struct {
	PassID            string `json:"pass_id"`
	VerificationToken string `json:"verification_token"`
}
