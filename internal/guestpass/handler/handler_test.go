package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"gatepass/internal/guestpass/handler/mocks"
	"gatepass/internal/guestpass/issuer"
	"gatepass/internal/guestpass/models"
	"gatepass/internal/guestpass/verifier"
	"gatepass/internal/platform/middleware"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/testutil"
)

const (
	testProject = "proj-1"
	testUserID  = "user-1"
	basePath    = "/v1/projects/" + testProject + "/guest-passes"
)

// stubValidator accepts any bearer token and returns fixed claims; tokens
// equal to "invalid" are rejected.
type stubValidator struct{}

func (stubValidator) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	if tokenString == "invalid" {
		return nil, fmt.Errorf("token rejected")
	}
	return &middleware.JWTClaims{UserID: testUserID, Name: "Dana Resident"}, nil
}

type HandlerSuite struct {
	suite.Suite
	router  chi.Router
	service *mocks.MockService
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)
	s.service = mocks.NewMockService(ctrl)

	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)), nil, stubValidator{})
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer test-token")
	return req
}

func (s *HandlerSuite) TestEligibilityAllowed() {
	s.service.EXPECT().CheckEligibility(gomock.Any(), domain.ProjectID(testProject), domain.UserID(testUserID)).
		Return(&models.EligibilityResult{
			Allowed:        true,
			Reason:         domain.ReasonEligible,
			Unit:           "A-101",
			UsedThisMonth:  2,
			MonthlyLimit:   30,
			RemainingQuota: 28,
		}, nil)

	req := s.authed(testutil.NewRequest(s.T(), http.MethodGet, basePath+"/eligibility"))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[EligibilityResponse](s.T(), rr)
	s.True(resp.Allowed)
	s.Equal("eligible", resp.Reason)
	s.Equal(28, resp.RemainingQuota)
}

func (s *HandlerSuite) TestEligibilityRequiresAuth() {
	req := testutil.NewRequest(s.T(), http.MethodGet, basePath+"/eligibility")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *HandlerSuite) TestEligibilityRejectsBadToken() {
	req := testutil.NewRequest(s.T(), http.MethodGet, basePath+"/eligibility")
	req.Header.Set("Authorization", "Bearer invalid")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *HandlerSuite) TestIssueCreated() {
	validUntil := time.Date(2026, 8, 17, 14, 0, 0, 0, time.UTC)
	s.service.EXPECT().Issue(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, req models.IssueRequest) (*models.IssueResult, error) {
			s.Equal(domain.ProjectID(testProject), req.ProjectID)
			s.Equal(domain.UserID(testUserID), req.UserID)
			s.Equal("Dana Resident", req.UserName, "user name comes from the token, not the body")
			s.Equal("Visitor", req.GuestName)
			return &models.IssueResult{
				Pass: &models.GuestPass{
					ID:         "GP-1755432000000-ABCDE",
					ProjectID:  testProject,
					UserID:     testUserID,
					GuestName:  req.GuestName,
					ValidUntil: validUntil,
				},
				CredentialURL: "mem://guestPasses/proj-1/GP-1755432000000-ABCDE.json",
			}, nil
		})

	req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, basePath, IssueRequest{
		GuestName: "Visitor",
		Purpose:   "family visit",
	}))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	resp := testutil.UnmarshalResponse[IssueResponse](s.T(), rr)
	s.Equal(domain.PassID("GP-1755432000000-ABCDE"), resp.Pass.ID)
	s.NotEmpty(resp.CredentialURL)
}

func (s *HandlerSuite) TestIssueDeniedReturnsEligibility() {
	s.service.EXPECT().Issue(gomock.Any(), gomock.Any()).
		Return(nil, &issuer.EligibilityDenied{Result: &models.EligibilityResult{
			Allowed:       false,
			Reason:        domain.ReasonLimitReached,
			Message:       "You have reached your monthly limit of 30 passes for this project",
			UsedThisMonth: 30,
			MonthlyLimit:  30,
		}})

	req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, basePath, IssueRequest{
		GuestName: "Visitor",
		Purpose:   "family visit",
	}))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
	resp := testutil.UnmarshalResponse[EligibilityResponse](s.T(), rr)
	s.False(resp.Allowed)
	s.Equal("limit_reached", resp.Reason)
	s.Equal(30, resp.UsedThisMonth)
}

func (s *HandlerSuite) TestIssueBadBody() {
	req := s.authed(testutil.NewRequest(s.T(), http.MethodPost, basePath))
	req.Body = http.NoBody
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *HandlerSuite) TestRedeemValid() {
	usedAt := time.Date(2026, 8, 17, 12, 0, 0, 0, time.UTC)
	s.service.EXPECT().Redeem(gomock.Any(), models.RedeemRequest{
		ProjectID:         testProject,
		PassID:            "GP-1",
		VerificationToken: "tok",
	}).Return(&models.RedeemResult{
		PassID:    "GP-1",
		GuestName: "Visitor",
		Purpose:   "family visit",
		UsedAt:    usedAt,
	}, nil)

	req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, basePath+"/redeem", RedeemRequest{
		PassID:            "GP-1",
		VerificationToken: "tok",
	}))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[RedeemResponse](s.T(), rr)
	s.True(resp.Valid)
	s.Equal("Visitor", resp.GuestName)
}

func (s *HandlerSuite) TestRedeemOutcomes() {
	usedAt := time.Date(2026, 8, 17, 11, 0, 0, 0, time.UTC)
	cases := []struct {
		name       string
		redeemErr  *verifier.RedeemError
		wantStatus int
	}{
		{"not found", &verifier.RedeemError{Outcome: domain.OutcomeNotFound, Message: "Pass not found"}, http.StatusNotFound},
		{"invalid token", &verifier.RedeemError{Outcome: domain.OutcomeInvalidToken, Message: "Invalid verification token"}, http.StatusForbidden},
		{"already used", &verifier.RedeemError{Outcome: domain.OutcomeAlreadyUsed, Message: "This pass has already been used", UsedAt: &usedAt}, http.StatusConflict},
		{"expired", &verifier.RedeemError{Outcome: domain.OutcomeExpired, Message: "This pass has expired"}, http.StatusGone},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.service.EXPECT().Redeem(gomock.Any(), gomock.Any()).Return(nil, tc.redeemErr)

			req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, basePath+"/redeem", RedeemRequest{
				PassID:            "GP-1",
				VerificationToken: "tok",
			}))
			rr := testutil.DoRequest(s.router, req)

			testutil.AssertStatus(s.T(), rr, tc.wantStatus)
			resp := testutil.UnmarshalResponse[RedeemResponse](s.T(), rr)
			s.False(resp.Valid)
			s.Equal(string(tc.redeemErr.Outcome), resp.Reason)
			if tc.redeemErr.UsedAt != nil {
				s.NotNil(resp.UsedAt)
			}
		})
	}
}

func (s *HandlerSuite) TestMarkSent() {
	s.service.EXPECT().MarkSent(gomock.Any(), domain.ProjectID(testProject), domain.PassID("GP-1")).Return(nil)

	req := s.authed(testutil.NewRequest(s.T(), http.MethodPost, basePath+"/GP-1/sent"))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}

func (s *HandlerSuite) TestMarkSentNotFound() {
	s.service.EXPECT().MarkSent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(dErrors.New(dErrors.CodeNotFound, "pass not found"))

	req := s.authed(testutil.NewRequest(s.T(), http.MethodPost, basePath+"/GP-404/sent"))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	testutil.AssertErrorCode(s.T(), rr, "not_found")
}

func (s *HandlerSuite) TestList() {
	s.service.EXPECT().List(gomock.Any(), domain.ProjectID(testProject), domain.UserID(testUserID)).
		Return([]*models.GuestPass{
			{ID: "GP-2", ProjectID: testProject, UserID: testUserID},
			{ID: "GP-1", ProjectID: testProject, UserID: testUserID},
		}, nil)

	req := s.authed(testutil.NewRequest(s.T(), http.MethodGet, basePath))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[ListResponse](s.T(), rr)
	s.Len(resp.Passes, 2)
}

func (s *HandlerSuite) TestGetHidesOtherUsersPasses() {
	s.service.EXPECT().Get(gomock.Any(), domain.ProjectID(testProject), domain.PassID("GP-1")).
		Return(&models.GuestPass{ID: "GP-1", ProjectID: testProject, UserID: "someone-else"}, nil)

	req := s.authed(testutil.NewRequest(s.T(), http.MethodGet, basePath+"/GP-1"))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
}

func (s *HandlerSuite) TestGetOwnPass() {
	s.service.EXPECT().Get(gomock.Any(), domain.ProjectID(testProject), domain.PassID("GP-1")).
		Return(&models.GuestPass{ID: "GP-1", ProjectID: testProject, UserID: testUserID}, nil)

	req := s.authed(testutil.NewRequest(s.T(), http.MethodGet, basePath+"/GP-1"))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[models.GuestPass](s.T(), rr)
	s.Equal(domain.PassID("GP-1"), resp.ID)
}
