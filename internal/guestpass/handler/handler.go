// Package handler wires the guest pass endpoints to the guestpass service.
package handler

//go:generate mockgen -source=handler.go -destination=mocks/service-mocks.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatepass/internal/guestpass/issuer"
	"gatepass/internal/guestpass/metrics"
	"gatepass/internal/guestpass/models"
	"gatepass/internal/guestpass/verifier"
	"gatepass/internal/platform/middleware"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/httputil"
	"gatepass/pkg/requestcontext"
)

// Service defines the guest pass operations consumed by the handler.
type Service interface {
	CheckEligibility(ctx context.Context, projectID domain.ProjectID, userID domain.UserID) (*models.EligibilityResult, error)
	Issue(ctx context.Context, req models.IssueRequest) (*models.IssueResult, error)
	MarkSent(ctx context.Context, projectID domain.ProjectID, passID domain.PassID) error
	Redeem(ctx context.Context, req models.RedeemRequest) (*models.RedeemResult, error)
	List(ctx context.Context, projectID domain.ProjectID, userID domain.UserID) ([]*models.GuestPass, error)
	Get(ctx context.Context, projectID domain.ProjectID, passID domain.PassID) (*models.GuestPass, error)
}

// Handler wires guest pass endpoints to the service.
type Handler struct {
	service      Service
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New constructs a guest pass handler.
func New(service Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the guest pass endpoints with their middleware chain. All
// endpoints require a bearer token; the scanner client authenticates the same
// way the residents app does.
func (h *Handler) Register(r chi.Router) {
	passRouter := chi.NewRouter()
	passRouter.Use(middleware.Recovery(h.logger))
	passRouter.Use(middleware.RequestID)
	passRouter.Use(middleware.RequestTime)
	passRouter.Use(middleware.Logger(h.logger))
	passRouter.Use(middleware.Timeout(30 * time.Second))
	passRouter.Use(middleware.ContentTypeJSON)
	passRouter.Use(middleware.Latency(h.metrics))
	passRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	passRouter.Route("/projects/{projectID}/guest-passes", func(r chi.Router) {
		r.Get("/eligibility", h.HandleEligibility)
		r.Post("/", h.HandleIssue)
		r.Get("/", h.HandleList)
		r.Post("/redeem", h.HandleRedeem)
		r.Get("/{passID}", h.HandleGet)
		r.Post("/{passID}/sent", h.HandleMarkSent)
	})

	r.Mount("/v1", passRouter)
}

// HandleEligibility handles GET /projects/{projectID}/guest-passes/eligibility.
// Denials are a normal answer here, so the response is 200 either way.
func (h *Handler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID := requestcontext.UserID(ctx)
	if userID.IsEmpty() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	projectID := domain.ProjectID(chi.URLParam(r, "projectID"))

	result, err := h.service.CheckEligibility(ctx, projectID, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "eligibility check failed",
			"request_id", requestID,
			"project_id", projectID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromEligibility(result))
}

// HandleIssue handles POST /projects/{projectID}/guest-passes.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	userID := requestcontext.UserID(ctx)
	if userID.IsEmpty() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	projectID := domain.ProjectID(chi.URLParam(r, "projectID"))

	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	domainReq := models.IssueRequest{
		ProjectID:   projectID,
		UserID:      userID,
		UserName:    requestcontext.UserName(ctx),
		GuestName:   req.GuestName,
		Purpose:     req.Purpose,
		PhoneNumber: req.PhoneNumber,
	}

	result, err := h.service.Issue(ctx, domainReq)
	if err != nil {
		var denied *issuer.EligibilityDenied
		if errors.As(err, &denied) {
			httputil.WriteJSON(w, http.StatusForbidden, FromEligibility(denied.Result))
			return
		}
		h.logger.ErrorContext(ctx, "pass issuance failed",
			"request_id", requestID,
			"project_id", projectID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "guest pass issued",
		"request_id", requestID,
		"project_id", projectID,
		"user_id", userID,
		"pass_id", result.Pass.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusCreated, &IssueResponse{
		Pass:          result.Pass,
		CredentialURL: result.CredentialURL,
	})
}

// HandleRedeem handles POST /projects/{projectID}/guest-passes/redeem. The
// endpoint serves gate staff; failed attempts return a structured outcome
// instead of the generic error envelope.
func (h *Handler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	projectID := domain.ProjectID(chi.URLParam(r, "projectID"))

	req, ok := httputil.DecodeAndPrepare[RedeemRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Redeem(ctx, models.RedeemRequest{
		ProjectID:         projectID,
		PassID:            domain.PassID(req.PassID),
		VerificationToken: req.VerificationToken,
	})
	if err != nil {
		var redeemErr *verifier.RedeemError
		if errors.As(err, &redeemErr) {
			httputil.WriteJSON(w, redeemStatus(redeemErr.Outcome), &RedeemResponse{
				Valid:   false,
				Reason:  string(redeemErr.Outcome),
				Message: redeemErr.Message,
				UsedAt:  redeemErr.UsedAt,
			})
			return
		}
		h.logger.ErrorContext(ctx, "pass redemption failed",
			"request_id", requestID,
			"project_id", projectID,
			"pass_id", req.PassID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &RedeemResponse{
		Valid:     true,
		PassID:    result.PassID.String(),
		GuestName: result.GuestName,
		Purpose:   result.Purpose,
		UsedAt:    &result.UsedAt,
	})
}

// HandleMarkSent handles POST /projects/{projectID}/guest-passes/{passID}/sent.
func (h *Handler) HandleMarkSent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := requestcontext.UserID(ctx)
	if userID.IsEmpty() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	projectID := domain.ProjectID(chi.URLParam(r, "projectID"))
	passID := domain.PassID(chi.URLParam(r, "passID"))

	if err := h.service.MarkSent(ctx, projectID, passID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

// HandleList handles GET /projects/{projectID}/guest-passes.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := requestcontext.UserID(ctx)
	if userID.IsEmpty() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	projectID := domain.ProjectID(chi.URLParam(r, "projectID"))

	passes, err := h.service.List(ctx, projectID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if passes == nil {
		passes = []*models.GuestPass{}
	}
	httputil.WriteJSON(w, http.StatusOK, &ListResponse{Passes: passes})
}

// HandleGet handles GET /projects/{projectID}/guest-passes/{passID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := requestcontext.UserID(ctx)
	if userID.IsEmpty() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	projectID := domain.ProjectID(chi.URLParam(r, "projectID"))
	passID := domain.PassID(chi.URLParam(r, "passID"))

	pass, err := h.service.Get(ctx, projectID, passID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	// Owners see their own passes only.
	if pass.UserID != userID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "pass not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pass)
}

func redeemStatus(outcome domain.RedeemOutcome) int {
	switch outcome {
	case domain.OutcomeNotFound:
		return http.StatusNotFound
	case domain.OutcomeInvalidToken:
		return http.StatusForbidden
	case domain.OutcomeAlreadyUsed:
		return http.StatusConflict
	case domain.OutcomeExpired:
		return http.StatusGone
	default:
		return http.StatusBadRequest
	}
}
