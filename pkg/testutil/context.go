package testutil

import (
	"net/http"
	"time"

	"gatepass/pkg/domain"
	"gatepass/pkg/requestcontext"
)

// WithUser injects an authenticated user into the request context, simulating
// what the auth middleware does for authenticated requests.
func WithUser(req *http.Request, userID domain.UserID, name string) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithUserName(ctx, name)
	return req.WithContext(ctx)
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
