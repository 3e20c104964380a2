// Package httpserver wraps http.Server construction so timeouts are set in
// exactly one place.
package httpserver

import (
	"net/http"
	"time"
)

// New returns an http.Server with conservative timeouts. Per-request deadlines
// are enforced by the timeout middleware; these guard the connection itself.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
