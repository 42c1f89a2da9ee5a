package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Per-request deadlines are enforced by the
// router's timeout middleware, so WriteTimeout stays slightly above it to
// let handlers flush their own timeout responses.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
