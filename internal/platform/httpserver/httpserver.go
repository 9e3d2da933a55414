package httpserver

import (
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	idleTimeout       = 90 * time.Second

	// writeSlack is added on top of the slowest upstream call a handler makes.
	writeSlack = 15 * time.Second
)

type Option func(*http.Server)

// WithUpstreamDeadline sizes WriteTimeout so a handler waiting the full
// deadline on an upstream call can still write its response.
func WithUpstreamDeadline(d time.Duration) Option {
	return func(s *http.Server) {
		if d > 0 {
			s.WriteTimeout = d + writeSlack
		}
	}
}

// New returns a server for handler on addr.
func New(addr string, handler http.Handler, opts ...Option) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      readTimeout + writeSlack,
		IdleTimeout:       idleTimeout,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}
