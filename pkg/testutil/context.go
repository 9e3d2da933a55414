package testutil

import (
	"net/http"

	"scorevc/pkg/domain"
	"scorevc/pkg/requestcontext"
)

// WithCaller adds the caller principal to the request context.
// This simulates what the auth middleware does for authenticated requests.
// Invalid principal text leaves the request unchanged.
func WithCaller(req *http.Request, principal string) *http.Request {
	p, err := domain.ParsePrincipal(principal)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithCaller(req.Context(), p))
}
