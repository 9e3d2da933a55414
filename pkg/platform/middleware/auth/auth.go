package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"scorevc/pkg/domain"
	"scorevc/pkg/requestcontext"
)

// TokenValidator resolves a bearer token to the calling principal.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims is what the middleware needs from a validated session token.
type Claims struct {
	Principal domain.Principal
	JTI       string
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// Authenticate resolves the caller when a bearer token is present and
// leaves the anonymous principal in place otherwise. Invalid tokens are rejected.
func Authenticate(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, domain.AnonymousPrincipal)))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, claims.Principal)))
		})
	}
}

// RequireAuth rejects requests whose caller is anonymous. It must run after Authenticate.
func RequireAuth(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if requestcontext.Caller(ctx).IsAnonymous() {
				logger.WarnContext(ctx, "unauthorized access - anonymous caller",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Not authorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
