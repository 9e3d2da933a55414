package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "scorevc/pkg/domain-errors"
	"scorevc/pkg/platform/httputil"
	"scorevc/pkg/requestcontext"
)

// HeaderToken carries the operator token on admin requests.
const HeaderToken = "X-Admin-Token"

// RequireAdminToken guards operator routes. With no configured token the
// routes answer 404 so their existence is not advertised.
func RequireAdminToken(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "not found"))
			})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given := r.Header.Get(HeaderToken)
			if subtle.ConstantTimeCompare([]byte(given), []byte(expected)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "operator request rejected",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
					"token_present", given != "",
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
