package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "nexushq/pkg/domain-errors"
	"nexushq/pkg/platform/httputil"
	"nexushq/pkg/requestcontext"
)

// HeaderAdminToken authenticates operator requests.
const HeaderAdminToken = "X-Admin-Token"

func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(HeaderAdminToken)
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
