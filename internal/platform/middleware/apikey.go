package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "nexushq/pkg/domain-errors"
	"nexushq/pkg/platform/httputil"
	"nexushq/pkg/requestcontext"
)

// HeaderAPIKey carries a client's API key. Authorization: Bearer is also accepted.
const HeaderAPIKey = "X-API-Key"

type contextKeyAPIKey struct{}

// APIKeyFromRequest returns the presented key, preferring X-API-Key.
func APIKeyFromRequest(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(HeaderAPIKey)); key != "" {
		return key
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// RequireAPIKey rejects requests that present no key and stores the raw key in
// context. Resolving it to a client is left to the ingestion gateway so that
// authentication and ledger writes stay in one ordered operation.
func RequireAPIKey(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := APIKeyFromRequest(r)
			if key == "" {
				ctx := r.Context()
				logger.WarnContext(ctx, "missing api key",
					"request_id", requestcontext.RequestID(ctx),
					"client_ip", ClientIPFromRequest(r),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "API key required"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAPIKey(r.Context(), key)))
		})
	}
}

// APIKey returns the key stored by RequireAPIKey.
func APIKey(ctx context.Context) string {
	key, _ := ctx.Value(contextKeyAPIKey{}).(string)
	return key
}

// WithAPIKey injects a key into ctx. Useful for handler tests that skip the middleware.
func WithAPIKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, contextKeyAPIKey{}, key)
}
