package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"nexushq/pkg/requestcontext"
)

// HeaderRequestID carries the correlation id in and out.
const HeaderRequestID = "X-Request-ID"

const maxRequestIDLength = 128

// RequestContext stamps every request with a correlation id and a single
// request-scoped "now". An inbound X-Request-ID is honored when reasonable.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
