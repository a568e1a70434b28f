// Package middleware holds the HTTP middleware chain: request identity,
// panic recovery, request logging, and token-based authorization.
package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"accessd/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns each request an ID and a single request-scoped
// timestamp. The ID is taken from the X-Request-ID header when a caller
// supplies one, so IDs survive proxies and retries. The timestamp keeps
// every write produced by one request on the same clock reading.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())

		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
