// Package middleware provides the request-scoped context middleware shared by
// all HTTP handlers.
package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	id "certflow/pkg/domain"
	"certflow/pkg/requestcontext"
)

// RequestID assigns each request a correlation ID, honoring an inbound
// X-Request-ID header when present.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestTime captures the current time at the start of the request so all
// operations within it share one "now" in timestamps and audit records.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Actor extracts the acting user from the X-Actor-ID header. Authentication
// proper is owned by the fronting gateway; this service only needs the
// already-authenticated actor identity for audit records.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("X-Actor-ID"); raw != "" {
			if actorID, err := id.ParseActorID(raw); err == nil {
				ctx := requestcontext.WithActorID(r.Context(), actorID)
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}
