package middleware

import (
	"net/http"

	"github.com/pbinitiative/spaceflake/internal/appcontext"
)

// RequestID keeps the caller's X-Request-Id or assigns a new one, echoes it on the
// response and stores it in the request context.
func RequestID() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(appcontext.RequestIDHeader)
			if id == "" {
				id = appcontext.NewRequestID()
			}
			w.Header().Set(appcontext.RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(appcontext.WithRequestID(r.Context(), id)))
		})
	}
}
