package middleware

import (
	"net/http"
)

// StripEmptyQueryParams drops query parameters whose values are all empty, so
// "?baseEpoch=" reads the same as a missing parameter.
func StripEmptyQueryParams() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			for k, vs := range q {
				kept := vs[:0]
				for _, v := range vs {
					if v != "" {
						kept = append(kept, v)
					}
				}
				if len(kept) == 0 {
					delete(q, k)
					continue
				}
				q[k] = kept
			}
			r.URL.RawQuery = q.Encode()
			next.ServeHTTP(w, r)
		})
	}
}

