package middleware

import "net/http"

// DefaultMaxBody is the request body cap applied by MaxBody when n is zero.
const DefaultMaxBody = 1 << 20

// MaxBody caps request bodies at n bytes. Handlers see a read error past the cap.
func MaxBody(n int64) func(http.Handler) http.Handler {
	if n <= 0 {
		n = DefaultMaxBody
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
