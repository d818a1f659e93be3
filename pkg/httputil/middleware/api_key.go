package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/edgeflare/ragapi/pkg/httputil"
)

const APIKeyHeader = "X-API-Key"

// VerifyAPIKey rejects requests whose X-API-Key header does not match key with 401.
// An empty key disables the check.
func VerifyAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				httputil.Error(w, http.StatusUnauthorized, "Invalid or missing API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
