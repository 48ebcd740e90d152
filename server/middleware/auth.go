package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/humbleclay/humbleclay/errors"
)

// Authentication validates the X-API-Key header against the configured
// key. The key is resolved per request so configuration reloads take
// effect without a restart. An empty configured key disables the check,
// which is only appropriate for local development.
func Authentication(apiKey func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			expected := apiKey()
			if expected == "" {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			if key == "" {
				errors.ErrorWithType(w, "Missing API key", errors.AuthenticationError, http.StatusUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
				errors.ErrorWithType(w, "Invalid API key", errors.AuthenticationError, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
