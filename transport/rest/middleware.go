package rest

import (
	"crypto/subtle"
	"net/http"
)

// platformOnly admits requests carrying the platform API key. Without a configured key nothing is admitted.
func (that *Handlers) platformOnly(next http.Handler) http.Handler {
	expected := []byte("Bearer " + that.apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))

		if that.apiKey == "" || subtle.ConstantTimeCompare(got, expected) != 1 {
			that.writeJSON(w, http.StatusUnauthorized, ErrorResponse{Detail: "invalid api key"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
