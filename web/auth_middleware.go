package web

import "net/http"

func authMiddleware(secretKey string, next http.HandlerFunc) http.HandlerFunc {
	if secretKey == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !isAuthenticated(r, secretKey) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}
