package auth

import (
	"net/http"

	log "github.com/sirupsen/logrus"
)

// Middleware validates the bearer token and forwards the authenticated
// identity via request headers.
func Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := extractAndValidateToken(r, w)
		if err != nil {
			return
		}

		r.Header.Set("X-Player-ID", claims.PlayerID)
		r.Header.Set("X-Username", claims.Username)

		next(w, r)
	}
}

// extractTokenFromRequest reads the token from the Authorization
// header or, for websocket upgrades, from the token query parameter.
func extractTokenFromRequest(r *http.Request, w http.ResponseWriter) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		return authHeader, nil
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Unauthorized: Missing token", http.StatusUnauthorized)
		return "", http.ErrNoCookie
	}
	return "Bearer " + token, nil
}

// extractAndValidateToken validates the request token. On failure the
// error response has already been written.
func extractAndValidateToken(r *http.Request, w http.ResponseWriter) (*Claims, error) {
	authHeader, err := extractTokenFromRequest(r, w)
	if err != nil {
		return nil, err
	}

	tokenString, err := ExtractTokenFromHeader(authHeader)
	if err != nil {
		http.Error(w, "Unauthorized: Invalid token format", http.StatusUnauthorized)
		return nil, err
	}

	claims, err := ValidateToken(tokenString)
	if err != nil {
		log.Printf("Token validation error: %v", err)
		http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
		return nil, err
	}

	return claims, nil
}
