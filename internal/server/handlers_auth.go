package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// handleAuthLogin handles POST /api/auth/login — exchange the admin token
// for a short-lived session JWT the dashboard can hold instead of the
// long-lived admin credential.
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Token), []byte(s.app.Config.Security.AdminToken)) != 1 {
		s.logger.Info().Str("client", clientID(r)).Msg("Failed login attempt")
		WriteError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	expiry := s.app.Config.Security.GetSessionExpiry()
	token, err := signSessionToken(s.app.Config.Security.JWTSecret, expiry)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign session token")
		WriteError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token":     token,
		"expiresIn": int(expiry.Seconds()),
	})
}

// signSessionToken creates an HS256 session JWT for a logged-in admin.
func signSessionToken(secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"jti": uuid.New().String(),
		"sub": "admin",
		"iss": "keyrelay",
		"iat": now.Unix(),
		"exp": now.Add(expiry).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// validateSessionToken parses and verifies a session JWT.
func validateSessionToken(tokenString, secret string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}
