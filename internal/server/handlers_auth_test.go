package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHandleAuthLogin_Success(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", jsonBody(t, map[string]string{
		"token": testAdminToken,
	}))
	rec := httptest.NewRecorder()
	srv.handleAuthLogin(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expiresIn"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Token == "" {
		t.Fatal("expected session token in response")
	}
	if resp.ExpiresIn != int((24 * time.Hour).Seconds()) {
		t.Errorf("expected default 24h expiry, got %d seconds", resp.ExpiresIn)
	}

	if err := validateSessionToken(resp.Token, srv.app.Config.Security.JWTSecret); err != nil {
		t.Errorf("issued session token failed validation: %v", err)
	}
}

func TestHandleAuthLogin_WrongToken(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", jsonBody(t, map[string]string{
		"token": "wrong",
	}))
	rec := httptest.NewRecorder()
	srv.handleAuthLogin(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestValidateSessionToken_WrongSecret(t *testing.T) {
	token, err := signSessionToken("secret-a", time.Hour)
	if err != nil {
		t.Fatalf("signSessionToken failed: %v", err)
	}
	if err := validateSessionToken(token, "secret-b"); err == nil {
		t.Error("expected validation to fail with wrong secret")
	}
}

func TestValidateSessionToken_Expired(t *testing.T) {
	token, err := signSessionToken("secret", -time.Minute)
	if err != nil {
		t.Fatalf("signSessionToken failed: %v", err)
	}
	if err := validateSessionToken(token, "secret"); err == nil {
		t.Error("expected validation to fail for expired token")
	}
}
