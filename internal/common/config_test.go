package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_DefaultPort(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port default = %d, want %d", cfg.Server.Port, 8080)
	}
}

func TestConfig_PortEnvOverride(t *testing.T) {
	t.Setenv("KEYRELAY_PORT", "9090")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d after env override, want %d", cfg.Server.Port, 9090)
	}
}

func TestConfig_AdminTokenEnvOverride(t *testing.T) {
	t.Setenv("KEYRELAY_ADMIN_TOKEN", "tok-from-env")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Security.AdminToken != "tok-from-env" {
		t.Errorf("AdminToken = %q, want %q", cfg.Security.AdminToken, "tok-from-env")
	}
}

func TestConfig_LoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyrelay.toml")
	content := `
environment = "production"

[server]
port = 9999

[security]
admin_token = "file-token"
rate_limit = 50
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Security.AdminToken != "file-token" {
		t.Errorf("AdminToken = %q, want %q", cfg.Security.AdminToken, "file-token")
	}
	if cfg.Security.RateLimit != 50 {
		t.Errorf("RateLimit = %d, want 50", cfg.Security.RateLimit)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction() = false for environment=production")
	}
}

func TestConfig_MissingFileSkipped(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("LoadConfig with missing file: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("defaults not applied, Port = %d", cfg.Server.Port)
	}
}

func TestConfig_ValidateRequired_AllMissing(t *testing.T) {
	cfg := &Config{
		Security: SecurityConfig{JWTSecret: "dev-jwt-secret-change-in-production"},
	}
	missing := cfg.ValidateRequired()
	if len(missing) != 3 {
		t.Errorf("expected 3 missing fields, got %d: %v", len(missing), missing)
	}
}

func TestConfig_ValidateRequired_AllPresent(t *testing.T) {
	cfg := &Config{
		Security: SecurityConfig{
			AdminToken:    "admin",
			JWTSecret:     "real-secret-value",
			EncryptionKey: "a2V5LWtleS1rZXkta2V5LWtleS1rZXkta2V5LWtleQ==",
		},
	}
	missing := cfg.ValidateRequired()
	if len(missing) != 0 {
		t.Errorf("expected 0 missing fields, got %d: %v", len(missing), missing)
	}
}

func TestSecurityConfig_SessionExpiry(t *testing.T) {
	c := SecurityConfig{SessionExpiry: "2h"}
	if got := c.GetSessionExpiry(); got != 2*time.Hour {
		t.Errorf("GetSessionExpiry() = %v, want 2h", got)
	}

	c.SessionExpiry = "garbage"
	if got := c.GetSessionExpiry(); got != 24*time.Hour {
		t.Errorf("GetSessionExpiry() fallback = %v, want 24h", got)
	}
}

func TestProxyConfig_UpstreamTimeout(t *testing.T) {
	c := ProxyConfig{UpstreamTimeout: "5s"}
	if got := c.GetUpstreamTimeout(); got != 5*time.Second {
		t.Errorf("GetUpstreamTimeout() = %v, want 5s", got)
	}

	c.UpstreamTimeout = ""
	if got := c.GetUpstreamTimeout(); got != 30*time.Second {
		t.Errorf("GetUpstreamTimeout() fallback = %v, want 30s", got)
	}
}
