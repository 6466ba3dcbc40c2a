package proxy

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/keyrelay/keyrelay/internal/common"
	"github.com/keyrelay/keyrelay/internal/crypto"
	"github.com/keyrelay/keyrelay/internal/interfaces"
	"github.com/keyrelay/keyrelay/internal/models"
	"github.com/keyrelay/keyrelay/internal/storage"
)

func newTestStorage(t *testing.T) interfaces.StorageManager {
	t.Helper()

	key := sha256.Sum256([]byte("proxy-test-key"))
	enc, err := crypto.NewEncryptor(key[:])
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	config := common.NewDefaultConfig()
	config.Storage.Path = t.TempDir()

	manager, err := storage.NewManager(common.NewSilentLogger(), config, enc)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestResolver_CustomOverridesBuiltin(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	resolver := NewResolver(store.Configs(), common.NewSilentLogger())

	custom := &models.APIAuthConfig{
		AuthType:  models.AuthTypeHeader,
		SecretKey: "my_github_token",
		Header:    "Authorization",
		Format:    "Bearer {key}",
	}
	if err := store.Configs().Set(ctx, "p1", "api.github.com", custom); err != nil {
		t.Fatalf("Set config: %v", err)
	}

	got := resolver.Resolve(ctx, "p1", "api.github.com")
	if got == nil || got.SecretKey != "my_github_token" {
		t.Errorf("Resolve = %+v, want custom config", got)
	}

	// Another project without a custom config still gets the builtin.
	got = resolver.Resolve(ctx, "p2", "api.github.com")
	if got == nil || got.SecretKey != "github_api_key" {
		t.Errorf("Resolve for p2 = %+v, want builtin recipe", got)
	}
}

func TestResolver_NoMatchReturnsNil(t *testing.T) {
	store := newTestStorage(t)
	resolver := NewResolver(store.Configs(), common.NewSilentLogger())

	if got := resolver.Resolve(context.Background(), "p1", "unknown.example.com"); got != nil {
		t.Errorf("Resolve = %+v, want nil", got)
	}
}

// malformedConfigStore simulates a stored config blob that fails to parse.
type malformedConfigStore struct {
	interfaces.ConfigStore
}

func (malformedConfigStore) Get(context.Context, string, string) (*models.APIAuthConfig, error) {
	return nil, errors.New("malformed auth config: unexpected end of JSON input")
}

func TestResolver_MalformedConfigFallsThrough(t *testing.T) {
	ctx := context.Background()
	resolver := NewResolver(malformedConfigStore{}, common.NewSilentLogger())

	got := resolver.Resolve(ctx, "p1", "api.github.com")
	if got == nil || got.SecretKey != "github_api_key" {
		t.Errorf("Resolve with malformed custom config = %+v, want builtin fallback", got)
	}

	if got := resolver.Resolve(ctx, "p1", "unknown.example.com"); got != nil {
		t.Errorf("Resolve = %+v, want nil when only a malformed config exists", got)
	}
}
