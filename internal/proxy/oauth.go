package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/keyrelay/keyrelay/internal/clients/oauth"
	"github.com/keyrelay/keyrelay/internal/common"
	"github.com/keyrelay/keyrelay/internal/interfaces"
	"github.com/keyrelay/keyrelay/internal/models"
)

// TokenManager refreshes OAuth access tokens reactively. There is no
// proactive refresh: upstream 401 responses are the invalidation signal,
// and the metadata written here is advisory only.
type TokenManager struct {
	client    *oauth.Client
	secrets   interfaces.SecretStore
	tokenMeta interfaces.TokenMetaStore
	logger    *common.Logger
}

// NewTokenManager creates a TokenManager.
func NewTokenManager(client *oauth.Client, secrets interfaces.SecretStore, tokenMeta interfaces.TokenMetaStore, logger *common.Logger) *TokenManager {
	return &TokenManager{
		client:    client,
		secrets:   secrets,
		tokenMeta: tokenMeta,
		logger:    logger,
	}
}

// Refresh exchanges the project's client credentials for a fresh access
// token and overwrites the secret named by cfg.SecretKey with it.
//
// Concurrent refreshes for the same (project, secretKey) are not locked
// against each other: last write wins, which is safe because any valid
// fresh token works.
func (m *TokenManager) Refresh(ctx context.Context, projectID string, cfg *models.APIAuthConfig, secrets map[string]models.SecretValue) (string, error) {
	clientID, okID := secrets[cfg.OAuthClientIDSecret]
	clientSecret, okSecret := secrets[cfg.OAuthClientSecretSecret]
	if !okID || !okSecret {
		return "", fmt.Errorf("OAuth credentials not found in secrets")
	}

	resp, err := m.client.Exchange(ctx, oauth.TokenRequest{
		TokenURL:     cfg.OAuthTokenURL,
		ClientID:     clientID.Value,
		ClientSecret: clientSecret.Value,
		GrantType:    cfg.GrantType(),
		Scope:        cfg.OAuthScope,
	})
	if err != nil {
		return "", err
	}

	expiresIn := resp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = models.DefaultTokenExpirySeconds
	}

	if err := m.secrets.Set(ctx, projectID, cfg.SecretKey, resp.AccessToken); err != nil {
		return "", fmt.Errorf("failed to store refreshed token: %w", err)
	}

	// Best effort: a metadata write failure never fails the refresh.
	now := time.Now()
	meta := &models.TokenMetadata{
		ExpiresAt:   now.Add(time.Duration(expiresIn) * time.Second).UnixMilli(),
		RefreshedAt: now.UnixMilli(),
	}
	ttl := time.Duration(expiresIn+models.TokenMetaTTLSlackSeconds) * time.Second
	if err := m.tokenMeta.Put(ctx, projectID, cfg.SecretKey, meta, ttl); err != nil {
		m.logger.Warn().
			Str("project_id", projectID).
			Str("secret", cfg.SecretKey).
			Err(err).
			Msg("Failed to write token metadata")
	}

	m.logger.Info().
		Str("project_id", projectID).
		Str("secret", cfg.SecretKey).
		Int64("expires_in", expiresIn).
		Msg("OAuth token refreshed")

	return resp.AccessToken, nil
}
