package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/keyrelay/keyrelay/internal/common"
	"github.com/keyrelay/keyrelay/internal/models"
)

// tokenMetaKeyPrefix scopes advisory OAuth token metadata:
// oauth_token_meta:{projectID}:{secretKey}.
const tokenMetaKeyPrefix = "oauth_token_meta:"

type tokenMetaStorage struct {
	store  *Store
	logger *common.Logger
}

// NewTokenMetaStorage creates a TokenMetaStore over the raw badger KV.
func NewTokenMetaStorage(store *Store, logger *common.Logger) *tokenMetaStorage {
	return &tokenMetaStorage{store: store, logger: logger}
}

func tokenMetaKey(projectID, secretKey string) string {
	return tokenMetaKeyPrefix + projectID + ":" + secretKey
}

func (s *tokenMetaStorage) Put(_ context.Context, projectID, secretKey string, meta *models.TokenMetadata, ttl time.Duration) error {
	value, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode token metadata: %w", err)
	}
	return s.store.kvPut(tokenMetaKey(projectID, secretKey), value, ttl)
}

func (s *tokenMetaStorage) Get(_ context.Context, projectID, secretKey string) (*models.TokenMetadata, error) {
	value, err := s.store.kvGet(tokenMetaKey(projectID, secretKey))
	if err != nil {
		return nil, err
	}

	var meta models.TokenMetadata
	if err := json.Unmarshal(value, &meta); err != nil {
		return nil, fmt.Errorf("malformed token metadata for '%s' in project '%s': %w", secretKey, projectID, err)
	}
	return &meta, nil
}
