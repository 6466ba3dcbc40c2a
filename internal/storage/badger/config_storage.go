package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/keyrelay/keyrelay/internal/common"
	"github.com/keyrelay/keyrelay/internal/models"
)

// configKeyPrefix scopes auth-config entries in the raw KV namespace:
// api_config:{projectID}:{domain}. Domains are hostnames and cannot
// contain ':', so the layout is unambiguous.
const configKeyPrefix = "api_config:"

type configStorage struct {
	store  *Store
	logger *common.Logger
}

// NewConfigStorage creates a ConfigStore over the raw badger KV.
func NewConfigStorage(store *Store, logger *common.Logger) *configStorage {
	return &configStorage{store: store, logger: logger}
}

func configKey(projectID, domain string) string {
	return configKeyPrefix + projectID + ":" + domain
}

func (s *configStorage) Get(_ context.Context, projectID, domain string) (*models.APIAuthConfig, error) {
	value, err := s.store.kvGet(configKey(projectID, domain))
	if err != nil {
		return nil, err
	}

	var cfg models.APIAuthConfig
	if err := json.Unmarshal(value, &cfg); err != nil {
		return nil, fmt.Errorf("malformed auth config for '%s' in project '%s': %w", domain, projectID, err)
	}
	return &cfg, nil
}

func (s *configStorage) Set(_ context.Context, projectID, domain string, cfg *models.APIAuthConfig) error {
	value, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode auth config for '%s': %w", domain, err)
	}
	if err := s.store.kvPut(configKey(projectID, domain), value, 0); err != nil {
		return err
	}
	s.logger.Debug().
		Str("project_id", projectID).
		Str("domain", domain).
		Str("auth_type", string(cfg.AuthType)).
		Msg("Auth config saved")
	return nil
}

func (s *configStorage) Delete(_ context.Context, projectID, domain string) error {
	return s.store.kvDelete(configKey(projectID, domain))
}

func (s *configStorage) List(_ context.Context, projectID string) (map[string]*models.APIAuthConfig, error) {
	prefix := configKeyPrefix + projectID + ":"
	configs := make(map[string]*models.APIAuthConfig)

	err := s.store.kvScanPrefix(prefix, false, func(key string, value []byte) bool {
		domain := strings.TrimPrefix(key, prefix)
		var cfg models.APIAuthConfig
		if err := json.Unmarshal(value, &cfg); err != nil {
			s.logger.Warn().
				Str("project_id", projectID).
				Str("domain", domain).
				Err(err).
				Msg("Skipping malformed auth config")
			return true
		}
		configs[domain] = &cfg
		return true
	})
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func (s *configStorage) DeleteByProject(_ context.Context, projectID string) (int, error) {
	return s.store.kvDeletePrefix(configKeyPrefix + projectID + ":")
}
