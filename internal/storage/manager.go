// Package storage provides the top-level StorageManager over a single
// badger database.
package storage

import (
	"context"
	"fmt"

	"github.com/keyrelay/keyrelay/internal/common"
	"github.com/keyrelay/keyrelay/internal/interfaces"
	"github.com/keyrelay/keyrelay/internal/storage/badger"
)

// Manager implements interfaces.StorageManager.
type Manager struct {
	store     *badger.Store
	projects  interfaces.ProjectStore
	secrets   interfaces.SecretStore
	configs   interfaces.ConfigStore
	logs      interfaces.LogStore
	tokenMeta interfaces.TokenMetaStore
	logger    *common.Logger
}

// NewManager opens the database at config.Storage.Path and wires the
// storage areas over it. The encryptor seals secret values at rest.
func NewManager(logger *common.Logger, config *common.Config, encryptor badger.Encryptor) (*Manager, error) {
	store, err := badger.NewStore(logger, config.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	logger.Info().Str("path", config.Storage.Path).Msg("Storage manager initialized")

	return &Manager{
		store:     store,
		projects:  badger.NewProjectStorage(store, logger),
		secrets:   badger.NewSecretStorage(store, encryptor, logger),
		configs:   badger.NewConfigStorage(store, logger),
		logs:      badger.NewLogStorage(store, logger),
		tokenMeta: badger.NewTokenMetaStorage(store, logger),
		logger:    logger,
	}, nil
}

func (m *Manager) Projects() interfaces.ProjectStore     { return m.projects }
func (m *Manager) Secrets() interfaces.SecretStore       { return m.secrets }
func (m *Manager) Configs() interfaces.ConfigStore       { return m.configs }
func (m *Manager) Logs() interfaces.LogStore             { return m.logs }
func (m *Manager) TokenMeta() interfaces.TokenMetaStore  { return m.tokenMeta }

// DeleteProjectCascade removes a project and everything scoped to it.
func (m *Manager) DeleteProjectCascade(ctx context.Context, projectID string) (map[string]int, error) {
	counts := make(map[string]int)

	if err := m.projects.Delete(ctx, projectID); err != nil {
		return counts, err
	}

	secretCount, err := m.secrets.DeleteByProject(ctx, projectID)
	if err != nil {
		return counts, fmt.Errorf("failed to purge secrets: %w", err)
	}
	counts["secrets"] = secretCount

	configCount, err := m.configs.DeleteByProject(ctx, projectID)
	if err != nil {
		return counts, fmt.Errorf("failed to purge auth configs: %w", err)
	}
	counts["configs"] = configCount

	logCount, err := m.logs.DeleteByProject(ctx, projectID)
	if err != nil {
		return counts, fmt.Errorf("failed to purge logs: %w", err)
	}
	counts["logs"] = logCount

	m.logger.Info().
		Str("project_id", projectID).
		Int("secrets", counts["secrets"]).
		Int("configs", counts["configs"]).
		Int("logs", counts["logs"]).
		Msg("Project deleted")

	return counts, nil
}

// Close closes the underlying database.
func (m *Manager) Close() error {
	return m.store.Close()
}
