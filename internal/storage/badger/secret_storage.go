package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/keyrelay/keyrelay/internal/common"
	"github.com/keyrelay/keyrelay/internal/interfaces"
	"github.com/keyrelay/keyrelay/internal/models"
)

// secretStorage stores secrets as badgerhold records keyed by
// projectID + kvSep + name, with values sealed by the injected Encryptor.
// Decryption failures surface immediately; a secret that cannot be opened
// is never silently skipped.
type secretStorage struct {
	store     *Store
	encryptor Encryptor
	logger    *common.Logger
}

// NewSecretStorage creates a SecretStore backed by BadgerHold.
func NewSecretStorage(store *Store, encryptor Encryptor, logger *common.Logger) *secretStorage {
	return &secretStorage{store: store, encryptor: encryptor, logger: logger}
}

func (s *secretStorage) GetAll(_ context.Context, projectID string) (map[string]models.SecretValue, error) {
	var records []models.SecretRecord
	if err := s.store.db.Find(&records, badgerhold.Where("ProjectID").Eq(projectID)); err != nil {
		return nil, fmt.Errorf("failed to list secrets for project '%s': %w", projectID, err)
	}

	secrets := make(map[string]models.SecretValue, len(records))
	for _, record := range records {
		value, err := s.encryptor.Decrypt(record.Ciphertext)
		if err != nil {
			return nil, fmt.Errorf("secret '%s' in project '%s': %w", record.Name, projectID, err)
		}
		secrets[record.Name] = models.SecretValue{Value: value, UpdatedAt: record.UpdatedAt}
	}
	return secrets, nil
}

func (s *secretStorage) Get(_ context.Context, projectID, name string) (*models.SecretValue, error) {
	var record models.SecretRecord
	if err := s.store.db.Get(projectID+kvSep+name, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("secret '%s' in project '%s': %w", name, projectID, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get secret '%s' in project '%s': %w", name, projectID, err)
	}

	value, err := s.encryptor.Decrypt(record.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("secret '%s' in project '%s': %w", name, projectID, err)
	}
	return &models.SecretValue{Value: value, UpdatedAt: record.UpdatedAt}, nil
}

func (s *secretStorage) Set(_ context.Context, projectID, name, value string) error {
	ciphertext, err := s.encryptor.Encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt secret '%s': %w", name, err)
	}

	record := models.SecretRecord{
		ProjectID:  projectID,
		Name:       name,
		Ciphertext: ciphertext,
		UpdatedAt:  time.Now(),
	}
	if err := s.store.db.Upsert(projectID+kvSep+name, &record); err != nil {
		return fmt.Errorf("failed to save secret '%s' in project '%s': %w", name, projectID, err)
	}
	s.logger.Debug().Str("project_id", projectID).Str("secret", name).Msg("Secret saved")
	return nil
}

func (s *secretStorage) Delete(_ context.Context, projectID, name string) error {
	err := s.store.db.Delete(projectID+kvSep+name, models.SecretRecord{})
	if err == badgerhold.ErrNotFound {
		return fmt.Errorf("secret '%s' in project '%s': %w", name, projectID, interfaces.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete secret '%s' in project '%s': %w", name, projectID, err)
	}
	return nil
}

func (s *secretStorage) List(_ context.Context, projectID string) ([]models.SecretMeta, error) {
	var records []models.SecretRecord
	if err := s.store.db.Find(&records, badgerhold.Where("ProjectID").Eq(projectID)); err != nil {
		return nil, fmt.Errorf("failed to list secrets for project '%s': %w", projectID, err)
	}

	metas := make([]models.SecretMeta, len(records))
	for i, record := range records {
		metas[i] = models.SecretMeta{Name: record.Name, UpdatedAt: record.UpdatedAt}
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas, nil
}

func (s *secretStorage) DeleteByProject(_ context.Context, projectID string) (int, error) {
	var records []models.SecretRecord
	if err := s.store.db.Find(&records, badgerhold.Where("ProjectID").Eq(projectID)); err != nil {
		return 0, fmt.Errorf("failed to list secrets for project '%s': %w", projectID, err)
	}

	for _, record := range records {
		if err := s.store.db.Delete(record.ProjectID+kvSep+record.Name, models.SecretRecord{}); err != nil && err != badgerhold.ErrNotFound {
			return 0, fmt.Errorf("failed to delete secret '%s': %w", record.Name, err)
		}
	}
	return len(records), nil
}
