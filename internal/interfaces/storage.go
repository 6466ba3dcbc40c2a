// Package interfaces defines storage contracts for keyrelay.
package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/keyrelay/keyrelay/internal/models"
)

// ErrNotFound is returned when a requested record does not exist. Callers
// that treat absence as a normal outcome (the auth resolver, the proxy
// path) test for it with errors.Is.
var ErrNotFound = errors.New("not found")

// StorageManager coordinates all storage areas over a single database.
type StorageManager interface {
	Projects() ProjectStore
	Secrets() SecretStore
	Configs() ConfigStore
	Logs() LogStore
	TokenMeta() TokenMetaStore

	// DeleteProjectCascade removes a project and everything scoped to it:
	// secrets, auth configs, and request logs. Returns counts per area.
	DeleteProjectCascade(ctx context.Context, projectID string) (map[string]int, error)

	Close() error
}

// ProjectStore manages project records.
type ProjectStore interface {
	Get(ctx context.Context, id string) (*models.Project, error)
	Save(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Project, error)

	// Touch bumps a project's UpdatedAt without changing anything else.
	// Called when a secret under the project is written.
	Touch(ctx context.Context, id string, at time.Time) error
}

// SecretStore manages encrypted secrets. Values are sealed on write and
// opened on read; ciphertext never crosses this interface.
type SecretStore interface {
	// GetAll returns every decrypted secret for a project, keyed by name.
	// A missing project yields an empty map, not an error.
	GetAll(ctx context.Context, projectID string) (map[string]models.SecretValue, error)

	Get(ctx context.Context, projectID, name string) (*models.SecretValue, error)
	Set(ctx context.Context, projectID, name, value string) error
	Delete(ctx context.Context, projectID, name string) error

	// List returns secret metadata only. The dashboard never sees values.
	List(ctx context.Context, projectID string) ([]models.SecretMeta, error)

	DeleteByProject(ctx context.Context, projectID string) (int, error)
}

// ConfigStore manages per-domain auth configs for outbound injection.
type ConfigStore interface {
	// Get returns the config for a (project, domain) pair. A stored blob
	// that fails to parse is reported as an error distinct from ErrNotFound
	// so the resolver can log it and fall through.
	Get(ctx context.Context, projectID, domain string) (*models.APIAuthConfig, error)

	Set(ctx context.Context, projectID, domain string, cfg *models.APIAuthConfig) error
	Delete(ctx context.Context, projectID, domain string) error
	List(ctx context.Context, projectID string) (map[string]*models.APIAuthConfig, error)
	DeleteByProject(ctx context.Context, projectID string) (int, error)
}

// LogStore manages append-only, TTL-expired log entries.
type LogStore interface {
	Append(ctx context.Context, entry *models.LogEntry) error

	// List returns a project's request logs newest-first, capped at limit.
	List(ctx context.Context, projectID string, limit int) ([]*models.LogEntry, error)

	AppendSecurity(ctx context.Context, entry *models.SecurityLogEntry) error
	ListSecurity(ctx context.Context, limit int) ([]*models.SecurityLogEntry, error)

	DeleteByProject(ctx context.Context, projectID string) (int, error)
}

// TokenMetaStore manages advisory OAuth token metadata. Records carry a TTL
// slightly past the token's own expiry and are informational only.
type TokenMetaStore interface {
	Put(ctx context.Context, projectID, secretKey string, meta *models.TokenMetadata, ttl time.Duration) error
	Get(ctx context.Context, projectID, secretKey string) (*models.TokenMetadata, error)
}
