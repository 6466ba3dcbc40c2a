package proxy

import (
	"context"
	"errors"

	"github.com/keyrelay/keyrelay/internal/common"
	"github.com/keyrelay/keyrelay/internal/interfaces"
	"github.com/keyrelay/keyrelay/internal/models"
)

// Resolver picks the effective auth config for a (project, domain) pair.
// Custom per-project configs override the built-in table; no match at all
// returns nil and the caller falls back to legacy header_ injection.
type Resolver struct {
	configs interfaces.ConfigStore
	logger  *common.Logger
}

// NewResolver creates a Resolver over the config store.
func NewResolver(configs interfaces.ConfigStore, logger *common.Logger) *Resolver {
	return &Resolver{configs: configs, logger: logger}
}

// Resolve returns the auth config for domain, or nil when none applies.
// A stored config that fails to parse is logged and treated as absent, so
// resolution continues to the built-in table rather than failing the call.
func (r *Resolver) Resolve(ctx context.Context, projectID, domain string) *models.APIAuthConfig {
	cfg, err := r.configs.Get(ctx, projectID, domain)
	if err == nil {
		return cfg
	}
	if !errors.Is(err, interfaces.ErrNotFound) {
		r.logger.Warn().
			Str("project_id", projectID).
			Str("domain", domain).
			Err(err).
			Msg("Unusable stored auth config, falling back")
	}

	return BuiltinAuthFor(domain)
}
