package proxy

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/keyrelay/keyrelay/internal/models"
)

// InjectAuth applies an auth config to an outbound request, mutating the
// given headers and target URL in place. The query string is rewritten
// before headers so both mutations land on the same outbound request.
//
// With no config, the legacy convention applies: every secret named
// header_<rest> becomes a header named <rest> with '_' replaced by '-'.
// This is the only path that may inject more than one header.
//
// For header/query_param/oauth configs, a SecretKey that names no existing
// secret makes injection a no-op: nothing is set, no error is raised, and
// the call proceeds unauthenticated.
func InjectAuth(headers http.Header, target *url.URL, secrets map[string]models.SecretValue, cfg *models.APIAuthConfig) {
	if cfg == nil {
		for name, secret := range secrets {
			rest, ok := strings.CutPrefix(name, models.LegacyHeaderPrefix)
			if !ok || rest == "" {
				continue
			}
			headers.Set(strings.ReplaceAll(rest, "_", "-"), secret.Value)
		}
		return
	}

	secret, ok := secrets[cfg.SecretKey]
	if !ok {
		return
	}

	switch cfg.AuthType {
	case models.AuthTypeHeader, models.AuthTypeOAuth:
		headers.Set(cfg.EffectiveHeader(), models.FormatValue(cfg.EffectiveFormat(), secret.Value))
	case models.AuthTypeQueryParam:
		query := target.Query()
		query.Set(cfg.Param, secret.Value)
		target.RawQuery = query.Encode()
	}
}
