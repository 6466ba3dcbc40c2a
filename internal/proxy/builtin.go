package proxy

import "github.com/keyrelay/keyrelay/internal/models"

// builtinAuthTable maps well-known API hostnames to their fixed auth recipe.
// Keyed by exact lowercase hostname; compiled-in and read-only. The SecretKey
// names follow the provider_api_key convention, so a project only needs to
// store a secret under that name for injection to work without any custom
// config.
var builtinAuthTable = map[string]*models.APIAuthConfig{
	"api.nal.usda.gov": {
		AuthType:  models.AuthTypeQueryParam,
		Param:     "api_key",
		SecretKey: "usda_api_key",
	},
	"api.openweathermap.org": {
		AuthType:  models.AuthTypeQueryParam,
		Param:     "appid",
		SecretKey: "openweather_api_key",
	},
	"api.stripe.com": {
		AuthType:  models.AuthTypeHeader,
		Header:    "Authorization",
		Format:    "Bearer {key}",
		SecretKey: "stripe_api_key",
	},
	"api.github.com": {
		AuthType:  models.AuthTypeHeader,
		Header:    "Authorization",
		Format:    "token {key}",
		SecretKey: "github_api_key",
	},
	"maps.googleapis.com": {
		AuthType:  models.AuthTypeQueryParam,
		Param:     "key",
		SecretKey: "google_maps_api_key",
	},
	"generativelanguage.googleapis.com": {
		AuthType:  models.AuthTypeQueryParam,
		Param:     "key",
		SecretKey: "gemini_api_key",
	},
}

// BuiltinAuthFor returns the compiled-in auth recipe for a hostname, or nil.
func BuiltinAuthFor(domain string) *models.APIAuthConfig {
	return builtinAuthTable[domain]
}
