package models

import (
	"fmt"
	"strings"
)

// AuthType discriminates the APIAuthConfig tagged union.
type AuthType string

const (
	AuthTypeHeader     AuthType = "header"
	AuthTypeQueryParam AuthType = "query_param"
	AuthTypeOAuth      AuthType = "oauth"
)

// OAuth grant types accepted at the config-write boundary.
const (
	GrantClientCredentials = "client_credentials"
	GrantAuthorizationCode = "authorization_code"
)

// Defaults applied to oauth configs that omit header/format.
const (
	DefaultOAuthHeader = "Authorization"
	DefaultOAuthFormat = "Bearer {key}"
)

// FormatKeyPlaceholder is the literal substituted with the secret value in
// header format templates.
const FormatKeyPlaceholder = "{key}"

// APIAuthConfig describes how to authenticate outbound calls to one domain
// for one project. Exactly one variant applies, selected by AuthType:
//
//   - header:      set Header to the secret value, optionally templated by Format
//   - query_param: set Param on the target URL's query string
//   - oauth:       like header, but the secret is a rotating access token
//     refreshed via client-credentials at OAuthTokenURL
//
// SecretKey always names the secret holding the usable credential: a static
// API key for header/query_param, the current access token for oauth.
type APIAuthConfig struct {
	AuthType  AuthType `json:"authType"`
	SecretKey string   `json:"secretKey"`

	// header / oauth
	Header string `json:"header,omitempty"`
	Format string `json:"format,omitempty"`

	// query_param
	Param string `json:"param,omitempty"`

	// oauth
	OAuthTokenURL           string `json:"oauthTokenUrl,omitempty"`
	OAuthClientIDSecret     string `json:"oauthClientIdSecret,omitempty"`
	OAuthClientSecretSecret string `json:"oauthClientSecretSecret,omitempty"`
	OAuthGrantType          string `json:"oauthGrantType,omitempty"`
	OAuthScope              string `json:"oauthScope,omitempty"`
}

// Validate checks the tagged union at the config-write boundary so the
// injection path can trust stored configs.
func (c *APIAuthConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("secretKey is required")
	}

	switch c.AuthType {
	case AuthTypeHeader:
		if c.Header == "" {
			return fmt.Errorf("header is required for authType 'header'")
		}
	case AuthTypeQueryParam:
		if c.Param == "" {
			return fmt.Errorf("param is required for authType 'query_param'")
		}
	case AuthTypeOAuth:
		if c.OAuthTokenURL == "" {
			return fmt.Errorf("oauthTokenUrl is required for authType 'oauth'")
		}
		if c.OAuthClientIDSecret == "" {
			return fmt.Errorf("oauthClientIdSecret is required for authType 'oauth'")
		}
		if c.OAuthClientSecretSecret == "" {
			return fmt.Errorf("oauthClientSecretSecret is required for authType 'oauth'")
		}
		if c.OAuthGrantType != "" &&
			c.OAuthGrantType != GrantClientCredentials &&
			c.OAuthGrantType != GrantAuthorizationCode {
			return fmt.Errorf("unsupported oauthGrantType '%s'", c.OAuthGrantType)
		}
	default:
		return fmt.Errorf("invalid authType '%s'", c.AuthType)
	}

	return nil
}

// EffectiveHeader returns the header name for header/oauth injection,
// applying the oauth default.
func (c *APIAuthConfig) EffectiveHeader() string {
	if c.Header != "" {
		return c.Header
	}
	if c.AuthType == AuthTypeOAuth {
		return DefaultOAuthHeader
	}
	return ""
}

// EffectiveFormat returns the value template for header/oauth injection,
// applying the oauth default. Empty means the raw secret value is used.
func (c *APIAuthConfig) EffectiveFormat() string {
	if c.Format != "" {
		return c.Format
	}
	if c.AuthType == AuthTypeOAuth {
		return DefaultOAuthFormat
	}
	return ""
}

// GrantType returns the configured grant type, defaulting to client_credentials.
func (c *APIAuthConfig) GrantType() string {
	if c.OAuthGrantType == "" {
		return GrantClientCredentials
	}
	return c.OAuthGrantType
}

// FormatValue renders a format template against the secret value. An empty
// template returns the value unchanged.
func FormatValue(format, value string) string {
	if format == "" {
		return value
	}
	return strings.ReplaceAll(format, FormatKeyPlaceholder, value)
}
