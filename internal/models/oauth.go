package models

// TokenMetadata is the advisory record written after a successful OAuth
// token refresh. It is never read back on the proxy path: upstream 401
// responses are the authoritative invalidation signal, and the record
// exists for observability only.
type TokenMetadata struct {
	ExpiresAt   int64 `json:"expiresAt"`   // epoch milliseconds
	RefreshedAt int64 `json:"refreshedAt"` // epoch milliseconds
}

// TokenMetaTTLSlackSeconds is added to the token's expires_in when setting
// the metadata record's TTL so the record outlives the token slightly.
const TokenMetaTTLSlackSeconds = 300

// DefaultTokenExpirySeconds is assumed when a provider omits expires_in.
const DefaultTokenExpirySeconds = 3600
