package models

import "time"

// SecretRecord is a stored secret: the value is AES-GCM ciphertext, never
// plaintext. Keyed by (ProjectID, Name).
type SecretRecord struct {
	ProjectID  string    `json:"projectId"`
	Name       string    `json:"name"`
	Ciphertext string    `json:"ciphertext"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// SecretValue is the decrypted view of a secret handed to the proxy core.
type SecretValue struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SecretMeta describes a secret without exposing its value. Used by the
// listing API so the dashboard never receives plaintext credentials.
type SecretMeta struct {
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LegacyHeaderPrefix marks secrets that are injected as headers when no
// auth config resolves for the target domain: a secret named
// "header_x-api-key" becomes the header "x-api-key".
const LegacyHeaderPrefix = "header_"
