package models

import "time"

// Log retention windows.
const (
	RequestLogTTL  = 30 * 24 * time.Hour
	SecurityLogTTL = 7 * 24 * time.Hour
)

// LogEntry records one proxied call. Append-only, expired by TTL,
// never updated.
type LogEntry struct {
	ProjectID string    `json:"projectId"`
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Status    int       `json:"status"`
	UserAgent string    `json:"userAgent"`
}

// SecurityLogEntry records a request rejected by the suspicious-pattern scan.
type SecurityLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	ClientID  string    `json:"clientId"`
	Method    string    `json:"method"`
	URL       string    `json:"url"`
	Pattern   string    `json:"pattern"`
	UserAgent string    `json:"userAgent"`
}
