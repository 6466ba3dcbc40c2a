package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/keyrelay/keyrelay/internal/common"
	"github.com/keyrelay/keyrelay/internal/models"
)

const (
	logKeyPrefix         = "log:"
	securityLogKeyPrefix = "security_log:"
)

// logStorage writes append-only log entries to the raw badger KV with a
// TTL, keyed so that lexical order is chronological order. A reverse
// prefix scan then yields newest-first without a sort.
type logStorage struct {
	store  *Store
	logger *common.Logger
}

// NewLogStorage creates a LogStore over the raw badger KV.
func NewLogStorage(store *Store, logger *common.Logger) *logStorage {
	return &logStorage{store: store, logger: logger}
}

// logKey builds log:{projectID}:{ts}:{suffix} with a zero-padded
// nanosecond timestamp and a short random suffix to keep concurrent
// writes from colliding.
func logKey(projectID string, tsNano int64) string {
	return fmt.Sprintf("%s%s:%020d:%s", logKeyPrefix, projectID, tsNano, uuid.NewString()[:8])
}

func (s *logStorage) Append(_ context.Context, entry *models.LogEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode log entry: %w", err)
	}
	return s.store.kvPut(logKey(entry.ProjectID, entry.Timestamp.UnixNano()), value, models.RequestLogTTL)
}

func (s *logStorage) List(_ context.Context, projectID string, limit int) ([]*models.LogEntry, error) {
	prefix := logKeyPrefix + projectID + ":"
	var entries []*models.LogEntry

	err := s.store.kvScanPrefix(prefix, true, func(key string, value []byte) bool {
		var entry models.LogEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			s.logger.Warn().Str("key", key).Err(err).Msg("Skipping malformed log entry")
			return true
		}
		entries = append(entries, &entry)
		return limit <= 0 || len(entries) < limit
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *logStorage) AppendSecurity(_ context.Context, entry *models.SecurityLogEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode security log entry: %w", err)
	}
	key := fmt.Sprintf("%s%020d:%s", securityLogKeyPrefix, entry.Timestamp.UnixNano(), uuid.NewString()[:8])
	return s.store.kvPut(key, value, models.SecurityLogTTL)
}

func (s *logStorage) ListSecurity(_ context.Context, limit int) ([]*models.SecurityLogEntry, error) {
	var entries []*models.SecurityLogEntry

	err := s.store.kvScanPrefix(securityLogKeyPrefix, true, func(key string, value []byte) bool {
		var entry models.SecurityLogEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			s.logger.Warn().Str("key", key).Err(err).Msg("Skipping malformed security log entry")
			return true
		}
		entries = append(entries, &entry)
		return limit <= 0 || len(entries) < limit
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *logStorage) DeleteByProject(_ context.Context, projectID string) (int, error) {
	return s.store.kvDeletePrefix(logKeyPrefix + projectID + ":")
}
