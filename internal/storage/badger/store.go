// Package badger provides the BadgerHold-backed storage implementation.
//
// Typed records (projects, secrets) go through badgerhold. Records that need
// TTL expiry or ordered prefix scans (auth configs, logs, token metadata)
// use the underlying badger KV directly.
package badger

import (
	"fmt"
	"os"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/keyrelay/keyrelay/internal/common"
	"github.com/keyrelay/keyrelay/internal/interfaces"
)

// kvSep is the composite key separator for badgerhold records scoped to a
// project. A null byte cannot appear in project IDs or secret names, so
// composite keys never collide.
const kvSep = "\x00"

// Encryptor seals and opens secret values. Satisfied by crypto.Encryptor.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Store wraps a BadgerHold database connection.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// NewStore opens a BadgerHold store at the given directory path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory %s: %w", path, err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // Disable default badger logger

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", path).Msg("BadgerHold store opened")

	return &Store{
		db:     db,
		logger: logger,
	}, nil
}

// DB returns the underlying badgerhold store.
func (s *Store) DB() *badgerhold.Store {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// --- Raw KV helpers over the underlying badger database ---

func (s *Store) kvPut(key string, value []byte, ttl time.Duration) error {
	err := s.db.Badger().Update(func(txn *badgerdb.Txn) error {
		entry := badgerdb.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to put key '%s': %w", key, err)
	}
	return nil
}

func (s *Store) kvGet(key string) ([]byte, error) {
	var value []byte
	err := s.db.Badger().View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badgerdb.ErrKeyNotFound {
		return nil, fmt.Errorf("key '%s': %w", key, interfaces.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key '%s': %w", key, err)
	}
	return value, nil
}

func (s *Store) kvDelete(key string) error {
	err := s.db.Badger().Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete key '%s': %w", key, err)
	}
	return nil
}

// kvScanPrefix visits every live entry under prefix, newest key first when
// reverse is set. The callback returns false to stop early.
func (s *Store) kvScanPrefix(prefix string, reverse bool, fn func(key string, value []byte) bool) error {
	err := s.db.Badger().View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.Reverse = reverse

		it := txn.NewIterator(opts)
		defer it.Close()

		seek := []byte(prefix)
		if reverse {
			// Seek past the last key under the prefix.
			seek = append(seek, 0xff)
		}

		for it.Seek(seek); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(string(item.Key()), value) {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan prefix '%s': %w", prefix, err)
	}
	return nil
}

func (s *Store) kvDeletePrefix(prefix string) (int, error) {
	var keys []string
	err := s.kvScanPrefix(prefix, false, func(key string, _ []byte) bool {
		keys = append(keys, key)
		return true
	})
	if err != nil {
		return 0, err
	}

	for _, key := range keys {
		if err := s.kvDelete(key); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}
