// Package crypto implements authenticated encryption for secrets at rest.
//
// Secrets are sealed with AES-256-GCM under a single process-wide key. Each
// call uses a fresh random 12-byte nonce prepended to the ciphertext, so a
// stored blob is self-contained: base64([nonce][ciphertext+tag]). Tampering
// or a wrong key fails loudly with DecryptionError — there is no silent
// plaintext fallback anywhere.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/scrypt"

	"github.com/keyrelay/keyrelay/internal/common"
)

const (
	keyLen = 32

	// scrypt parameters for passphrase-derived keys (N=2^15, r=8, p=1).
	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

// DecryptionError reports a failed decryption: tampered ciphertext, a wrong
// key, or a malformed stored blob.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decryption failed: %v", e.Err)
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// Encryptor seals and opens secret values with AES-256-GCM.
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor creates an Encryptor from a 32-byte key.
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != keyLen {
		return nil, fmt.Errorf("invalid key length %d: expected %d bytes", len(key), keyLen)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &Encryptor{gcm: gcm}, nil
}

// NewEncryptorFromConfig resolves the key from configuration: a base64
// 32-byte key takes precedence, otherwise one is derived from the
// passphrase and salt via scrypt.
func NewEncryptorFromConfig(cfg common.SecurityConfig) (*Encryptor, error) {
	if cfg.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("decoding encryption key: %w", err)
		}
		return NewEncryptor(key)
	}

	if cfg.EncryptionPassphrase != "" {
		key, err := DeriveKey(cfg.EncryptionPassphrase, cfg.EncryptionSalt)
		if err != nil {
			return nil, err
		}
		return NewEncryptor(key)
	}

	return nil, fmt.Errorf("no encryption key or passphrase configured")
}

// DeriveKey derives a 32-byte encryption key from a passphrase and salt
// using scrypt (N=32768, r=8, p=1).
func DeriveKey(passphrase, salt string) ([]byte, error) {
	key, err := scrypt.Key([]byte(passphrase), []byte(salt), scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext and returns base64([nonce][ciphertext+tag]).
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext := e.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	blob := make([]byte, len(nonce)+len(ciphertext))
	copy(blob, nonce)
	copy(blob[len(nonce):], ciphertext)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a stored blob produced by Encrypt. Any integrity failure
// returns a *DecryptionError.
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", &DecryptionError{Err: fmt.Errorf("decoding base64: %w", err)}
	}

	nonceSize := e.gcm.NonceSize()
	if len(blob) <= nonceSize {
		return "", &DecryptionError{Err: fmt.Errorf("ciphertext too short: %d bytes", len(blob))}
	}

	plaintext, err := e.gcm.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return "", &DecryptionError{Err: err}
	}

	return string(plaintext), nil
}
