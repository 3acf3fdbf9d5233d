// Package blob persists original uploaded bytes encrypted at rest with
// AES-256-GCM, one `<filename>.enc` per upload. The retrieval pipeline never
// reads blobs back; Open exists for administrative recovery only.
package blob

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/inscribe-ai/inscribe/internal/domain"
)

const keySize = 32 // AES-256

// Store writes encrypted blobs to a directory.
type Store struct {
	dir  string
	aead cipher.AEAD
}

// New creates a blob store. key is the base64-encoded 32-byte AES key from
// configuration; when empty a fresh key is generated for this process and
// logged so the operator can persist it; losing the key makes all prior
// blobs unrecoverable.
func New(dir, key string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob directory is required: %w", domain.ErrBlobStore)
	}

	raw, err := loadOrGenerateKey(key, logger)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w: %w", err, domain.ErrEncryptionKey)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w: %w", err, domain.ErrEncryptionKey)
	}

	return &Store{dir: dir, aead: aead}, nil
}

// Store encrypts data and writes it to <dir>/<filename>.enc, overwriting any
// previous upload of the same filename. Returns the written path.
func (s *Store) Store(filename string, data []byte) (string, error) {
	if filename == "" || filename != filepath.Base(filename) {
		return "", fmt.Errorf("invalid blob filename %q: %w", filename, domain.ErrBlobStore)
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("create blob dir %s: %w: %w", s.dir, err, domain.ErrBlobStore)
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w: %w", err, domain.ErrBlobStore)
	}

	// Ciphertext layout: nonce || sealed.
	sealed := s.aead.Seal(nonce, nonce, data, nil)

	path := filepath.Join(s.dir, filename+".enc")
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		return "", fmt.Errorf("write blob %s: %w: %w", path, err, domain.ErrBlobStore)
	}
	return path, nil
}

// Open decrypts a stored blob. Administrative operation, not part of the
// ingestion or query path.
func (s *Store) Open(filename string) ([]byte, error) {
	path := filepath.Join(s.dir, filename+".enc")
	sealed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", path, err)
	}

	ns := s.aead.NonceSize()
	if len(sealed) < ns {
		return nil, fmt.Errorf("blob %s is truncated: %w", path, domain.ErrBlobStore)
	}

	plain, err := s.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt blob %s: %w", path, err)
	}
	return plain, nil
}

func loadOrGenerateKey(encoded string, logger *zap.Logger) ([]byte, error) {
	if encoded != "" {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode encryption key: %w: %w", err, domain.ErrEncryptionKey)
		}
		if len(raw) != keySize {
			return nil, fmt.Errorf("encryption key must be %d bytes, got %d: %w", keySize, len(raw), domain.ErrEncryptionKey)
		}
		return raw, nil
	}

	raw := make([]byte, keySize)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate encryption key: %w: %w", err, domain.ErrEncryptionKey)
	}
	if logger != nil {
		logger.Warn("No blob encryption key configured; generated one for this process. "+
			"Persist it or previously written blobs become unrecoverable",
			zap.String("key_b64", base64.StdEncoding.EncodeToString(raw)),
		)
	}
	return raw, nil
}
