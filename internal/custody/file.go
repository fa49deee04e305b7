package custody

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/xiaot623/trustbook/internal/signing"
)

const (
	keyFileName  = "private_key.pem"
	certFileName = "certificate.pem"
)

// FileConfig locates a keystore entry on disk.
type FileConfig struct {
	// Dir is the keystore root directory.
	Dir string
	// Service names the entry inside Dir, one per agent identity.
	Service string
}

// FileKeystore keeps one identity per service directory. The private key is
// read from disk for each Sign call and dropped afterwards.
type FileKeystore struct {
	dir string
}

// NewFileKeystore returns a keystore rooted at cfg.Dir/cfg.Service.
func NewFileKeystore(cfg FileConfig) (*FileKeystore, error) {
	if cfg.Dir == "" {
		return nil, errors.New("keystore dir is required")
	}
	if cfg.Service == "" {
		return nil, errors.New("keystore service is required")
	}
	return &FileKeystore{dir: filepath.Join(cfg.Dir, cfg.Service)}, nil
}

// Dir returns the directory holding this identity.
func (k *FileKeystore) Dir() string {
	return k.dir
}

// Sign implements signing.KeyCustody.
func (k *FileKeystore) Sign(ctx context.Context, message []byte, alg signing.Algorithm) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", signing.ErrSigningBackend, err)
	}
	data, err := os.ReadFile(filepath.Join(k.dir, keyFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no private key in %s", signing.ErrKeyUnavailable, k.dir)
		}
		return nil, fmt.Errorf("%w: read private key: %v", signing.ErrSigningBackend, err)
	}
	key, err := ParsePrivateKeyPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%w: stored private key is unusable: %v", signing.ErrKeyUnavailable, err)
	}
	return signRSA(key, message, alg)
}

// Certificate implements signing.KeyCustody.
func (k *FileKeystore) Certificate(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(k.dir, certFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no certificate in %s", signing.ErrKeyUnavailable, k.dir)
		}
		return nil, fmt.Errorf("%w: read certificate: %v", signing.ErrSigningBackend, err)
	}
	return data, nil
}

// Import stores a private key and certificate, replacing any existing entry.
// The key file is written with owner-only permissions.
func (k *FileKeystore) Import(keyPEM, certPEM []byte) error {
	if _, err := ParsePrivateKeyPEM(keyPEM); err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}
	if err := os.MkdirAll(k.dir, 0o700); err != nil {
		return fmt.Errorf("create keystore dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(k.dir, keyFileName), keyPEM, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if len(certPEM) > 0 {
		if err := os.WriteFile(filepath.Join(k.dir, certFileName), certPEM, 0o644); err != nil {
			return fmt.Errorf("write certificate: %w", err)
		}
	}
	return nil
}
