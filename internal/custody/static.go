package custody

import (
	"context"
	"crypto/rsa"
	"fmt"

	"github.com/xiaot623/trustbook/internal/signing"
)

// Static is an in-process custody for a key that is already loaded, such as
// one held by an embedding agent runtime or a test.
type Static struct {
	key     *rsa.PrivateKey
	certPEM []byte
}

// NewStatic wraps key and its certificate.
func NewStatic(key *rsa.PrivateKey, certPEM []byte) *Static {
	return &Static{key: key, certPEM: certPEM}
}

// Sign implements signing.KeyCustody.
func (s *Static) Sign(ctx context.Context, message []byte, alg signing.Algorithm) ([]byte, error) {
	if s.key == nil {
		return nil, fmt.Errorf("%w: no key loaded", signing.ErrKeyUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", signing.ErrSigningBackend, err)
	}
	return signRSA(s.key, message, alg)
}

// Certificate implements signing.KeyCustody.
func (s *Static) Certificate(context.Context) ([]byte, error) {
	if len(s.certPEM) == 0 {
		return nil, fmt.Errorf("%w: no certificate loaded", signing.ErrKeyUnavailable)
	}
	return s.certPEM, nil
}
