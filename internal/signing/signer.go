package signing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyCustody owns an agent's private key. Implementations sign on request and
// never hand out private key material.
type KeyCustody interface {
	// Sign signs message with the custody's current private key.
	Sign(ctx context.Context, message []byte, alg Algorithm) ([]byte, error)
	// Certificate returns the PEM encoded certificate bound to the key.
	Certificate(ctx context.Context) ([]byte, error)
}

// Config configures a Signer.
type Config struct {
	// Algorithm defaults to DefaultAlgorithm.
	Algorithm Algorithm
}

// Signer produces envelopes for outgoing agent requests.
type Signer struct {
	custody   KeyCustody
	algorithm Algorithm
	now       func() time.Time
}

// Option customizes a Signer.
type Option func(*Signer)

// WithClock overrides the clock used for envelope timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner creates a signer backed by custody.
func NewSigner(custody KeyCustody, cfg Config, opts ...Option) (*Signer, error) {
	if custody == nil {
		return nil, fmt.Errorf("%w: no key custody configured", ErrKeyUnavailable)
	}
	alg, err := ParseAlgorithm(string(cfg.Algorithm))
	if err != nil {
		return nil, err
	}
	s := &Signer{
		custody:   custody,
		algorithm: alg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Algorithm returns the algorithm this signer uses.
func (s *Signer) Algorithm() Algorithm {
	return s.algorithm
}

// Sign builds the canonical message for the request and has custody sign it.
// The timestamp comes from the signer's clock and the nonce is generated here
// for every call.
func (s *Signer) Sign(ctx context.Context, agentName, method, path string, body []byte) (*Envelope, error) {
	msg := NewMessage(s.now().Unix(), NewNonce(), agentName, method, path, body)
	canonical, err := msg.Bytes()
	if err != nil {
		return nil, err
	}

	sig, err := s.custody.Sign(ctx, canonical, s.algorithm)
	if err != nil {
		if errors.Is(err, ErrKeyUnavailable) || errors.Is(err, ErrSigningBackend) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSigningBackend, err)
	}
	if len(sig) == 0 {
		return nil, fmt.Errorf("%w: custody returned an empty signature", ErrSigningBackend)
	}

	return &Envelope{
		Timestamp:  msg.Timestamp,
		Nonce:      msg.Nonce,
		Method:     strings.ToUpper(method),
		Path:       path,
		BodySHA256: msg.BodySHA256,
		Algorithm:  s.algorithm,
		Signature:  sig,
	}, nil
}

// SignRequest signs req with body as its exact payload. The request body is
// replaced with body so the transmitted bytes are the signed bytes.
func (s *Signer) SignRequest(ctx context.Context, req *http.Request, agentName string, body []byte) (*Envelope, error) {
	env, err := s.Sign(ctx, agentName, req.Method, req.URL.Path, body)
	if err != nil {
		return nil, err
	}

	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	env.Apply(req.Header)
	return env, nil
}

// NewNonce returns a random UUIDv4 token rendered as 32 hex characters.
func NewNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
