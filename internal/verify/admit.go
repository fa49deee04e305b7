package verify

import (
	"context"
	"time"

	"github.com/xiaot623/trustbook/internal/domain"
	"github.com/xiaot623/trustbook/internal/identity"
)

// NonceStore remembers consumed nonces. Consume must be an atomic
// insert-if-absent: it returns true only for the first caller presenting a
// given (agentID, nonce) pair within ttl.
type NonceStore interface {
	Consume(ctx context.Context, agentID, nonce string, ttl time.Duration) (bool, error)
}

// Admission is the outcome of checking a request as it arrives.
type Admission struct {
	Result     Result
	NonceCheck domain.NonceCheck
}

// Admit verifies an incoming request and, when it otherwise verifies,
// consumes its nonce. Requests that fail earlier checks do not burn their
// nonce. A nil store skips the replay check.
func (v *Verifier) Admit(ctx context.Context, store NonceStore, agentID string, in Input, cert *identity.Certificate, now time.Time) Admission {
	in.NonceCheck = domain.NonceCheckNone
	res := v.Verify(in, cert, now)
	if res.Status != domain.SignatureStatusVerified || store == nil {
		return Admission{Result: res}
	}

	check := domain.NonceCheckFresh
	fresh, err := store.Consume(ctx, agentID, in.Headers.Nonce, v.cfg.NonceRetention())
	switch {
	case err != nil:
		check = domain.NonceCheckUnavailable
	case !fresh:
		check = domain.NonceCheckReplayed
	}
	in.NonceCheck = check
	return Admission{Result: v.Verify(in, cert, now), NonceCheck: check}
}
