package signing

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedSigningInput is returned when a canonical message cannot be
	// built because a required field is empty or breaks line framing.
	ErrMalformedSigningInput = errors.New("malformed signing input")

	// ErrKeyUnavailable is returned when key custody has no usable private key.
	ErrKeyUnavailable = errors.New("signing key unavailable")

	// ErrSigningBackend is returned for any other custody-level failure.
	ErrSigningBackend = errors.New("signing backend error")
)

func malformed(field, problem string) error {
	return fmt.Errorf("%w: %s %s", ErrMalformedSigningInput, field, problem)
}
