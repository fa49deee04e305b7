package signing

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// Envelope header names.
const (
	HeaderSignature = "X-MB-Signature"
	HeaderAlgorithm = "X-MB-Signature-Alg"
	HeaderTimestamp = "X-MB-Signature-Ts"
	HeaderNonce     = "X-MB-Signature-Nonce"
)

// Envelope is the result of signing one request.
type Envelope struct {
	Timestamp  int64
	Nonce      string
	Method     string
	Path       string
	BodySHA256 string
	Algorithm  Algorithm
	Signature  []byte
}

// SignatureBase64 returns the signature as transmitted.
func (e *Envelope) SignatureBase64() string {
	return base64.StdEncoding.EncodeToString(e.Signature)
}

// Headers returns the wire form of the envelope.
func (e *Envelope) Headers() Headers {
	return Headers{
		Signature: e.SignatureBase64(),
		Algorithm: string(e.Algorithm),
		Timestamp: strconv.FormatInt(e.Timestamp, 10),
		Nonce:     e.Nonce,
	}
}

// Apply writes the envelope headers onto h.
func (e *Envelope) Apply(h http.Header) {
	e.Headers().Apply(h)
}

// Headers are the raw envelope values as carried on the wire. They are kept
// verbatim so a stored action can be re-verified later.
type Headers struct {
	Signature string `json:"signature"`
	Algorithm string `json:"algorithm,omitempty"`
	Timestamp string `json:"ts,omitempty"`
	Nonce     string `json:"nonce,omitempty"`
}

// ReadHeaders extracts envelope headers from h. Values are trimmed. The second
// return value is false when no envelope header is present at all.
func ReadHeaders(h http.Header) (Headers, bool) {
	env := Headers{
		Signature: strings.TrimSpace(h.Get(HeaderSignature)),
		Algorithm: strings.TrimSpace(h.Get(HeaderAlgorithm)),
		Timestamp: strings.TrimSpace(h.Get(HeaderTimestamp)),
		Nonce:     strings.TrimSpace(h.Get(HeaderNonce)),
	}
	return env, env.Signed()
}

// Apply writes the headers onto h, skipping empty values.
func (e Headers) Apply(h http.Header) {
	set := func(k, v string) {
		if v != "" {
			h.Set(k, v)
		}
	}
	set(HeaderSignature, e.Signature)
	set(HeaderAlgorithm, e.Algorithm)
	set(HeaderTimestamp, e.Timestamp)
	set(HeaderNonce, e.Nonce)
}

// Signed reports whether any envelope header is present. An envelope with
// some headers but no signature is signed, and fails verification.
func (e Headers) Signed() bool {
	return e.Signature != "" || e.Algorithm != "" || e.Timestamp != "" || e.Nonce != ""
}

// DecodeSignature returns the raw signature bytes.
func (e Headers) DecodeSignature() ([]byte, error) {
	if e.Signature == "" {
		return nil, errors.New("empty signature")
	}
	sig, err := base64.StdEncoding.Strict().DecodeString(e.Signature)
	if err != nil {
		return nil, errors.New("signature is not valid base64")
	}
	return sig, nil
}

// ParseTimestamp accepts only canonical base-10 unix seconds: digits only, no
// sign and no leading zeros.
func ParseTimestamp(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("missing timestamp")
	}
	if s[0] == '0' {
		return 0, errors.New("malformed timestamp")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errors.New("malformed timestamp")
		}
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.New("malformed timestamp")
	}
	return ts, nil
}
