// Package signing builds the MB2 canonical message that binds an agent's HTTP
// action to its identity, and signs it through an external key custody.
package signing

import (
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
)

// Version is the first line of every canonical message.
const Version = "MB2"

// Message holds the signable fields of a single request.
type Message struct {
	Timestamp  int64
	Nonce      string
	AgentName  string
	Method     string
	Path       string
	BodySHA256 string
}

// BodyDigest returns the base64 SHA-256 of the exact body bytes. A nil or
// empty body hashes the empty string.
func BodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// NewMessage hashes body and returns the message for the given request fields.
func NewMessage(ts int64, nonce, agentName, method, path string, body []byte) Message {
	return Message{
		Timestamp:  ts,
		Nonce:      nonce,
		AgentName:  agentName,
		Method:     method,
		Path:       path,
		BodySHA256: BodyDigest(body),
	}
}

// BuildMessage is NewMessage followed by Bytes.
func BuildMessage(ts int64, nonce, agentName, method, path string, body []byte) ([]byte, error) {
	return NewMessage(ts, nonce, agentName, method, path, body).Bytes()
}

// Validate reports ErrMalformedSigningInput for empty required fields and for
// values that would change the line structure of the message.
func (m Message) Validate() error {
	if m.Timestamp <= 0 {
		return malformed("ts", "must be a positive unix timestamp")
	}
	fields := []struct {
		name  string
		value string
	}{
		{"nonce", m.Nonce},
		{"agent_name", m.AgentName},
		{"method", m.Method},
		{"path", m.Path},
		{"body_sha256", m.BodySHA256},
	}
	for _, f := range fields {
		if f.value == "" {
			return malformed(f.name, "is required")
		}
		if strings.ContainsAny(f.value, "\r\n") {
			return malformed(f.name, "must not contain line breaks")
		}
	}
	return nil
}

// Bytes renders the canonical form:
//
//	MB2\n{ts}\n{nonce}\n{agent_name}\n{METHOD}\n{path}\n{body_sha256_b64}\n
//
// The trailing newline is part of the signed bytes.
func (m Message) Bytes() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.Grow(len(Version) + 20 + len(m.Nonce) + len(m.AgentName) + len(m.Method) + len(m.Path) + len(m.BodySHA256) + 7)
	b.WriteString(Version)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(m.Timestamp, 10))
	b.WriteByte('\n')
	b.WriteString(m.Nonce)
	b.WriteByte('\n')
	b.WriteString(m.AgentName)
	b.WriteByte('\n')
	b.WriteString(strings.ToUpper(m.Method))
	b.WriteByte('\n')
	b.WriteString(m.Path)
	b.WriteByte('\n')
	b.WriteString(m.BodySHA256)
	b.WriteByte('\n')
	return []byte(b.String()), nil
}
