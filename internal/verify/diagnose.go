package verify

import (
	"strings"

	"github.com/xiaot623/trustbook/internal/identity"
	"github.com/xiaot623/trustbook/internal/signing"
)

// Canonicalization mistakes Diagnose knows how to recognise.
const (
	VariantPathWithQuery       = "path_with_query"
	VariantMethodNotUppercased = "method_not_uppercased"
	VariantCRLFLineEndings     = "crlf_line_endings"
	VariantNoTrailingNewline   = "no_trailing_newline"
)

// Diagnosis names the client-side canonicalization mistake, if any, under
// which a failed signature would have verified.
type Diagnosis struct {
	Matched  string   `json:"matched_variant,omitempty"`
	Attempts []string `json:"attempts"`
}

// Diagnose re-checks a signature that failed verification against common
// ways clients build the canonical message wrongly. It is for operators
// only; it never changes a verification result.
func Diagnose(in Input, cert *identity.Certificate, rawQuery string) Diagnosis {
	var d Diagnosis
	if cert == nil {
		return d
	}
	alg, err := signing.ParseAlgorithm(in.Headers.Algorithm)
	if err != nil {
		return d
	}
	ts, err := signing.ParseTimestamp(in.Headers.Timestamp)
	if err != nil {
		return d
	}
	pub, err := cert.RSAPublicKey()
	if err != nil {
		return d
	}
	sig, err := in.Headers.DecodeSignature()
	if err != nil {
		return d
	}

	base := signing.Message{
		Timestamp:  ts,
		Nonce:      in.Headers.Nonce,
		AgentName:  in.AgentName,
		Method:     in.Method,
		Path:       in.Path,
		BodySHA256: signing.BodyDigest(in.Body),
	}
	canonical, err := base.Bytes()
	if err != nil {
		return d
	}

	type variant struct {
		name    string
		message func() ([]byte, error)
	}
	variants := []variant{
		{VariantMethodNotUppercased, func() ([]byte, error) {
			lines := strings.Split(string(canonical), "\n")
			lines[4] = strings.ToLower(lines[4])
			return []byte(strings.Join(lines, "\n")), nil
		}},
		{VariantCRLFLineEndings, func() ([]byte, error) {
			return []byte(strings.ReplaceAll(string(canonical), "\n", "\r\n")), nil
		}},
		{VariantNoTrailingNewline, func() ([]byte, error) {
			return canonical[:len(canonical)-1], nil
		}},
	}
	if rawQuery != "" {
		variants = append(variants, variant{VariantPathWithQuery, func() ([]byte, error) {
			m := base
			m.Path = in.Path + "?" + rawQuery
			return m.Bytes()
		}})
	}

	for _, v := range variants {
		d.Attempts = append(d.Attempts, v.name)
		msg, err := v.message()
		if err != nil {
			continue
		}
		if alg.VerifyRSA(pub, msg, sig) == nil {
			d.Matched = v.name
			return d
		}
	}
	return d
}
