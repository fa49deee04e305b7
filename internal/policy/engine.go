// Package policy decides how a verification outcome is presented.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Tones a badge can take.
const (
	ToneSuccess = "success"
	ToneWarning = "warning"
	ToneDanger  = "danger"
	ToneNeutral = "neutral"
)

// Input is what the trust-label policy sees.
type Input struct {
	Status         string `json:"status"`
	Reason         string `json:"reason"`
	Replay         bool   `json:"replay"`
	IdentityStatus string `json:"identity_status"`
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares the trust-label policy in policyContent.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.trust_label.tone"),
		rego.Module("trust_label.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Tone evaluates the policy for input. The policy defines its own default;
// an empty result set falls back to neutral.
func (e *Engine) Tone(ctx context.Context, input Input) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return ToneNeutral, nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return ToneNeutral, nil
}

// DefaultPolicy is the default trust-label policy.
const DefaultPolicy = `
package trust_label

default tone = "neutral"

tone = "success" {
	input.status == "verified"
}

tone = "danger" {
	input.status == "invalid"
}

tone = "warning" {
	input.status == "cert_expired"
}

tone = "warning" {
	input.status == "cert_not_yet_valid"
}
`
