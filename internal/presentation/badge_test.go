package presentation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xiaot623/trustbook/internal/domain"
	"github.com/xiaot623/trustbook/internal/policy"
	"github.com/xiaot623/trustbook/internal/verify"
)

type fixedTone struct {
	tone string
	err  error
}

func (f fixedTone) Tone(context.Context, policy.Input) (string, error) {
	return f.tone, f.err
}

func TestRenderEnglish(t *testing.T) {
	r := NewRenderer("en", nil)
	b := r.Render(context.Background(), verify.Result{
		Status:        domain.SignatureStatusVerified,
		CertAgentName: "alice",
		CertOwnerID:   "1234567",
		CertIssuerCN:  "Trustbook CA",
	}, domain.IdentityStatusVerified)

	assert.Equal(t, "Verified", b.Label)
	assert.Equal(t, policy.ToneSuccess, b.Tone)
	assert.Equal(t, "Signed by alice (1234567), issued by Trustbook CA", b.Tooltip)
}

func TestRenderChinese(t *testing.T) {
	r := NewRenderer("zh", nil)
	b := r.Render(context.Background(), verify.Result{
		Status: domain.SignatureStatusInvalid,
		Reason: "unsupported algorithm: ed25519",
	}, domain.IdentityStatusBound)

	assert.Equal(t, "验签失败", b.Label)
	assert.Equal(t, "不支持的签名算法: ed25519", b.Reason)
	assert.Equal(t, policy.ToneDanger, b.Tone)
	assert.Empty(t, b.Tooltip)

	assert.Equal(t, "签名校验失败", r.Reason("signature verification failed"))
	assert.Equal(t, "something new", r.Reason("something new"))
	assert.Equal(t, "未知状态", r.Label(""))
}

func TestEveryStatusHasALabel(t *testing.T) {
	for _, lang := range []string{LangEnglish, LangChinese} {
		r := NewRenderer(lang, nil)
		for _, status := range domain.SignatureStatuses {
			assert.NotEqual(t, string(status), r.Label(status), "%s label for %s", lang, status)
		}
	}
}

func TestRenderUsesToneDecider(t *testing.T) {
	res := verify.Result{Status: domain.SignatureStatusNoCert}

	b := NewRenderer("en", fixedTone{tone: "muted"}).Render(context.Background(), res, domain.IdentityStatusUnbound)
	assert.Equal(t, "muted", b.Tone)

	b = NewRenderer("en", fixedTone{err: errors.New("boom")}).Render(context.Background(), res, domain.IdentityStatusUnbound)
	assert.Equal(t, policy.ToneNeutral, b.Tone, "policy errors fall back to the built-in tone")
}

func TestRenderWithDefaultPolicy(t *testing.T) {
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	r := NewRenderer("fr", engine)
	b := r.Render(context.Background(), verify.Result{Status: domain.SignatureStatusCertExpired}, domain.IdentityStatusBound)
	assert.Equal(t, "Certificate expired", b.Label, "unknown languages render in English")
	assert.Equal(t, policy.ToneWarning, b.Tone)
}
