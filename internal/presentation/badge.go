// Package presentation turns verification results into display badges.
package presentation

import (
	"context"
	"strings"

	"github.com/xiaot623/trustbook/internal/domain"
	"github.com/xiaot623/trustbook/internal/policy"
	"github.com/xiaot623/trustbook/internal/verify"
)

// Languages with label tables.
const (
	LangEnglish = "en"
	LangChinese = "zh"
)

// Badge is the rendered trust label for one action.
type Badge struct {
	Status  domain.SignatureStatus `json:"status"`
	Label   string                 `json:"label"`
	Tone    string                 `json:"tone"`
	Reason  string                 `json:"reason,omitempty"`
	Tooltip string                 `json:"tooltip,omitempty"`
}

// ToneDecider picks a badge tone. *policy.Engine satisfies it.
type ToneDecider interface {
	Tone(ctx context.Context, input policy.Input) (string, error)
}

// Renderer builds badges in one language.
type Renderer struct {
	lang  string
	tones ToneDecider
}

// NewRenderer creates a renderer. Unknown languages render in English. A nil
// tones falls back to the built-in tone table.
func NewRenderer(lang string, tones ToneDecider) *Renderer {
	if _, ok := statusLabels[lang]; !ok {
		lang = LangEnglish
	}
	return &Renderer{lang: lang, tones: tones}
}

// Render builds the badge for res. identityStatus is the author's current
// identity status and only feeds the tone policy.
func (r *Renderer) Render(ctx context.Context, res verify.Result, identityStatus domain.IdentityStatus) Badge {
	b := Badge{
		Status: res.Status,
		Label:  r.Label(res.Status),
		Tone:   defaultTone(res.Status),
		Reason: r.Reason(res.Reason),
	}
	if r.tones != nil {
		tone, err := r.tones.Tone(ctx, policy.Input{
			Status:         string(res.Status),
			Reason:         res.Reason,
			Replay:         res.Replay,
			IdentityStatus: string(identityStatus),
		})
		if err == nil && tone != "" {
			b.Tone = tone
		}
	}
	if res.CertAgentName != "" {
		b.Tooltip = tooltip(r.lang, res)
	}
	return b
}

// Label returns the label for status.
func (r *Renderer) Label(status domain.SignatureStatus) string {
	if label, ok := statusLabels[r.lang][status]; ok {
		return label
	}
	if status == "" {
		return unknownLabel[r.lang]
	}
	return string(status)
}

// Reason translates a verification reason. Reasons without a translation
// are returned unchanged.
func (r *Renderer) Reason(reason string) string {
	if reason == "" || r.lang == LangEnglish {
		return reason
	}
	if translated, ok := reasonLabels[r.lang][reason]; ok {
		return translated
	}
	for prefix, translated := range reasonPrefixes[r.lang] {
		if strings.HasPrefix(reason, prefix) {
			return translated + strings.TrimPrefix(reason, prefix)
		}
	}
	return reason
}

func defaultTone(status domain.SignatureStatus) string {
	switch status {
	case domain.SignatureStatusVerified:
		return policy.ToneSuccess
	case domain.SignatureStatusInvalid:
		return policy.ToneDanger
	case domain.SignatureStatusCertExpired, domain.SignatureStatusCertNotYetValid:
		return policy.ToneWarning
	default:
		return policy.ToneNeutral
	}
}

func tooltip(lang string, res verify.Result) string {
	var sb strings.Builder
	if lang == LangChinese {
		sb.WriteString("签名者: ")
	} else {
		sb.WriteString("Signed by ")
	}
	sb.WriteString(res.CertAgentName)
	if res.CertOwnerID != "" {
		sb.WriteString(" (" + res.CertOwnerID + ")")
	}
	if res.CertIssuerCN != "" {
		if lang == LangChinese {
			sb.WriteString(", 签发者: ")
		} else {
			sb.WriteString(", issued by ")
		}
		sb.WriteString(res.CertIssuerCN)
	}
	return sb.String()
}
