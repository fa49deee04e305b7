package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiaot623/trustbook/internal/domain"
	"github.com/xiaot623/trustbook/internal/identity"
	"github.com/xiaot623/trustbook/internal/metrics"
	"github.com/xiaot623/trustbook/internal/presentation"
	"github.com/xiaot623/trustbook/internal/signing"
	"github.com/xiaot623/trustbook/internal/verify"
)

// SignedRequest is the part of an incoming request a signature covers.
// RawQuery is not signed; it is kept for diagnosing failed signatures.
type SignedRequest struct {
	Headers  signing.Headers
	Method   string
	Path     string
	RawQuery string
	Body     []byte
}

// SignatureView is the live verification result and its badge.
type SignatureView struct {
	Result verify.Result
	Badge  presentation.Badge
}

// admission is the judgement of an incoming request, before the action it
// carries is stored.
type admission struct {
	record     *domain.SignatureRecord
	result     verify.Result
	cert       *identity.Certificate
	receivedAt time.Time
}

// admit judges an incoming request, consuming its nonce when the signature
// otherwise verifies. It never fails; the record is nil for unsigned requests.
// A consumed nonce stays consumed even if storing the action then fails;
// signers draw a fresh nonce for every attempt.
func (s *Service) admit(ctx context.Context, agent *domain.Agent, req SignedRequest) admission {
	start := time.Now()
	receivedAt := s.now().UTC()
	traceID := uuid.NewString()[:12]
	in := verify.Input{
		Headers:    req.Headers,
		AgentName:  agent.Name,
		Method:     req.Method,
		Path:       req.Path,
		Body:       req.Body,
		ReceivedAt: receivedAt,
	}

	if !req.Headers.Signed() {
		s.audit.Info("unsigned request skipped",
			zap.String("trace_id", traceID),
			zap.String("agent_id", agent.AgentID),
			zap.String("agent_name", agent.Name),
			zap.String("method", req.Method),
			zap.String("path", req.Path))
		res := s.verifier.Verify(in, nil, receivedAt)
		s.metrics.ObserveVerification(metrics.PhaseAdmit, string(res.Status), time.Since(start))
		return admission{result: res, receivedAt: receivedAt}
	}

	s.audit.Info("signature verification started",
		zap.String("trace_id", traceID),
		zap.String("agent_id", agent.AgentID),
		zap.String("agent_name", agent.Name),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.String("algorithm", req.Headers.Algorithm),
		zap.String("ts", req.Headers.Timestamp),
		zap.String("nonce", req.Headers.Nonce),
		zap.Int("signature_len", len(req.Headers.Signature)),
		zap.String("signature_preview", preview(req.Headers.Signature)))
	s.auditCanonical(traceID, agent.Name, req)

	var adm verify.Admission
	cert, err := s.registry.Lookup(ctx, agent.AgentID)
	if err != nil {
		s.logger.Error("failed to load bound certificate", zap.String("agent_id", agent.AgentID), zap.Error(err))
		adm.Result = s.verifier.CertificateUnavailable(in, "bound certificate could not be loaded", receivedAt)
	} else {
		adm = s.verifier.Admit(ctx, s.nonces, agent.AgentID, in, cert, receivedAt)
	}

	switch adm.NonceCheck {
	case domain.NonceCheckReplayed:
		s.metrics.IncReplay()
	case domain.NonceCheckUnavailable:
		s.metrics.IncNonceError()
		s.logger.Error("nonce store unavailable", zap.String("agent_id", agent.AgentID))
	}
	s.metrics.ObserveVerification(metrics.PhaseAdmit, string(adm.Result.Status), time.Since(start))
	s.auditResult(traceID, adm.Result)
	if adm.Result.Reason == verify.ReasonSignatureMismatch {
		s.auditDiagnosis(traceID, verify.Diagnose(in, cert, req.RawQuery))
	}

	record := &domain.SignatureRecord{
		Signature:       req.Headers.Signature,
		Algorithm:       req.Headers.Algorithm,
		Timestamp:       req.Headers.Timestamp,
		Nonce:           req.Headers.Nonce,
		Method:          req.Method,
		Path:            req.Path,
		SignerName:      agent.Name,
		BodySHA256:      signing.BodyDigest(req.Body),
		ReceivedAt:      receivedAt,
		NonceCheck:      adm.NonceCheck,
		AdmissionStatus: adm.Result.Status,
		AdmissionReason: adm.Result.Reason,
	}
	return admission{record: record, result: adm.Result, cert: cert, receivedAt: receivedAt}
}

// settle applies the side effects of an admission once its action is stored.
func (s *Service) settle(ctx context.Context, agent *domain.Agent, adm admission) {
	if adm.result.Status == domain.SignatureStatusVerified {
		s.markVerified(ctx, agent.AgentID, adm.cert, adm.receivedAt)
	}
}

// evaluate recomputes the verification of a stored action against the
// author's current certificate and the current time. A signed action whose
// displayed fields differ from its stored body is invalid even when the
// envelope itself verifies.
func (s *Service) evaluate(ctx context.Context, authorID string, body []byte, rec *domain.SignatureRecord, matchesBody bool) SignatureView {
	start := time.Now()
	now := s.now().UTC()

	binding, err := s.registry.Binding(ctx, authorID)
	if err != nil {
		s.logger.Error("failed to load identity binding", zap.String("agent_id", authorID), zap.Error(err))
	}

	var res verify.Result
	if rec == nil {
		res = s.verifier.Verify(verify.Input{}, nil, now)
	} else {
		in := verify.Input{
			Headers: signing.Headers{
				Signature: rec.Signature,
				Algorithm: rec.Algorithm,
				Timestamp: rec.Timestamp,
				Nonce:     rec.Nonce,
			},
			AgentName:  rec.SignerName,
			Method:     rec.Method,
			Path:       rec.Path,
			Body:       body,
			BodySHA256: rec.BodySHA256,
			ReceivedAt: rec.ReceivedAt,
			NonceCheck: rec.NonceCheck,
		}
		cert, certErr := s.registry.Certificate(binding)
		switch {
		case err != nil || certErr != nil:
			res = s.verifier.CertificateUnavailable(in, "bound certificate could not be loaded", now)
		default:
			res = s.verifier.Verify(in, cert, now)
		}
		if !matchesBody && res.Status == domain.SignatureStatusVerified {
			res.Status = domain.SignatureStatusInvalid
			res.Reason = "stored content does not match signed body"
		}
	}
	s.metrics.ObserveVerification(metrics.PhaseRead, string(res.Status), time.Since(start))

	return SignatureView{
		Result: res,
		Badge:  s.renderer.Render(ctx, res, binding.Status()),
	}
}

func (s *Service) markVerified(ctx context.Context, agentID string, cert *identity.Certificate, at time.Time) {
	if cert == nil {
		return
	}
	changed, err := s.store.MarkIdentityVerified(ctx, agentID, cert.Meta.FingerprintSHA256, at)
	if err != nil {
		s.logger.Warn("failed to mark identity verified", zap.String("agent_id", agentID), zap.Error(err))
		return
	}
	if changed {
		s.logger.Info("identity verified", zap.String("agent_id", agentID), zap.String("fingerprint", cert.Meta.FingerprintSHA256))
	}
}

func (s *Service) auditCanonical(traceID, agentName string, req SignedRequest) {
	digest := signing.BodyDigest(req.Body)
	fields := []zap.Field{
		zap.String("trace_id", traceID),
		zap.Int("body_len", len(req.Body)),
		zap.String("body_sha256", digest),
	}
	if ts, err := signing.ParseTimestamp(req.Headers.Timestamp); err == nil {
		msg := signing.Message{
			Timestamp:  ts,
			Nonce:      req.Headers.Nonce,
			AgentName:  agentName,
			Method:     req.Method,
			Path:       req.Path,
			BodySHA256: digest,
		}
		if canonical, err := msg.Bytes(); err == nil {
			sum := sha256.Sum256(canonical)
			fields = append(fields,
				zap.String("message_sha256", base64.StdEncoding.EncodeToString(sum[:])),
				zap.String("canonical_message", string(canonical)))
		}
	}
	s.audit.Info("canonical message built", fields...)
}

func (s *Service) auditResult(traceID string, res verify.Result) {
	fields := []zap.Field{
		zap.String("trace_id", traceID),
		zap.String("status", string(res.Status)),
		zap.String("reason", res.Reason),
		zap.Bool("replay", res.Replay),
		zap.String("cert_fingerprint_sha256", res.CertFingerprint),
		zap.String("cert_agent_name", res.CertAgentName),
		zap.String("cert_owner_id", res.CertOwnerID),
	}
	if res.Status == domain.SignatureStatusVerified {
		s.audit.Info("signature verification result", fields...)
		return
	}
	s.audit.Warn("signature verification result", fields...)
}

func (s *Service) auditDiagnosis(traceID string, d verify.Diagnosis) {
	if d.Matched == "" {
		s.audit.Warn("signature mismatch not explained by common canonicalization mistakes",
			zap.String("trace_id", traceID),
			zap.Strings("attempts", d.Attempts))
		return
	}
	s.audit.Warn("signature mismatch diagnosed",
		zap.String("trace_id", traceID),
		zap.String("matched_variant", d.Matched),
		zap.Strings("attempts", d.Attempts))
}

func preview(sig string) string {
	if len(sig) > 20 {
		return sig[:20] + "..."
	}
	return sig
}
