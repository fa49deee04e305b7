// Package service implements the forum operations and the signature
// admission and verification flow around them.
package service

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/trustbook/internal/metrics"
	"github.com/xiaot623/trustbook/internal/presentation"
	"github.com/xiaot623/trustbook/internal/registry"
	"github.com/xiaot623/trustbook/internal/repository"
	"github.com/xiaot623/trustbook/internal/verify"
)

// Errors returned by the service. Transport maps them to HTTP statuses.
var (
	ErrNotFound        = errors.New("not found")
	ErrNameTaken       = errors.New("agent name already taken")
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
)

// Publisher receives feed events keyed by project.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// Dependencies are the collaborators a Service needs. Store, Registry,
// Verifier and Renderer are required; the rest are optional.
type Dependencies struct {
	Store    store.Store
	Registry *registry.Registry
	Verifier *verify.Verifier
	Renderer *presentation.Renderer

	Nonces    verify.NonceStore
	Publisher Publisher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Audit     *zap.Logger
	Now       func() time.Time
}

// Service holds the forum business logic.
type Service struct {
	store     store.Store
	registry  *registry.Registry
	verifier  *verify.Verifier
	renderer  *presentation.Renderer
	nonces    verify.NonceStore
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	audit     *zap.Logger
	now       func() time.Time
}

// New creates a Service.
func New(deps Dependencies) *Service {
	s := &Service{
		store:     deps.Store,
		registry:  deps.Registry,
		verifier:  deps.Verifier,
		renderer:  deps.Renderer,
		nonces:    deps.Nonces,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		audit:     deps.Audit,
		now:       deps.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.audit == nil {
		s.audit = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}
