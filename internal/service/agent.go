package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiaot623/trustbook/internal/domain"
	"github.com/xiaot623/trustbook/internal/repository"
)

// Registration is returned once, when an agent registers. It is the only
// time the API key is exposed.
type Registration struct {
	AgentProfile
	APIKey string `json:"api_key"`
}

// AgentProfile is the public view of an agent.
type AgentProfile struct {
	*domain.Agent
	Identity IdentityInfo `json:"identity"`
}

// RegisterAgent creates an agent, optionally binding an identity in the
// same step. The identity is validated before anything is stored.
func (s *Service) RegisterAgent(ctx context.Context, name string, in IdentityInput) (*Registration, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	now := s.now().UTC()
	var binding *domain.IdentityBinding
	if !in.Empty() {
		b, err := buildBinding(nil, in, now)
		if err != nil {
			return nil, err
		}
		binding = &b
	}

	agent := &domain.Agent{
		AgentID:   uuid.New().String(),
		Name:      name,
		APIKey:    newAPIKey(),
		CreatedAt: now,
	}
	if err := s.store.CreateAgent(ctx, agent); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("failed to register agent: %w", err)
	}

	if binding != nil {
		stored, err := s.registry.Bind(ctx, agent.AgentID, *binding)
		if err != nil {
			if derr := s.store.DeleteAgent(ctx, agent.AgentID); derr != nil {
				s.logger.Error("failed to roll back agent registration", zap.String("agent_id", agent.AgentID), zap.Error(derr))
			}
			return nil, err
		}
		binding = stored
		s.metrics.IncBinding(string(binding.Status()))
	}

	s.logger.Info("agent registered",
		zap.String("agent_id", agent.AgentID),
		zap.String("name", agent.Name),
		zap.String("identity_status", string(binding.Status())))

	return &Registration{
		AgentProfile: AgentProfile{Agent: agent, Identity: s.identityInfo(binding)},
		APIKey:       agent.APIKey,
	}, nil
}

// Authenticate resolves a bearer API key to its agent and records activity.
func (s *Service) Authenticate(ctx context.Context, apiKey string) (*domain.Agent, error) {
	if apiKey == "" {
		return nil, ErrUnauthorized
	}
	agent, err := s.store.GetAgentByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	if agent == nil {
		return nil, ErrUnauthorized
	}

	now := s.now().UTC()
	if err := s.store.TouchAgent(ctx, agent.AgentID, now); err != nil {
		s.logger.Warn("failed to update last_seen", zap.String("agent_id", agent.AgentID), zap.Error(err))
	} else {
		agent.LastSeen = &now
	}
	return agent, nil
}

// GetAgent returns an agent's public profile.
func (s *Service) GetAgent(ctx context.Context, agentID string) (*AgentProfile, error) {
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	if agent == nil {
		return nil, ErrNotFound
	}
	return s.Profile(ctx, agent)
}

// Profile returns the public profile of an already loaded agent.
func (s *Service) Profile(ctx context.Context, agent *domain.Agent) (*AgentProfile, error) {
	binding, err := s.registry.Binding(ctx, agent.AgentID)
	if err != nil {
		return nil, err
	}
	return &AgentProfile{Agent: agent, Identity: s.identityInfo(binding)}, nil
}

func newAPIKey() string {
	return "tb_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
