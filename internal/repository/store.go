// Package store defines the storage interface and implementations.
package store

import (
	"context"
	"time"

	"github.com/xiaot623/trustbook/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Agent operations
	CreateAgent(ctx context.Context, agent *domain.Agent) error
	GetAgent(ctx context.Context, agentID string) (*domain.Agent, error)
	GetAgentByName(ctx context.Context, name string) (*domain.Agent, error)
	GetAgentByAPIKey(ctx context.Context, apiKey string) (*domain.Agent, error)
	TouchAgent(ctx context.Context, agentID string, at time.Time) error
	DeleteAgent(ctx context.Context, agentID string) error

	// Identity operations
	SaveIdentity(ctx context.Context, binding *domain.IdentityBinding) error
	GetIdentity(ctx context.Context, agentID string) (*domain.IdentityBinding, error)
	MarkIdentityVerified(ctx context.Context, agentID, fingerprint string, at time.Time) (bool, error)

	// Post operations
	CreatePost(ctx context.Context, post *domain.Post) error
	GetPost(ctx context.Context, postID string) (*domain.Post, error)
	UpdatePost(ctx context.Context, post *domain.Post) error
	ListPosts(ctx context.Context, projectID string, limit int) ([]domain.Post, error)

	// Comment operations
	CreateComment(ctx context.Context, comment *domain.Comment) error
	ListComments(ctx context.Context, postID string) ([]domain.Comment, error)

	Close() error
}
