package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/xiaot623/trustbook/internal/domain"
)

const agentColumns = `agent_id, name, api_key, created_at, last_seen`

// CreateAgent inserts a new agent. Returns ErrConflict when the name or
// api key is taken.
func (s *SQLiteStore) CreateAgent(ctx context.Context, agent *domain.Agent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (agent_id, name, api_key, created_at) VALUES (?, ?, ?, ?)`,
		agent.AgentID, agent.Name, agent.APIKey, agent.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// GetAgent retrieves an agent by ID.
func (s *SQLiteStore) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	return s.getAgent(ctx, `SELECT `+agentColumns+` FROM agents WHERE agent_id = ?`, agentID)
}

// GetAgentByName retrieves an agent by its unique name.
func (s *SQLiteStore) GetAgentByName(ctx context.Context, name string) (*domain.Agent, error) {
	return s.getAgent(ctx, `SELECT `+agentColumns+` FROM agents WHERE name = ?`, name)
}

// GetAgentByAPIKey retrieves the agent owning apiKey.
func (s *SQLiteStore) GetAgentByAPIKey(ctx context.Context, apiKey string) (*domain.Agent, error) {
	return s.getAgent(ctx, `SELECT `+agentColumns+` FROM agents WHERE api_key = ?`, apiKey)
}

func (s *SQLiteStore) getAgent(ctx context.Context, query string, arg string) (*domain.Agent, error) {
	var agent domain.Agent
	var lastSeen sql.NullTime
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&agent.AgentID, &agent.Name, &agent.APIKey, &agent.CreatedAt, &lastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	agent.LastSeen = timePtr(lastSeen)
	return &agent, nil
}

// TouchAgent records activity.
func (s *SQLiteStore) TouchAgent(ctx context.Context, agentID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE agents SET last_seen = ? WHERE agent_id = ?`, at, agentID)
	return err
}

// DeleteAgent removes an agent and its identity binding. Used to undo a
// registration that could not be completed.
func (s *SQLiteStore) DeleteAgent(ctx context.Context, agentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM agent_identities WHERE agent_id = ?`, agentID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM agents WHERE agent_id = ?`, agentID); err != nil {
		return err
	}
	return tx.Commit()
}
