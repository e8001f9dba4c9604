package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "mnemo/backend/pkg/errors"
)

// ============================================================================
// Agent Operations
// ============================================================================

type createAgentArgs struct {
	OrgID      string `validate:"required"`
	AgentLabel string `validate:"required"`
}

type agentArgs struct {
	OrgID   string `validate:"required"`
	AgentID string `validate:"required"`
}

type updateAgentArgs struct {
	OrgID    string `validate:"required"`
	AgentID  string `validate:"required"`
	NewLabel string `validate:"required"`
}

// CreateAgent creates an agent under an organization. When userID is
// non-nil, the agent is additionally co-owned by that user, and both
// parents must exist.
func (s *Store) CreateAgent(ctx context.Context, orgID, agentLabel string, userID *string) (agent *Agent, err error) {
	start := time.Now()
	defer func() { s.observe("create_agent", start, err) }()

	if err = s.validateArgs(createAgentArgs{OrgID: orgID, AgentLabel: agentLabel}); err != nil {
		return nil, err
	}
	if userID != nil && *userID == "" {
		return nil, apperrors.InvalidArgument("user_id must not be empty when provided")
	}

	agentID := uuid.New().String()

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		var result neo4j.ResultWithContext
		var err error

		if userID != nil {
			result, err = tx.Run(ctx, `
				MATCH (o:Org {org_id: $org_id}), (u:User {org_id: $org_id, user_id: $user_id})
				CREATE (a:Agent {
					org_id: $org_id,
					user_id: $user_id,
					agent_id: $agent_id,
					agent_label: $agent_label,
					created_at: datetime()
				})
				CREATE (o)-[:HAS_AGENT]->(a)
				CREATE (u)-[:HAS_AGENT]->(a)
				RETURN a{.org_id, .user_id, .agent_id, .agent_label, .created_at} as agent
			`, map[string]interface{}{
				"org_id":      orgID,
				"user_id":     *userID,
				"agent_id":    agentID,
				"agent_label": agentLabel,
			})
		} else {
			result, err = tx.Run(ctx, `
				MATCH (o:Org {org_id: $org_id})
				CREATE (a:Agent {
					org_id: $org_id,
					agent_id: $agent_id,
					agent_label: $agent_label,
					created_at: datetime()
				})
				CREATE (o)-[:HAS_AGENT]->(a)
				RETURN a{.org_id, .agent_id, .agent_label, .created_at} as agent
			`, map[string]interface{}{
				"org_id":      orgID,
				"agent_id":    agentID,
				"agent_label": agentLabel,
			})
		}
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, apperrors.NotFound("organization or user not found")
		}
		return agentFromMap(getMapFromRecord(result.Record(), "agent")), nil
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("create agent", err)
	}

	agent = result.(*Agent)
	s.logger.Info("Agent created",
		zap.String("org_id", agent.OrgID),
		zap.String("agent_id", agent.AgentID),
	)
	return agent, nil
}

// UpdateAgent relabels an agent
func (s *Store) UpdateAgent(ctx context.Context, orgID, agentID, newAgentLabel string) (agent *Agent, err error) {
	start := time.Now()
	defer func() { s.observe("update_agent", start, err) }()

	if err = s.validateArgs(updateAgentArgs{OrgID: orgID, AgentID: agentID, NewLabel: newAgentLabel}); err != nil {
		return nil, err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (a:Agent {org_id: $org_id, agent_id: $agent_id})
			SET a.agent_label = $new_agent_label
			RETURN a{.org_id, .user_id, .agent_id, .agent_label, .created_at} as agent
		`, map[string]interface{}{
			"org_id":          orgID,
			"agent_id":        agentID,
			"new_agent_label": newAgentLabel,
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, apperrors.NotFound("agent not found")
		}
		return agentFromMap(getMapFromRecord(result.Record(), "agent")), nil
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("update agent", err)
	}

	return result.(*Agent), nil
}

// DeleteAgent removes the agent node and its edges
func (s *Store) DeleteAgent(ctx context.Context, orgID, agentID string) (err error) {
	start := time.Now()
	defer func() { s.observe("delete_agent", start, err) }()

	if err = s.validateArgs(agentArgs{OrgID: orgID, AgentID: agentID}); err != nil {
		return err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (a:Agent {org_id: $org_id, agent_id: $agent_id})
			DETACH DELETE a
		`, map[string]interface{}{
			"org_id":   orgID,
			"agent_id": agentID,
		})
		if err != nil {
			return nil, err
		}
		return nil, consumeResult(ctx, result)
	})
	if err != nil {
		return apperrors.FromNeo4j("delete agent", err)
	}

	s.logger.Info("Agent deleted",
		zap.String("org_id", orgID),
		zap.String("agent_id", agentID),
	)
	return nil
}

// GetAgent returns one agent by composite key
func (s *Store) GetAgent(ctx context.Context, orgID, agentID string) (agent *Agent, err error) {
	start := time.Now()
	defer func() { s.observe("get_agent", start, err) }()

	if err = s.validateArgs(agentArgs{OrgID: orgID, AgentID: agentID}); err != nil {
		return nil, err
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (a:Agent {org_id: $org_id, agent_id: $agent_id})
			RETURN a{.org_id, .user_id, .agent_id, .agent_label, .created_at} as agent
		`, map[string]interface{}{
			"org_id":   orgID,
			"agent_id": agentID,
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, apperrors.NotFound("agent not found")
		}
		return agentFromMap(getMapFromRecord(result.Record(), "agent")), nil
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("get agent", err)
	}

	return result.(*Agent), nil
}

// ListOrgAgents returns every agent owned by an organization
func (s *Store) ListOrgAgents(ctx context.Context, orgID string) (agents []Agent, err error) {
	start := time.Now()
	defer func() { s.observe("list_org_agents", start, err) }()

	if err = s.validateArgs(organizationArgs{OrgID: orgID}); err != nil {
		return nil, err
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (o:Org {org_id: $org_id})-[:HAS_AGENT]->(a:Agent)
			RETURN a{.org_id, .user_id, .agent_id, .agent_label, .created_at} as agent
		`, map[string]interface{}{
			"org_id": orgID,
		})
		if err != nil {
			return nil, err
		}

		agents := []Agent{}
		for result.Next(ctx) {
			agents = append(agents, *agentFromMap(getMapFromRecord(result.Record(), "agent")))
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
		return agents, nil
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("list org agents", err)
	}

	return result.([]Agent), nil
}

// ListUserAgents returns every agent co-owned by a user
func (s *Store) ListUserAgents(ctx context.Context, orgID, userID string) (agents []Agent, err error) {
	start := time.Now()
	defer func() { s.observe("list_user_agents", start, err) }()

	if err = s.validateArgs(userArgs{OrgID: orgID, UserID: userID}); err != nil {
		return nil, err
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (u:User {org_id: $org_id, user_id: $user_id})-[:HAS_AGENT]->(a:Agent)
			RETURN a{.org_id, .user_id, .agent_id, .agent_label, .created_at} as agent
		`, map[string]interface{}{
			"org_id":  orgID,
			"user_id": userID,
		})
		if err != nil {
			return nil, err
		}

		agents := []Agent{}
		for result.Next(ctx) {
			agents = append(agents, *agentFromMap(getMapFromRecord(result.Record(), "agent")))
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
		return agents, nil
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("list user agents", err)
	}

	return result.([]Agent), nil
}
