package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "mnemo/backend/pkg/errors"
)

// ============================================================================
// Interaction Operations
// ============================================================================

type createInteractionArgs struct {
	OrgID         string `validate:"required"`
	UserID        string `validate:"required"`
	AgentID       string `validate:"required"`
	InteractionID string `validate:"required"`
}

// CreateInteraction creates an empty interaction under the user's
// interaction collection
func (s *Store) CreateInteraction(ctx context.Context, orgID, userID, agentID, interactionID string) (interaction *Interaction, err error) {
	start := time.Now()
	defer func() { s.observe("create_interaction", start, err) }()

	if err = s.validateArgs(createInteractionArgs{
		OrgID:         orgID,
		UserID:        userID,
		AgentID:       agentID,
		InteractionID: interactionID,
	}); err != nil {
		return nil, err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (ic:InteractionCollection {org_id: $org_id, user_id: $user_id})
			CREATE (i:Interaction {
				org_id: $org_id,
				user_id: $user_id,
				agent_id: $agent_id,
				interaction_id: $interaction_id,
				created_at: datetime(),
				updated_at: datetime()
			})
			CREATE (ic)-[:HAD_INTERACTION]->(i)
			RETURN i{
				.org_id,
				.user_id,
				.agent_id,
				.interaction_id,
				.created_at,
				.updated_at
			} as interaction
		`, map[string]interface{}{
			"org_id":         orgID,
			"user_id":        userID,
			"agent_id":       agentID,
			"interaction_id": interactionID,
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			// zero rows: the collection anchor is missing
			return nil, apperrors.NotFound("interaction collection not found")
		}
		return interactionScalarsFromMap(getMapFromRecord(result.Record(), "interaction")), nil
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("create interaction", err)
	}

	interaction = result.(*Interaction)
	s.logger.Info("Interaction created",
		zap.String("org_id", interaction.OrgID),
		zap.String("user_id", interaction.UserID),
		zap.String("interaction_id", interaction.InteractionID),
	)
	return interaction, nil
}

// hydrateInteractionTx reconstructs the full aggregate: scalar fields,
// the ordered message chain, and every attached memory
func (s *Store) hydrateInteractionTx(ctx context.Context, tx neo4j.ManagedTransaction, scope chainScope) (*Interaction, error) {
	result, err := tx.Run(ctx, `
		MATCH (i:Interaction {
			org_id: $org_id,
			user_id: $user_id,
			interaction_id: $interaction_id
		})
		RETURN i{
			.org_id,
			.user_id,
			.agent_id,
			.interaction_id,
			.created_at,
			.updated_at
		} as interaction
	`, scope.params())
	if err != nil {
		return nil, err
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, err
		}
		return nil, apperrors.NotFound("interaction not found")
	}
	interaction := interactionScalarsFromMap(getMapFromRecord(result.Record(), "interaction"))

	messages, err := s.readChainTx(ctx, tx, scope)
	if err != nil {
		return nil, err
	}
	interaction.Messages = messages

	memResult, err := tx.Run(ctx, `
		MATCH (i:Interaction {
			org_id: $org_id,
			user_id: $user_id,
			interaction_id: $interaction_id
		})-[:HAS_MEMORY]->(m:Memory)
		RETURN m{
			.org_id,
			.user_id,
			.agent_id,
			.interaction_id,
			.memory_id,
			.memory,
			.obtained_at,
			.message_sources
		} as memory
	`, scope.params())
	if err != nil {
		return nil, err
	}
	for memResult.Next(ctx) {
		interaction.Memories = append(interaction.Memories, *memoryFromMap(getMapFromRecord(memResult.Record(), "memory")))
	}
	if err := memResult.Err(); err != nil {
		return nil, err
	}

	return interaction, nil
}

// GetInteraction returns the full interaction aggregate in one read
// transaction. Zero messages or zero memories is valid.
func (s *Store) GetInteraction(ctx context.Context, orgID, userID, interactionID string) (interaction *Interaction, err error) {
	start := time.Now()
	defer func() { s.observe("get_interaction", start, err) }()

	scope := chainScope{OrgID: orgID, UserID: userID, InteractionID: interactionID}
	if err = s.validateArgs(scope); err != nil {
		return nil, err
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		return s.hydrateInteractionTx(ctx, tx, scope)
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("get interaction", err)
	}

	return result.(*Interaction), nil
}

// ListUserInteractions returns the user's interactions ordered by
// created_at descending, offset-paginated, each fully hydrated. Offset
// pagination skews under concurrent writes; callers must tolerate that.
func (s *Store) ListUserInteractions(ctx context.Context, orgID, userID string, skip, limit int) (interactions []Interaction, err error) {
	start := time.Now()
	defer func() { s.observe("list_user_interactions", start, err) }()

	if err = s.validateArgs(userArgs{OrgID: orgID, UserID: userID}); err != nil {
		return nil, err
	}
	if skip < 0 {
		skip = 0
	}
	if limit < 1 {
		limit = 10
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (ic:InteractionCollection {org_id: $org_id, user_id: $user_id})
			      -[:HAD_INTERACTION]->(i:Interaction)
			RETURN i.interaction_id as interaction_id
			ORDER BY i.created_at DESC
			SKIP $skip
			LIMIT $limit
		`, map[string]interface{}{
			"org_id":  orgID,
			"user_id": userID,
			"skip":    skip,
			"limit":   limit,
		})
		if err != nil {
			return nil, err
		}

		ids := []string{}
		for result.Next(ctx) {
			ids = append(ids, getStringFromRecord(result.Record(), "interaction_id"))
		}
		if err := result.Err(); err != nil {
			return nil, err
		}

		interactions := []Interaction{}
		for _, id := range ids {
			interaction, err := s.hydrateInteractionTx(ctx, tx, chainScope{
				OrgID:         orgID,
				UserID:        userID,
				InteractionID: id,
			})
			if err != nil {
				return nil, err
			}
			interactions = append(interactions, *interaction)
		}
		return interactions, nil
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("list user interactions", err)
	}

	return result.([]Interaction), nil
}

// SaveInteractionWithMemories creates the interaction, bulk-builds its
// message chain, and creates every memory linked to both the user's
// memory collection and the interaction, all in one transaction. A
// failure partway leaves nothing behind.
func (s *Store) SaveInteractionWithMemories(ctx context.Context, interaction *Interaction, memories []Memory) (err error) {
	start := time.Now()
	defer func() { s.observe("save_interaction_with_memories", start, err) }()

	if interaction == nil {
		return apperrors.InvalidArgument("interaction must not be nil")
	}
	scope := chainScope{
		OrgID:         interaction.OrgID,
		UserID:        interaction.UserID,
		InteractionID: interaction.InteractionID,
	}
	if err = s.validateArgs(scope); err != nil {
		return err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (ic:InteractionCollection {org_id: $org_id, user_id: $user_id})
			CREATE (i:Interaction {
				org_id: $org_id,
				user_id: $user_id,
				agent_id: $agent_id,
				interaction_id: $interaction_id,
				created_at: datetime(),
				updated_at: datetime()
			})
			CREATE (ic)-[:HAD_INTERACTION]->(i)
			RETURN i.interaction_id as interaction_id
		`, mergeParams(scope.params(), map[string]interface{}{
			"agent_id": interaction.AgentID,
		}))
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, apperrors.NotFound("interaction collection not found")
		}

		if err := s.bulkBuildChainTx(ctx, tx, scope, interaction.Messages); err != nil {
			return nil, err
		}

		for _, memory := range memories {
			if _, err := s.createMemoryTx(ctx, tx, &memory); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return apperrors.FromNeo4j("save interaction with memories", err)
	}

	s.logger.Info("Interaction saved",
		zap.String("org_id", interaction.OrgID),
		zap.String("user_id", interaction.UserID),
		zap.String("interaction_id", interaction.InteractionID),
		zap.Int("messages", len(interaction.Messages)),
		zap.Int("memories", len(memories)),
	)
	return nil
}

// UpdateInteractionAndMemories replaces an interaction wholesale: the
// existing interaction and its chain are deleted, then the supplied
// state is saved as new. Callers supply the complete desired state, not
// a diff.
func (s *Store) UpdateInteractionAndMemories(ctx context.Context, interaction *Interaction, memories []Memory) (err error) {
	start := time.Now()
	defer func() { s.observe("update_interaction_and_memories", start, err) }()

	if interaction == nil {
		return apperrors.InvalidArgument("interaction must not be nil")
	}
	if err = s.DeleteInteraction(ctx, interaction.OrgID, interaction.UserID, interaction.InteractionID); err != nil {
		return err
	}
	return s.SaveInteractionWithMemories(ctx, interaction, memories)
}

// deleteInteractionTx removes the interaction and every message in its
// chain. Memories attached to the interaction are left in place.
func (s *Store) deleteInteractionTx(ctx context.Context, tx neo4j.ManagedTransaction, scope chainScope) error {
	result, err := tx.Run(ctx, `
		MATCH (i:Interaction {
			org_id: $org_id,
			user_id: $user_id,
			interaction_id: $interaction_id
		})
		OPTIONAL MATCH (i)-[:FIRST_MESSAGE]->(m:Message)
		RETURN elementId(m) as head
	`, scope.params())
	if err != nil {
		return err
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return err
		}
		// delete is unconditional: nothing to remove
		return nil
	}
	head := getStringFromRecord(result.Record(), "head")

	messageIDs, err := s.collectChainTx(ctx, tx, head)
	if err != nil {
		return err
	}
	if len(messageIDs) > 0 {
		delResult, err := tx.Run(ctx, `
			MATCH (m:Message)
			WHERE elementId(m) IN $ids
			DETACH DELETE m
		`, map[string]interface{}{
			"ids": messageIDs,
		})
		if err != nil {
			return err
		}
		if err := consumeResult(ctx, delResult); err != nil {
			return err
		}
	}

	delResult, err := tx.Run(ctx, `
		MATCH (i:Interaction {
			org_id: $org_id,
			user_id: $user_id,
			interaction_id: $interaction_id
		})
		DETACH DELETE i
	`, scope.params())
	if err != nil {
		return err
	}
	return consumeResult(ctx, delResult)
}

// DeleteInteraction removes an interaction and its whole message chain
// in one transaction. Memories distilled from it survive with their
// provenance id now dangling.
func (s *Store) DeleteInteraction(ctx context.Context, orgID, userID, interactionID string) (err error) {
	start := time.Now()
	defer func() { s.observe("delete_interaction", start, err) }()

	scope := chainScope{OrgID: orgID, UserID: userID, InteractionID: interactionID}
	if err = s.validateArgs(scope); err != nil {
		return err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		return nil, s.deleteInteractionTx(ctx, tx, scope)
	})
	if err != nil {
		return apperrors.FromNeo4j("delete interaction", err)
	}

	s.logger.Info("Interaction deleted",
		zap.String("org_id", orgID),
		zap.String("user_id", userID),
		zap.String("interaction_id", interactionID),
	)
	return nil
}

// deleteUserGraphTx removes every interaction under the user's
// interaction collection, every message in every chain, and every memory
// under the user's memory collection. Collection anchors and the user
// node are left for the caller.
func (s *Store) deleteUserGraphTx(ctx context.Context, tx neo4j.ManagedTransaction, orgID, userID string) error {
	params := map[string]interface{}{
		"org_id":  orgID,
		"user_id": userID,
	}

	result, err := tx.Run(ctx, `
		MATCH (ic:InteractionCollection {org_id: $org_id, user_id: $user_id})
		      -[:HAD_INTERACTION]->(i:Interaction)
		OPTIONAL MATCH (i)-[:FIRST_MESSAGE]->(m:Message)
		RETURN elementId(i) as interaction, elementId(m) as head
	`, params)
	if err != nil {
		return err
	}

	interactionIDs := []string{}
	heads := []string{}
	for result.Next(ctx) {
		record := result.Record()
		interactionIDs = append(interactionIDs, getStringFromRecord(record, "interaction"))
		if head := getStringFromRecord(record, "head"); head != "" {
			heads = append(heads, head)
		}
	}
	if err := result.Err(); err != nil {
		return err
	}

	messageIDs := []string{}
	for _, head := range heads {
		chain, err := s.collectChainTx(ctx, tx, head)
		if err != nil {
			return err
		}
		messageIDs = append(messageIDs, chain...)
	}

	if len(messageIDs) > 0 {
		delResult, err := tx.Run(ctx, `
			MATCH (m:Message)
			WHERE elementId(m) IN $ids
			DETACH DELETE m
		`, map[string]interface{}{
			"ids": messageIDs,
		})
		if err != nil {
			return err
		}
		if err := consumeResult(ctx, delResult); err != nil {
			return err
		}
	}

	if len(interactionIDs) > 0 {
		delResult, err := tx.Run(ctx, `
			MATCH (i:Interaction)
			WHERE elementId(i) IN $ids
			DETACH DELETE i
		`, map[string]interface{}{
			"ids": interactionIDs,
		})
		if err != nil {
			return err
		}
		if err := consumeResult(ctx, delResult); err != nil {
			return err
		}
	}

	delResult, err := tx.Run(ctx, `
		MATCH (mc:MemoryCollection {org_id: $org_id, user_id: $user_id})
		      -[:INCLUDES]->(m:Memory)
		DETACH DELETE m
	`, params)
	if err != nil {
		return err
	}
	return consumeResult(ctx, delResult)
}

// DeleteAllUserInteractionsAndMemories is the full-teardown variant: it
// removes every interaction of the user, every message in every chain,
// and every memory, in one transaction. The collection anchors survive.
func (s *Store) DeleteAllUserInteractionsAndMemories(ctx context.Context, orgID, userID string) (err error) {
	start := time.Now()
	defer func() { s.observe("delete_all_user_interactions_and_memories", start, err) }()

	if err = s.validateArgs(userArgs{OrgID: orgID, UserID: userID}); err != nil {
		return err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		return nil, s.deleteUserGraphTx(ctx, tx, orgID, userID)
	})
	if err != nil {
		return apperrors.FromNeo4j("delete all user interactions and memories", err)
	}

	s.logger.Info("All user interactions and memories deleted",
		zap.String("org_id", orgID),
		zap.String("user_id", userID),
	)
	return nil
}

func interactionScalarsFromMap(m map[string]interface{}) *Interaction {
	return &Interaction{
		OrgID:         getStringFromMap(m, "org_id"),
		UserID:        getStringFromMap(m, "user_id"),
		AgentID:       getStringFromMap(m, "agent_id"),
		InteractionID: getStringFromMap(m, "interaction_id"),
		CreatedAt:     getTimeFromMap(m, "created_at"),
		UpdatedAt:     getTimeFromMap(m, "updated_at"),
		Messages:      []MessageBlock{},
		Memories:      []Memory{},
	}
}
