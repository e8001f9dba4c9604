package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "mnemo/backend/pkg/errors"
)

// ============================================================================
// Memory Operations
// ============================================================================

const batchResolveConcurrency = 8

type createMemoryArgs struct {
	OrgID         string `validate:"required"`
	UserID        string `validate:"required"`
	AgentID       string `validate:"required"`
	InteractionID string `validate:"required"`
	MemoryID      string `validate:"required"`
	Text          string `validate:"required"`
}

type memoryArgs struct {
	OrgID    string `validate:"required"`
	UserID   string `validate:"required"`
	MemoryID string `validate:"required"`
}

// createMemoryTx anchors one memory under the user's memory collection
// and returns it with the server-assigned obtained_at. The HAS_MEMORY
// provenance edge is only created when the source interaction still
// exists; the snapshot makes the memory self-contained either way.
func (s *Store) createMemoryTx(ctx context.Context, tx neo4j.ManagedTransaction, memory *Memory) (*Memory, error) {
	encoded, err := encodeMessageSources(memory.MessageSources)
	if err != nil {
		return nil, apperrors.InvalidArgument("message sources are not serializable: " + err.Error())
	}

	result, err := tx.Run(ctx, `
		MATCH (mc:MemoryCollection {org_id: $org_id, user_id: $user_id})
		CREATE (m:Memory {
			org_id: $org_id,
			user_id: $user_id,
			agent_id: $agent_id,
			interaction_id: $interaction_id,
			memory_id: $memory_id,
			memory: $memory,
			obtained_at: datetime(),
			message_sources: $message_sources
		})
		CREATE (mc)-[:INCLUDES]->(m)
		WITH m
		OPTIONAL MATCH (i:Interaction {
			org_id: $org_id,
			user_id: $user_id,
			interaction_id: $interaction_id
		})
		FOREACH (_ IN CASE WHEN i IS NULL THEN [] ELSE [1] END |
			CREATE (i)-[:HAS_MEMORY]->(m)
		)
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
	`, map[string]interface{}{
		"org_id":          memory.OrgID,
		"user_id":         memory.UserID,
		"agent_id":        memory.AgentID,
		"interaction_id":  memory.InteractionID,
		"memory_id":       memory.MemoryID,
		"memory":          memory.Memory,
		"message_sources": encoded,
	})
	if err != nil {
		return nil, err
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, err
		}
		return nil, apperrors.NotFound("memory collection not found")
	}
	return memoryFromMap(getMapFromRecord(result.Record(), "memory")), nil
}

// CreateMemory stores one distilled memory under the user's memory
// collection. sources is frozen into the memory as a snapshot; later
// edits to the source messages never reach it.
func (s *Store) CreateMemory(ctx context.Context, orgID, userID, agentID, interactionID, memoryID, text string, sources []MessageBlock) (memory *Memory, err error) {
	start := time.Now()
	defer func() { s.observe("create_memory", start, err) }()

	if memoryID == "" {
		memoryID = uuid.New().String()
	}
	if err = s.validateArgs(createMemoryArgs{
		OrgID:         orgID,
		UserID:        userID,
		AgentID:       agentID,
		InteractionID: interactionID,
		MemoryID:      memoryID,
		Text:          text,
	}); err != nil {
		return nil, err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		return s.createMemoryTx(ctx, tx, &Memory{
			OrgID:          orgID,
			UserID:         userID,
			AgentID:        agentID,
			InteractionID:  interactionID,
			MemoryID:       memoryID,
			Memory:         text,
			MessageSources: sources,
		})
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("create memory", err)
	}

	s.logger.Info("Memory created",
		zap.String("org_id", orgID),
		zap.String("user_id", userID),
		zap.String("memory_id", memoryID),
	)
	return result.(*Memory), nil
}

// GetMemory returns one memory by composite key with its snapshot decoded
func (s *Store) GetMemory(ctx context.Context, orgID, userID, memoryID string) (memory *Memory, err error) {
	start := time.Now()
	defer func() { s.observe("get_memory", start, err) }()

	if err = s.validateArgs(memoryArgs{OrgID: orgID, UserID: userID, MemoryID: memoryID}); err != nil {
		return nil, err
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (m:Memory {org_id: $org_id, user_id: $user_id, memory_id: $memory_id})
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
		`, map[string]interface{}{
			"org_id":    orgID,
			"user_id":   userID,
			"memory_id": memoryID,
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, apperrors.NotFound("memory not found")
		}
		return memoryFromMap(getMapFromRecord(result.Record(), "memory")), nil
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("get memory", err)
	}

	return result.(*Memory), nil
}

// ListUserMemories returns the user's memories ordered by obtained_at
// descending, offset-paginated. A non-nil agentID narrows the listing to
// that agent; the predicate is parameterized so both shapes share one
// query plan.
func (s *Store) ListUserMemories(ctx context.Context, orgID, userID string, agentID *string, skip, limit int) (memories []Memory, err error) {
	start := time.Now()
	defer func() { s.observe("list_user_memories", start, err) }()

	if err = s.validateArgs(userArgs{OrgID: orgID, UserID: userID}); err != nil {
		return nil, err
	}
	if agentID != nil && *agentID == "" {
		return nil, apperrors.InvalidArgument("agent_id must not be empty when provided")
	}
	if skip < 0 {
		skip = 0
	}
	if limit < 1 {
		limit = 10
	}

	var agentParam interface{}
	if agentID != nil {
		agentParam = *agentID
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (mc:MemoryCollection {org_id: $org_id, user_id: $user_id})
			      -[:INCLUDES]->(m:Memory)
			WHERE $agent_id IS NULL OR m.agent_id = $agent_id
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
			ORDER BY m.obtained_at DESC
			SKIP $skip
			LIMIT $limit
		`, map[string]interface{}{
			"org_id":   orgID,
			"user_id":  userID,
			"agent_id": agentParam,
			"skip":     skip,
			"limit":    limit,
		})
		if err != nil {
			return nil, err
		}

		memories := []Memory{}
		for result.Next(ctx) {
			memories = append(memories, *memoryFromMap(getMapFromRecord(result.Record(), "memory")))
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
		return memories, nil
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("list user memories", err)
	}

	return result.([]Memory), nil
}

// DeleteMemory removes one memory node and its edges. Deleting an absent
// memory is a no-op. The matching vector-index entry is the caller's to
// purge via VectorIndex().
func (s *Store) DeleteMemory(ctx context.Context, orgID, userID, memoryID string) (err error) {
	start := time.Now()
	defer func() { s.observe("delete_memory", start, err) }()

	if err = s.validateArgs(memoryArgs{OrgID: orgID, UserID: userID, MemoryID: memoryID}); err != nil {
		return err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (m:Memory {org_id: $org_id, user_id: $user_id, memory_id: $memory_id})
			DETACH DELETE m
		`, map[string]interface{}{
			"org_id":    orgID,
			"user_id":   userID,
			"memory_id": memoryID,
		})
		if err != nil {
			return nil, err
		}
		return nil, consumeResult(ctx, result)
	})
	if err != nil {
		return apperrors.FromNeo4j("delete memory", err)
	}

	s.logger.Info("Memory deleted",
		zap.String("org_id", orgID),
		zap.String("user_id", userID),
		zap.String("memory_id", memoryID),
	)
	return nil
}

// DeleteAllUserMemories removes every memory under the user's memory
// collection. The collection anchor survives.
func (s *Store) DeleteAllUserMemories(ctx context.Context, orgID, userID string) (err error) {
	start := time.Now()
	defer func() { s.observe("delete_all_user_memories", start, err) }()

	if err = s.validateArgs(userArgs{OrgID: orgID, UserID: userID}); err != nil {
		return err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (mc:MemoryCollection {org_id: $org_id, user_id: $user_id})
			      -[:INCLUDES]->(m:Memory)
			DETACH DELETE m
		`, map[string]interface{}{
			"org_id":  orgID,
			"user_id": userID,
		})
		if err != nil {
			return nil, err
		}
		return nil, consumeResult(ctx, result)
	})
	if err != nil {
		return apperrors.FromNeo4j("delete all user memories", err)
	}

	s.logger.Info("All user memories deleted",
		zap.String("org_id", orgID),
		zap.String("user_id", userID),
	)
	return nil
}

// FetchMemoriesResolved resolves many memory ids of one user in a single
// query. Ids that no longer resolve are omitted from the result, not
// errors: a memory deleted between lookup and fetch is routine.
func (s *Store) FetchMemoriesResolved(ctx context.Context, orgID, userID string, memoryIDs []string) (memories []Memory, err error) {
	start := time.Now()
	defer func() { s.observe("fetch_memories_resolved", start, err) }()

	if err = s.validateArgs(userArgs{OrgID: orgID, UserID: userID}); err != nil {
		return nil, err
	}
	if len(memoryIDs) == 0 {
		return []Memory{}, nil
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			UNWIND $memory_ids as memory_id
			MATCH (m:Memory {org_id: $org_id, user_id: $user_id, memory_id: memory_id})
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
		`, map[string]interface{}{
			"org_id":     orgID,
			"user_id":    userID,
			"memory_ids": memoryIDs,
		})
		if err != nil {
			return nil, err
		}

		memories := []Memory{}
		for result.Next(ctx) {
			memories = append(memories, *memoryFromMap(getMapFromRecord(result.Record(), "memory")))
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
		return memories, nil
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("fetch memories resolved", err)
	}

	return result.([]Memory), nil
}

// FetchMemoriesResolvedBatch resolves refs that may span users and
// organizations, a bounded number at a time. Misses and per-ref failures
// are omitted silently; the found memories come back in request order.
// A cancelled or expired context fails the call as a whole.
func (s *Store) FetchMemoriesResolvedBatch(ctx context.Context, requests []MemoryRef) (memories []Memory, err error) {
	start := time.Now()
	defer func() { s.observe("fetch_memories_resolved_batch", start, err) }()

	if len(requests) == 0 {
		return []Memory{}, nil
	}

	slots := make([]*Memory, len(requests))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(batchResolveConcurrency)
	for idx, ref := range requests {
		idx, ref := idx, ref
		group.Go(func() error {
			memory, err := s.GetMemory(groupCtx, ref.OrgID, ref.UserID, ref.MemoryID)
			if err != nil {
				if ctxErr := groupCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				// omission, not failure
				return nil
			}
			slots[idx] = memory
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, apperrors.FromNeo4j("fetch memories resolved batch", err)
	}

	memories = []Memory{}
	for _, memory := range slots {
		if memory != nil {
			memories = append(memories, *memory)
		}
	}
	return memories, nil
}
