package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	apperrors "mnemo/backend/pkg/errors"
)

// ============================================================================
// Message-Chain Engine
// ============================================================================
//
// An interaction's messages are a singly-linked list of Message nodes:
// (i:Interaction)-[:FIRST_MESSAGE]->(head), (msg)-[:IS_NEXT]->(successor).
// The chain is walked one hop at a time by element id rather than with an
// arbitrary-length path match, so a corrupted chain can never cause
// unbounded work: every walk is cut off at maxChainLength.

type chainScope struct {
	OrgID         string `validate:"required"`
	UserID        string `validate:"required"`
	InteractionID string `validate:"required"`
}

func (sc chainScope) params() map[string]interface{} {
	return map[string]interface{}{
		"org_id":         sc.OrgID,
		"user_id":        sc.UserID,
		"interaction_id": sc.InteractionID,
	}
}

// chainHeadTx returns the element id of the interaction's head message,
// or "" for an empty chain. A missing interaction yields NotFound.
func (s *Store) chainHeadTx(ctx context.Context, tx neo4j.ManagedTransaction, scope chainScope) (string, error) {
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
		return "", err
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return "", err
		}
		return "", apperrors.NotFound("interaction not found")
	}
	return getStringFromRecord(result.Record(), "head"), nil
}

// nextMessageTx returns the element id of the successor of the given
// message, or "" at the tail
func (s *Store) nextMessageTx(ctx context.Context, tx neo4j.ManagedTransaction, msgElementID string) (string, error) {
	result, err := tx.Run(ctx, `
		MATCH (m:Message)
		WHERE elementId(m) = $id
		OPTIONAL MATCH (m)-[:IS_NEXT]->(n:Message)
		RETURN elementId(n) as next
	`, map[string]interface{}{
		"id": msgElementID,
	})
	if err != nil {
		return "", err
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return "", err
		}
		return "", nil
	}
	return getStringFromRecord(result.Record(), "next"), nil
}

// collectChainTx walks head -> tail and returns every message element id
// in traversal order. headElementID may be "" for an empty chain.
func (s *Store) collectChainTx(ctx context.Context, tx neo4j.ManagedTransaction, headElementID string) ([]string, error) {
	ids := []string{}
	current := headElementID
	for current != "" {
		if len(ids) >= s.maxChainLength {
			return nil, apperrors.Unknown("message chain exceeds maximum length", nil)
		}
		ids = append(ids, current)
		next, err := s.nextMessageTx(ctx, tx, current)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return ids, nil
}

// appendMessageTx locates the current tail and attaches one new message.
// The tail is resolved inside the same write transaction as the
// mutation, so two racing appends cannot both claim the same tail.
func (s *Store) appendMessageTx(ctx context.Context, tx neo4j.ManagedTransaction, scope chainScope, message MessageBlock) error {
	head, err := s.chainHeadTx(ctx, tx, scope)
	if err != nil {
		return err
	}

	if head == "" {
		result, err := tx.Run(ctx, `
			MATCH (i:Interaction {
				org_id: $org_id,
				user_id: $user_id,
				interaction_id: $interaction_id
			})
			CREATE (m:Message {
				role: $role,
				content: $content,
				msg_position: $msg_position
			})
			CREATE (i)-[:FIRST_MESSAGE]->(m)
		`, mergeParams(scope.params(), map[string]interface{}{
			"role":         message.Role,
			"content":      message.Content,
			"msg_position": message.MsgPosition,
		}))
		if err != nil {
			return err
		}
		if err := consumeResult(ctx, result); err != nil {
			return err
		}
	} else {
		chain, err := s.collectChainTx(ctx, tx, head)
		if err != nil {
			return err
		}
		if len(chain) >= s.maxChainLength {
			return apperrors.InvalidArgument("message chain is at its maximum length")
		}
		tail := chain[len(chain)-1]

		result, err := tx.Run(ctx, `
			MATCH (t:Message)
			WHERE elementId(t) = $tail
			CREATE (m:Message {
				role: $role,
				content: $content,
				msg_position: $msg_position
			})
			CREATE (t)-[:IS_NEXT]->(m)
		`, map[string]interface{}{
			"tail":         tail,
			"role":         message.Role,
			"content":      message.Content,
			"msg_position": message.MsgPosition,
		})
		if err != nil {
			return err
		}
		if err := consumeResult(ctx, result); err != nil {
			return err
		}
	}

	result, err := tx.Run(ctx, `
		MATCH (i:Interaction {
			org_id: $org_id,
			user_id: $user_id,
			interaction_id: $interaction_id
		})
		SET i.updated_at = datetime()
	`, scope.params())
	if err != nil {
		return err
	}
	return consumeResult(ctx, result)
}

// readChainTx walks the chain head -> tail and collects the messages in
// traversal order. An interaction with no head yields an empty slice; a
// head without successors yields a single-message chain.
func (s *Store) readChainTx(ctx context.Context, tx neo4j.ManagedTransaction, scope chainScope) ([]MessageBlock, error) {
	result, err := tx.Run(ctx, `
		MATCH (i:Interaction {
			org_id: $org_id,
			user_id: $user_id,
			interaction_id: $interaction_id
		})
		OPTIONAL MATCH (i)-[:FIRST_MESSAGE]->(m:Message)
		RETURN elementId(m) as id, m{.role, .content, .msg_position} as msg
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

	messages := []MessageBlock{}
	record := result.Record()
	current := getStringFromRecord(record, "id")
	if current == "" {
		return messages, nil
	}
	messages = append(messages, messageFromMap(getMapFromRecord(record, "msg")))

	for {
		result, err := tx.Run(ctx, `
			MATCH (m:Message)
			WHERE elementId(m) = $id
			OPTIONAL MATCH (m)-[:IS_NEXT]->(n:Message)
			RETURN elementId(n) as id, n{.role, .content, .msg_position} as msg
		`, map[string]interface{}{
			"id": current,
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			break
		}
		record := result.Record()
		next := getStringFromRecord(record, "id")
		if next == "" {
			break
		}
		if len(messages) >= s.maxChainLength {
			return nil, apperrors.Unknown("message chain exceeds maximum length", nil)
		}
		messages = append(messages, messageFromMap(getMapFromRecord(record, "msg")))
		current = next
	}

	return messages, nil
}

// bulkBuildChainTx materializes a whole chain in one pass: each message
// node is created and linked to its predecessor, and the first node is
// attached as head. Equivalent to repeated appends without the per-append
// tail traversals.
func (s *Store) bulkBuildChainTx(ctx context.Context, tx neo4j.ManagedTransaction, scope chainScope, messages []MessageBlock) error {
	if len(messages) > s.maxChainLength {
		return apperrors.InvalidArgument("message count exceeds the maximum chain length")
	}
	prev := ""
	for idx, message := range messages {
		result, err := tx.Run(ctx, `
			CREATE (m:Message {
				role: $role,
				content: $content,
				msg_position: $msg_position
			})
			RETURN elementId(m) as id
		`, map[string]interface{}{
			"role":         message.Role,
			"content":      message.Content,
			"msg_position": message.MsgPosition,
		})
		if err != nil {
			return err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return err
			}
			return apperrors.Unknown("failed to create message", nil)
		}
		current := getStringFromRecord(result.Record(), "id")

		if idx == 0 {
			linkResult, err := tx.Run(ctx, `
				MATCH (i:Interaction {
					org_id: $org_id,
					user_id: $user_id,
					interaction_id: $interaction_id
				})
				MATCH (m:Message)
				WHERE elementId(m) = $id
				CREATE (i)-[:FIRST_MESSAGE]->(m)
			`, mergeParams(scope.params(), map[string]interface{}{
				"id": current,
			}))
			if err != nil {
				return err
			}
			if err := consumeResult(ctx, linkResult); err != nil {
				return err
			}
		} else {
			linkResult, err := tx.Run(ctx, `
				MATCH (p:Message)
				WHERE elementId(p) = $prev
				MATCH (m:Message)
				WHERE elementId(m) = $id
				CREATE (p)-[:IS_NEXT]->(m)
			`, map[string]interface{}{
				"prev": prev,
				"id":   current,
			})
			if err != nil {
				return err
			}
			if err := consumeResult(ctx, linkResult); err != nil {
				return err
			}
		}
		prev = current
	}
	return nil
}

// ============================================================================
// Public chain operations
// ============================================================================

// AddMessageToInteraction appends one message to the interaction's chain
// and refreshes its updated_at. Fails NotFound when the interaction does
// not exist, so a concurrently deleted chain never silently regrows.
func (s *Store) AddMessageToInteraction(ctx context.Context, orgID, userID, interactionID string, message MessageBlock) (err error) {
	start := time.Now()
	defer func() { s.observe("add_message_to_interaction", start, err) }()

	scope := chainScope{OrgID: orgID, UserID: userID, InteractionID: interactionID}
	if err = s.validateArgs(scope); err != nil {
		return err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		return nil, s.appendMessageTx(ctx, tx, scope, message)
	})
	if err != nil {
		return apperrors.FromNeo4j("add message to interaction", err)
	}
	return nil
}

// ReadChain returns the interaction's messages in chain order. An
// interaction with no messages yields an empty slice.
func (s *Store) ReadChain(ctx context.Context, orgID, userID, interactionID string) (messages []MessageBlock, err error) {
	start := time.Now()
	defer func() { s.observe("read_chain", start, err) }()

	scope := chainScope{OrgID: orgID, UserID: userID, InteractionID: interactionID}
	if err = s.validateArgs(scope); err != nil {
		return nil, err
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		return s.readChainTx(ctx, tx, scope)
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("read chain", err)
	}
	return result.([]MessageBlock), nil
}
