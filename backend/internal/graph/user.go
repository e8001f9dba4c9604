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
// User Operations
// ============================================================================

type createUserArgs struct {
	OrgID    string `validate:"required"`
	UserName string `validate:"required"`
}

type userArgs struct {
	OrgID  string `validate:"required"`
	UserID string `validate:"required"`
}

type updateUserArgs struct {
	OrgID   string `validate:"required"`
	UserID  string `validate:"required"`
	NewName string `validate:"required"`
}

// CreateUser creates a user under an organization together with the
// user's interaction and memory collection anchors. All three nodes and
// their ownership edges are created in one transaction, so a user can
// never exist without its collections.
func (s *Store) CreateUser(ctx context.Context, orgID, userName string) (user *User, err error) {
	start := time.Now()
	defer func() { s.observe("create_user", start, err) }()

	if err = s.validateArgs(createUserArgs{OrgID: orgID, UserName: userName}); err != nil {
		return nil, err
	}

	userID := uuid.New().String()

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (o:Org {org_id: $org_id})
			CREATE (u:User {
				org_id: $org_id,
				user_id: $user_id,
				user_name: $user_name,
				created_at: datetime()
			})
			CREATE (u)-[:BELONGS_TO]->(o)
			CREATE (ic:InteractionCollection {
				org_id: $org_id,
				user_id: $user_id
			})
			CREATE (mc:MemoryCollection {
				org_id: $org_id,
				user_id: $user_id
			})
			CREATE (u)-[:INTERACTIONS_IN]->(ic)
			CREATE (u)-[:HAS_MEMORIES]->(mc)
			RETURN u{.org_id, .user_id, .user_name, .created_at} as user
		`, map[string]interface{}{
			"org_id":    orgID,
			"user_id":   userID,
			"user_name": userName,
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			// zero rows: the org match failed, nothing was created
			return nil, apperrors.NotFound("organization not found")
		}
		return userFromMap(getMapFromRecord(result.Record(), "user")), nil
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("create user", err)
	}

	user = result.(*User)
	s.logger.Info("User created",
		zap.String("org_id", user.OrgID),
		zap.String("user_id", user.UserID),
	)
	return user, nil
}

// UpdateUser renames a user
func (s *Store) UpdateUser(ctx context.Context, orgID, userID, newUserName string) (user *User, err error) {
	start := time.Now()
	defer func() { s.observe("update_user", start, err) }()

	if err = s.validateArgs(updateUserArgs{OrgID: orgID, UserID: userID, NewName: newUserName}); err != nil {
		return nil, err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (u:User {org_id: $org_id, user_id: $user_id})
			SET u.user_name = $new_user_name
			RETURN u{.org_id, .user_id, .user_name, .created_at} as user
		`, map[string]interface{}{
			"org_id":        orgID,
			"user_id":       userID,
			"new_user_name": newUserName,
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, apperrors.NotFound("user not found")
		}
		return userFromMap(getMapFromRecord(result.Record(), "user")), nil
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("update user", err)
	}

	return result.(*User), nil
}

// DeleteUser removes the user node and its direct edges, leaving the
// user's interactions and memories in place. DeleteUserAndAllData is the
// full-teardown variant.
func (s *Store) DeleteUser(ctx context.Context, orgID, userID string) (err error) {
	start := time.Now()
	defer func() { s.observe("delete_user", start, err) }()

	if err = s.validateArgs(userArgs{OrgID: orgID, UserID: userID}); err != nil {
		return err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (u:User {org_id: $org_id, user_id: $user_id})
			DETACH DELETE u
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
		return apperrors.FromNeo4j("delete user", err)
	}

	s.logger.Info("User deleted",
		zap.String("org_id", orgID),
		zap.String("user_id", userID),
	)
	return nil
}

// DeleteUserAndAllData removes the user together with both collection
// anchors, every interaction and its full message chain, and every
// memory, in one transaction. Other users' data is untouched.
func (s *Store) DeleteUserAndAllData(ctx context.Context, orgID, userID string) (err error) {
	start := time.Now()
	defer func() { s.observe("delete_user_and_all_data", start, err) }()

	if err = s.validateArgs(userArgs{OrgID: orgID, UserID: userID}); err != nil {
		return err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		if err := s.deleteUserGraphTx(ctx, tx, orgID, userID); err != nil {
			return nil, err
		}

		result, err := tx.Run(ctx, `
			MATCH (u:User {org_id: $org_id, user_id: $user_id})
			OPTIONAL MATCH (u)-[:INTERACTIONS_IN]->(ic:InteractionCollection)
			OPTIONAL MATCH (u)-[:HAS_MEMORIES]->(mc:MemoryCollection)
			DETACH DELETE ic, mc, u
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
		return apperrors.FromNeo4j("delete user and all data", err)
	}

	s.logger.Info("User and all owned data deleted",
		zap.String("org_id", orgID),
		zap.String("user_id", userID),
	)
	return nil
}

// GetUser returns one user by composite key
func (s *Store) GetUser(ctx context.Context, orgID, userID string) (user *User, err error) {
	start := time.Now()
	defer func() { s.observe("get_user", start, err) }()

	if err = s.validateArgs(userArgs{OrgID: orgID, UserID: userID}); err != nil {
		return nil, err
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (u:User {org_id: $org_id, user_id: $user_id})
			RETURN u{.org_id, .user_id, .user_name, .created_at} as user
		`, map[string]interface{}{
			"org_id":  orgID,
			"user_id": userID,
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, apperrors.NotFound("user not found")
		}
		return userFromMap(getMapFromRecord(result.Record(), "user")), nil
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("get user", err)
	}

	return result.(*User), nil
}

// ListOrgUsers returns every user belonging to an organization
func (s *Store) ListOrgUsers(ctx context.Context, orgID string) (users []User, err error) {
	start := time.Now()
	defer func() { s.observe("list_org_users", start, err) }()

	if err = s.validateArgs(organizationArgs{OrgID: orgID}); err != nil {
		return nil, err
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (o:Org {org_id: $org_id})<-[:BELONGS_TO]-(u:User)
			RETURN u{.org_id, .user_id, .user_name, .created_at} as user
		`, map[string]interface{}{
			"org_id": orgID,
		})
		if err != nil {
			return nil, err
		}

		users := []User{}
		for result.Next(ctx) {
			users = append(users, *userFromMap(getMapFromRecord(result.Record(), "user")))
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
		return users, nil
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("list org users", err)
	}

	return result.([]User), nil
}
