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
// Organization Operations
// ============================================================================

type createOrganizationArgs struct {
	OrgName string `validate:"required"`
}

type organizationArgs struct {
	OrgID string `validate:"required"`
}

type updateOrganizationArgs struct {
	OrgID   string `validate:"required"`
	NewName string `validate:"required"`
}

// CreateOrganization creates an organization with a generated id
func (s *Store) CreateOrganization(ctx context.Context, orgName string) (org *Organization, err error) {
	start := time.Now()
	defer func() { s.observe("create_organization", start, err) }()

	if err = s.validateArgs(createOrganizationArgs{OrgName: orgName}); err != nil {
		return nil, err
	}

	orgID := uuid.New().String()

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			CREATE (o:Org {
				org_id: $org_id,
				org_name: $org_name,
				created_at: datetime()
			})
			RETURN o{.org_id, .org_name, .created_at} as org
		`, map[string]interface{}{
			"org_id":   orgID,
			"org_name": orgName,
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, apperrors.Unknown("failed to create organization", nil)
		}
		return organizationFromMap(getMapFromRecord(result.Record(), "org")), nil
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("create organization", err)
	}

	org = result.(*Organization)
	s.logger.Info("Organization created", zap.String("org_id", org.OrgID))
	return org, nil
}

// UpdateOrganization renames an organization
func (s *Store) UpdateOrganization(ctx context.Context, orgID, newOrgName string) (org *Organization, err error) {
	start := time.Now()
	defer func() { s.observe("update_organization", start, err) }()

	if err = s.validateArgs(updateOrganizationArgs{OrgID: orgID, NewName: newOrgName}); err != nil {
		return nil, err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (o:Org {org_id: $org_id})
			SET o.org_name = $new_org_name
			RETURN o{.org_id, .org_name, .created_at} as org
		`, map[string]interface{}{
			"org_id":       orgID,
			"new_org_name": newOrgName,
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, apperrors.NotFound("organization not found")
		}
		return organizationFromMap(getMapFromRecord(result.Record(), "org")), nil
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("update organization", err)
	}

	return result.(*Organization), nil
}

// DeleteOrganization removes the organization node and its direct edges.
// It does not cascade to the organization's users or agents.
func (s *Store) DeleteOrganization(ctx context.Context, orgID string) (err error) {
	start := time.Now()
	defer func() { s.observe("delete_organization", start, err) }()

	if err = s.validateArgs(organizationArgs{OrgID: orgID}); err != nil {
		return err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (o:Org {org_id: $org_id})
			DETACH DELETE o
		`, map[string]interface{}{
			"org_id": orgID,
		})
		if err != nil {
			return nil, err
		}
		return nil, consumeResult(ctx, result)
	})
	if err != nil {
		return apperrors.FromNeo4j("delete organization", err)
	}

	s.logger.Info("Organization deleted", zap.String("org_id", orgID))
	return nil
}

// GetOrganization returns one organization by id
func (s *Store) GetOrganization(ctx context.Context, orgID string) (org *Organization, err error) {
	start := time.Now()
	defer func() { s.observe("get_organization", start, err) }()

	if err = s.validateArgs(organizationArgs{OrgID: orgID}); err != nil {
		return nil, err
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (o:Org {org_id: $org_id})
			RETURN o{.org_id, .org_name, .created_at} as org
		`, map[string]interface{}{
			"org_id": orgID,
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, apperrors.NotFound("organization not found")
		}
		return organizationFromMap(getMapFromRecord(result.Record(), "org")), nil
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("get organization", err)
	}

	return result.(*Organization), nil
}

// ListOrganizations returns every organization
func (s *Store) ListOrganizations(ctx context.Context) (orgs []Organization, err error) {
	start := time.Now()
	defer func() { s.observe("list_organizations", start, err) }()

	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (o:Org)
			RETURN o{.org_id, .org_name, .created_at} as org
		`, nil)
		if err != nil {
			return nil, err
		}

		orgs := []Organization{}
		for result.Next(ctx) {
			orgs = append(orgs, *organizationFromMap(getMapFromRecord(result.Record(), "org")))
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
		return orgs, nil
	})
	if err != nil {
		return nil, apperrors.FromNeo4j("list organizations", err)
	}

	return result.([]Organization), nil
}
