package graph

import "context"

// GraphStore groups every operation the persistence core exposes. Callers
// that only need a slice of the surface can declare their own narrower
// interface; *Store satisfies any subset.
type GraphStore interface {
	Setup(ctx context.Context) error
	Close(ctx context.Context) error
	VectorIndex() VectorIndex

	CreateOrganization(ctx context.Context, orgName string) (*Organization, error)
	UpdateOrganization(ctx context.Context, orgID, newOrgName string) (*Organization, error)
	DeleteOrganization(ctx context.Context, orgID string) error
	GetOrganization(ctx context.Context, orgID string) (*Organization, error)
	ListOrganizations(ctx context.Context) ([]Organization, error)

	CreateUser(ctx context.Context, orgID, userName string) (*User, error)
	UpdateUser(ctx context.Context, orgID, userID, newUserName string) (*User, error)
	DeleteUser(ctx context.Context, orgID, userID string) error
	DeleteUserAndAllData(ctx context.Context, orgID, userID string) error
	GetUser(ctx context.Context, orgID, userID string) (*User, error)
	ListOrgUsers(ctx context.Context, orgID string) ([]User, error)

	CreateAgent(ctx context.Context, orgID, agentLabel string, userID *string) (*Agent, error)
	UpdateAgent(ctx context.Context, orgID, agentID, newAgentLabel string) (*Agent, error)
	DeleteAgent(ctx context.Context, orgID, agentID string) error
	GetAgent(ctx context.Context, orgID, agentID string) (*Agent, error)
	ListOrgAgents(ctx context.Context, orgID string) ([]Agent, error)
	ListUserAgents(ctx context.Context, orgID, userID string) ([]Agent, error)

	CreateInteraction(ctx context.Context, orgID, userID, agentID, interactionID string) (*Interaction, error)
	GetInteraction(ctx context.Context, orgID, userID, interactionID string) (*Interaction, error)
	ListUserInteractions(ctx context.Context, orgID, userID string, skip, limit int) ([]Interaction, error)
	SaveInteractionWithMemories(ctx context.Context, interaction *Interaction, memories []Memory) error
	UpdateInteractionAndMemories(ctx context.Context, interaction *Interaction, memories []Memory) error
	DeleteInteraction(ctx context.Context, orgID, userID, interactionID string) error
	DeleteAllUserInteractionsAndMemories(ctx context.Context, orgID, userID string) error

	AddMessageToInteraction(ctx context.Context, orgID, userID, interactionID string, message MessageBlock) error
	ReadChain(ctx context.Context, orgID, userID, interactionID string) ([]MessageBlock, error)

	CreateMemory(ctx context.Context, orgID, userID, agentID, interactionID, memoryID, text string, sources []MessageBlock) (*Memory, error)
	GetMemory(ctx context.Context, orgID, userID, memoryID string) (*Memory, error)
	ListUserMemories(ctx context.Context, orgID, userID string, agentID *string, skip, limit int) ([]Memory, error)
	DeleteMemory(ctx context.Context, orgID, userID, memoryID string) error
	DeleteAllUserMemories(ctx context.Context, orgID, userID string) error
	FetchMemoriesResolved(ctx context.Context, orgID, userID string, memoryIDs []string) ([]Memory, error)
	FetchMemoriesResolvedBatch(ctx context.Context, requests []MemoryRef) ([]Memory, error)
}

var _ GraphStore = (*Store)(nil)
