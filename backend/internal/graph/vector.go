package graph

import "context"

// VectorIndex is the external similarity-search collaborator that holds
// embeddings for memories. The store never writes to it; callers are
// responsible for purging vector entries whenever the matching graph
// deletes run. The two stores are only best-effort consistent.
type VectorIndex interface {
	DeleteMemory(ctx context.Context, orgID, userID, memoryID string) error
	DeleteAllUserMemories(ctx context.Context, orgID, userID string) error
}
