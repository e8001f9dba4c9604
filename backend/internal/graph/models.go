package graph

import "time"

// Organization is the root of a tenant scope
type Organization struct {
	OrgID     string    `json:"org_id"`
	OrgName   string    `json:"org_name"`
	CreatedAt time.Time `json:"created_at"`
}

// User belongs to exactly one organization and owns one interaction
// collection and one memory collection
type User struct {
	OrgID     string    `json:"org_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Agent belongs to an organization and optionally to a user
type Agent struct {
	OrgID      string    `json:"org_id"`
	UserID     string    `json:"user_id,omitempty"`
	AgentID    string    `json:"agent_id"`
	AgentLabel string    `json:"agent_label"`
	CreatedAt  time.Time `json:"created_at"`
}

// MessageBlock is a single turn in an interaction's message chain. It has
// no identity outside the chain it belongs to.
type MessageBlock struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	MsgPosition int64  `json:"msg_position"`
}

// Memory is a fact distilled from an interaction. MessageSources carries
// frozen copies of the messages that produced it, not references.
type Memory struct {
	OrgID          string         `json:"org_id"`
	UserID         string         `json:"user_id"`
	AgentID        string         `json:"agent_id"`
	InteractionID  string         `json:"interaction_id"`
	MemoryID       string         `json:"memory_id"`
	Memory         string         `json:"memory"`
	ObtainedAt     time.Time      `json:"obtained_at"`
	MessageSources []MessageBlock `json:"message_sources"`
}

// Interaction is one conversation: an ordered message chain plus the
// memories distilled from it
type Interaction struct {
	OrgID         string         `json:"org_id"`
	UserID        string         `json:"user_id"`
	AgentID       string         `json:"agent_id"`
	InteractionID string         `json:"interaction_id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Messages      []MessageBlock `json:"messages"`
	Memories      []Memory       `json:"memories"`
}

// MemoryRef addresses one memory for batch resolution
type MemoryRef struct {
	OrgID    string `json:"org_id"`
	UserID   string `json:"user_id"`
	MemoryID string `json:"memory_id"`
}
