package graph

import (
	"context"
	"encoding/json"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ============================================================================
// Helper Functions
// ============================================================================

func consumeResult(ctx context.Context, result neo4j.ResultWithContext) error {
	_, err := result.Consume(ctx)
	return err
}

func mergeParams(base, extra map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getMapFromRecord(record *neo4j.Record, key string) map[string]interface{} {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return nil
	}
	if m, ok := val.(map[string]interface{}); ok {
		return m
	}
	return nil
}

func getStringFromMap(m map[string]interface{}, key string) string {
	val, ok := m[key]
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getInt64FromMap(m map[string]interface{}, key string) int64 {
	val, ok := m[key]
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return i
	}
	if i, ok := val.(int); ok {
		return int64(i)
	}
	return 0
}

func getTimeFromMap(m map[string]interface{}, key string) time.Time {
	val, ok := m[key]
	if !ok || val == nil {
		return time.Time{}
	}
	// Neo4j datetime values come as time.Time
	if t, ok := val.(time.Time); ok {
		return t
	}
	return time.Time{}
}

// ============================================================================
// Message source snapshots
// ============================================================================

// Message snapshots are stored as one JSON string property because graph
// properties cannot hold lists of maps.

func encodeMessageSources(sources []MessageBlock) (string, error) {
	if sources == nil {
		sources = []MessageBlock{}
	}
	data, err := json.Marshal(sources)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMessageSources(raw interface{}) []MessageBlock {
	str, ok := raw.(string)
	if !ok || str == "" {
		return []MessageBlock{}
	}
	var sources []MessageBlock
	if err := json.Unmarshal([]byte(str), &sources); err != nil {
		return []MessageBlock{}
	}
	return sources
}

// ============================================================================
// Node mapping
// ============================================================================

func organizationFromMap(m map[string]interface{}) *Organization {
	return &Organization{
		OrgID:     getStringFromMap(m, "org_id"),
		OrgName:   getStringFromMap(m, "org_name"),
		CreatedAt: getTimeFromMap(m, "created_at"),
	}
}

func userFromMap(m map[string]interface{}) *User {
	return &User{
		OrgID:     getStringFromMap(m, "org_id"),
		UserID:    getStringFromMap(m, "user_id"),
		UserName:  getStringFromMap(m, "user_name"),
		CreatedAt: getTimeFromMap(m, "created_at"),
	}
}

func agentFromMap(m map[string]interface{}) *Agent {
	return &Agent{
		OrgID:      getStringFromMap(m, "org_id"),
		UserID:     getStringFromMap(m, "user_id"),
		AgentID:    getStringFromMap(m, "agent_id"),
		AgentLabel: getStringFromMap(m, "agent_label"),
		CreatedAt:  getTimeFromMap(m, "created_at"),
	}
}

func messageFromMap(m map[string]interface{}) MessageBlock {
	return MessageBlock{
		Role:        getStringFromMap(m, "role"),
		Content:     getStringFromMap(m, "content"),
		MsgPosition: getInt64FromMap(m, "msg_position"),
	}
}

func memoryFromMap(m map[string]interface{}) *Memory {
	return &Memory{
		OrgID:          getStringFromMap(m, "org_id"),
		UserID:         getStringFromMap(m, "user_id"),
		AgentID:        getStringFromMap(m, "agent_id"),
		InteractionID:  getStringFromMap(m, "interaction_id"),
		MemoryID:       getStringFromMap(m, "memory_id"),
		Memory:         getStringFromMap(m, "memory"),
		ObtainedAt:     getTimeFromMap(m, "obtained_at"),
		MessageSources: decodeMessageSources(m["message_sources"]),
	}
}
