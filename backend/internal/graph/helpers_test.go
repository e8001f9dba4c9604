package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeMessageSources(t *testing.T) {
	sources := []MessageBlock{
		{Role: "user", Content: "what's the capital of France?", MsgPosition: 0},
		{Role: "assistant", Content: "Paris.", MsgPosition: 1},
	}

	encoded, err := encodeMessageSources(sources)
	assert.NoError(t, err)
	assert.NotEmpty(t, encoded)

	decoded := decodeMessageSources(encoded)
	assert.Equal(t, sources, decoded)
}

func TestEncodeMessageSources_NilBecomesEmptyList(t *testing.T) {
	encoded, err := encodeMessageSources(nil)
	assert.NoError(t, err)
	assert.Equal(t, "[]", encoded)
}

func TestDecodeMessageSources_BadInput(t *testing.T) {
	assert.Empty(t, decodeMessageSources(nil))
	assert.Empty(t, decodeMessageSources(""))
	assert.Empty(t, decodeMessageSources(42))
	assert.Empty(t, decodeMessageSources("{not json"))
}

func TestMergeParams(t *testing.T) {
	base := map[string]interface{}{"org_id": "o1", "user_id": "u1"}
	merged := mergeParams(base, map[string]interface{}{"user_id": "u2", "role": "user"})

	assert.Equal(t, "o1", merged["org_id"])
	assert.Equal(t, "u2", merged["user_id"])
	assert.Equal(t, "user", merged["role"])
	// base is untouched
	assert.Equal(t, "u1", base["user_id"])
}

func TestGetStringFromMap(t *testing.T) {
	m := map[string]interface{}{"name": "acme", "count": 3}
	assert.Equal(t, "acme", getStringFromMap(m, "name"))
	assert.Equal(t, "", getStringFromMap(m, "count"))
	assert.Equal(t, "", getStringFromMap(m, "missing"))
	assert.Equal(t, "", getStringFromMap(map[string]interface{}{"name": nil}, "name"))
}

func TestGetInt64FromMap(t *testing.T) {
	m := map[string]interface{}{"a": int64(7), "b": 8, "c": "nine"}
	assert.Equal(t, int64(7), getInt64FromMap(m, "a"))
	assert.Equal(t, int64(8), getInt64FromMap(m, "b"))
	assert.Equal(t, int64(0), getInt64FromMap(m, "c"))
	assert.Equal(t, int64(0), getInt64FromMap(m, "missing"))
}

func TestGetTimeFromMap(t *testing.T) {
	now := time.Now()
	m := map[string]interface{}{"created_at": now, "bad": "2026-01-01"}
	assert.Equal(t, now, getTimeFromMap(m, "created_at"))
	assert.True(t, getTimeFromMap(m, "bad").IsZero())
	assert.True(t, getTimeFromMap(m, "missing").IsZero())
}

func TestMemoryFromMap(t *testing.T) {
	obtained := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	m := map[string]interface{}{
		"org_id":          "o1",
		"user_id":         "u1",
		"agent_id":        "a1",
		"interaction_id":  "i1",
		"memory_id":       "m1",
		"memory":          "likes espresso",
		"obtained_at":     obtained,
		"message_sources": `[{"role":"user","content":"I like espresso","msg_position":0}]`,
	}

	memory := memoryFromMap(m)
	assert.Equal(t, "o1", memory.OrgID)
	assert.Equal(t, "m1", memory.MemoryID)
	assert.Equal(t, "likes espresso", memory.Memory)
	assert.Equal(t, obtained, memory.ObtainedAt)
	assert.Len(t, memory.MessageSources, 1)
	assert.Equal(t, "user", memory.MessageSources[0].Role)
}

func TestMessageFromMap(t *testing.T) {
	msg := messageFromMap(map[string]interface{}{
		"role":         "assistant",
		"content":      "hello",
		"msg_position": int64(2),
	})
	assert.Equal(t, "assistant", msg.Role)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, int64(2), msg.MsgPosition)
}
