package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := NotFound("user not found")
	assert.Equal(t, "[not_found] user not found", err.Error())

	cause := stderrors.New("socket closed")
	wrapped := StoreUnavailable("store unreachable", cause)
	assert.Equal(t, "[store_unavailable] store unreachable: socket closed", wrapped.Error())
	assert.Equal(t, cause, stderrors.Unwrap(wrapped))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("missing")))
	assert.Equal(t, KindInvalidArgument, KindOf(InvalidArgument("bad input")))
	assert.Equal(t, KindUnknown, KindOf(stderrors.New("some foreign error")))

	// kind survives wrapping
	wrapped := fmt.Errorf("operation failed: %w", NotFound("missing"))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("missing")))
	assert.False(t, IsNotFound(InvalidArgument("bad")))
	assert.True(t, IsDuplicateKey(DuplicateKey("exists", nil)))
	assert.True(t, IsInvalidArgument(InvalidArgument("bad")))
}

func TestFromNeo4j_Nil(t *testing.T) {
	assert.Nil(t, FromNeo4j("get user", nil))
}

func TestFromNeo4j_PassThrough(t *testing.T) {
	original := NotFound("interaction not found")
	classified := FromNeo4j("get interaction", original)
	assert.Equal(t, original, classified)

	wrapped := fmt.Errorf("tx failed: %w", original)
	classified = FromNeo4j("get interaction", wrapped)
	assert.Equal(t, KindNotFound, classified.Kind)
}

func TestFromNeo4j_ContextErrors(t *testing.T) {
	classified := FromNeo4j("create user", context.DeadlineExceeded)
	assert.Equal(t, KindTimeout, classified.Kind)

	classified = FromNeo4j("create user", context.Canceled)
	assert.Equal(t, KindTimeout, classified.Kind)

	classified = FromNeo4j("create user", fmt.Errorf("tx: %w", context.DeadlineExceeded))
	assert.Equal(t, KindTimeout, classified.Kind)
}

func TestFromNeo4j_ConstraintViolation(t *testing.T) {
	neoErr := &neo4j.Neo4jError{
		Code: "Neo.ClientError.Schema.ConstraintValidationFailed",
		Msg:  "Node already exists",
	}
	classified := FromNeo4j("create organization", neoErr)
	assert.Equal(t, KindDuplicateKey, classified.Kind)
}

func TestFromNeo4j_OtherNeo4jError(t *testing.T) {
	neoErr := &neo4j.Neo4jError{
		Code: "Neo.ClientError.Statement.SyntaxError",
		Msg:  "Invalid input",
	}
	classified := FromNeo4j("list users", neoErr)
	assert.Equal(t, KindUnknown, classified.Kind)
}

func TestFromNeo4j_UnclassifiedError(t *testing.T) {
	classified := FromNeo4j("get memory", stderrors.New("something odd"))
	assert.Equal(t, KindUnknown, classified.Kind)
}
