package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Kind classifies a store error
type Kind string

const (
	// KindInvalidArgument means the caller supplied malformed input;
	// raised before any transaction starts
	KindInvalidArgument Kind = "invalid_argument"
	// KindNotFound means a referenced entity or parent is absent
	KindNotFound Kind = "not_found"
	// KindDuplicateKey means a uniqueness constraint was violated on create
	KindDuplicateKey Kind = "duplicate_key"
	// KindTimeout means the caller's deadline expired and the transaction
	// was rolled back
	KindTimeout Kind = "timeout"
	// KindStoreUnavailable means the store could not be reached
	KindStoreUnavailable Kind = "store_unavailable"
	// KindUnknown is any store-reported failure not otherwise classified
	KindUnknown Kind = "unknown"
)

// Error is the error type returned by every store operation
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// InvalidArgument reports malformed caller input
func InvalidArgument(message string) *Error {
	return newError(KindInvalidArgument, message, nil)
}

// NotFound reports an absent entity or parent
func NotFound(message string) *Error {
	return newError(KindNotFound, message, nil)
}

// DuplicateKey reports a uniqueness constraint violation
func DuplicateKey(message string, err error) *Error {
	return newError(KindDuplicateKey, message, err)
}

// Timeout reports a deadline or cancellation rollback
func Timeout(message string, err error) *Error {
	return newError(KindTimeout, message, err)
}

// StoreUnavailable reports a transport or connection failure
func StoreUnavailable(message string, err error) *Error {
	return newError(KindStoreUnavailable, message, err)
}

// Unknown reports an unclassified store failure
func Unknown(message string, err error) *Error {
	return newError(KindUnknown, message, err)
}

// KindOf returns the kind of err, or KindUnknown for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsDuplicateKey reports whether err is a duplicate-key error
func IsDuplicateKey(err error) bool {
	return KindOf(err) == KindDuplicateKey
}

// IsInvalidArgument reports whether err is an invalid-argument error
func IsInvalidArgument(err error) bool {
	return KindOf(err) == KindInvalidArgument
}

// constraintViolationCode is the Neo4j status code raised when a node-key
// or uniqueness constraint rejects a write
const constraintViolationCode = "Neo.ClientError.Schema.ConstraintValidationFailed"

// FromNeo4j classifies a driver failure for the given operation. Errors
// already carrying a Kind pass through unchanged so call sites can layer
// NotFound decisions on top of transaction plumbing.
func FromNeo4j(operation string, err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if stderrors.As(err, &e) {
		return e
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return Timeout(fmt.Sprintf("%s: deadline exceeded", operation), err)
	}
	if stderrors.Is(err, context.Canceled) {
		return Timeout(fmt.Sprintf("%s: cancelled", operation), err)
	}

	var neoErr *neo4j.Neo4jError
	if stderrors.As(err, &neoErr) {
		if neoErr.Code == constraintViolationCode ||
			strings.Contains(neoErr.Code, "ConstraintValidation") {
			return DuplicateKey(fmt.Sprintf("%s: key already exists", operation), err)
		}
		return Unknown(fmt.Sprintf("%s failed", operation), err)
	}

	if neo4j.IsConnectivityError(err) {
		return StoreUnavailable(fmt.Sprintf("%s: store unreachable", operation), err)
	}

	return Unknown(fmt.Sprintf("%s failed", operation), err)
}
