package engine

import (
	"errors"
	"fmt"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// NavError is an error absorbed by the engine while processing an event.
//
// None of these end the session. They are logged, attached to the
// transition record and kept for inspection through Engine.Errors().
type NavError struct {
	// Code identifies the error category.
	Code NavErrorCode

	// Message is a human-readable description.
	Message string

	// Token is the token involved, if any.
	Token ir.Token

	// Depth is the requested depth for protocol violations.
	Depth int

	// Details contains additional context.
	Details map[string]string
}

// NavErrorCode categorizes navigation errors.
type NavErrorCode string

const (
	// ErrCodeProtocolViolation: open skipped a depth, named an unknown
	// level or flag, or a confirmation was requested while one is live.
	ErrCodeProtocolViolation NavErrorCode = "PROTOCOL_VIOLATION"

	// ErrCodeStaleResolution: answer arrived after the confirmation settled.
	ErrCodeStaleResolution NavErrorCode = "STALE_RESOLUTION"

	// ErrCodeOrphanedToken: a notification carried a token outside every
	// known namespace.
	ErrCodeOrphanedToken NavErrorCode = "ORPHANED_TOKEN"
)

// ErrStopped is returned by pending confirmations created after Stop.
var ErrStopped = errors.New("engine stopped")

// Error implements the error interface.
func (e *NavError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("%s: %s (token=%s)", e.Code, e.Message, e.Token)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code NavErrorCode) bool {
	var ne *NavError
	if errors.As(err, &ne) {
		return ne.Code == code
	}
	return false
}

// IsProtocolViolation returns true if err is a protocol violation.
func IsProtocolViolation(err error) bool {
	return hasCode(err, ErrCodeProtocolViolation)
}

// IsStaleResolution returns true if err is a stale resolution.
func IsStaleResolution(err error) bool {
	return hasCode(err, ErrCodeStaleResolution)
}

// IsOrphanedToken returns true if err is an orphaned token.
func IsOrphanedToken(err error) bool {
	return hasCode(err, ErrCodeOrphanedToken)
}

// NewProtocolViolation creates a NavError for a rejected request.
func NewProtocolViolation(token ir.Token, depth int, format string, args ...any) *NavError {
	return &NavError{
		Code:    ErrCodeProtocolViolation,
		Message: fmt.Sprintf(format, args...),
		Token:   token,
		Depth:   depth,
	}
}

// NewStaleResolution creates a NavError for a late answer.
func NewStaleResolution(pendingID string) *NavError {
	ne := &NavError{
		Code:    ErrCodeStaleResolution,
		Message: "no live confirmation to answer",
	}
	if pendingID != "" {
		ne.Details = map[string]string{"pending_id": pendingID}
	}
	return ne
}

// NewOrphanedToken creates a NavError for an unrecognized token.
func NewOrphanedToken(token ir.Token, index int) *NavError {
	return &NavError{
		Code:    ErrCodeOrphanedToken,
		Message: "token matches no known namespace, treated as root",
		Token:   token,
		Details: map[string]string{"index": fmt.Sprintf("%d", index)},
	}
}
