package signer

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the signer ID does not resolve to any record.
	ErrNotFound = errors.New("signer not found")

	// ErrUnknownRole indicates a role outside the recognized set.
	ErrUnknownRole = errors.New("unknown signer role")

	// ErrInactiveSigner indicates the signer exists but has been deactivated.
	ErrInactiveSigner = errors.New("signer is not active")

	// ErrUnauthorized indicates the signer's role may not initiate the action.
	ErrUnauthorized = errors.New("role not authorized for action")
)

// InsufficientSignersError indicates a deactivation that would leave fewer
// active signers than the configured minimum.
type InsufficientSignersError struct {
	ActiveCount    int
	MinimumSigners int
}

func (e *InsufficientSignersError) Error() string {
	return fmt.Sprintf("deactivation would leave %d active signers, minimum is %d",
		e.ActiveCount-1, e.MinimumSigners)
}
