package approval

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the request ID does not resolve to any record.
	ErrNotFound = errors.New("approval request not found")

	// ErrNotPending indicates a vote against a request that has already
	// resolved. Terminal requests never change.
	ErrNotPending = errors.New("approval request is not pending")

	// ErrExpired indicates the request's deadline has passed. The request is
	// transitioned to expired as a side effect of the access that observed it.
	ErrExpired = errors.New("approval request has expired")

	// ErrDuplicateVote indicates the signer has already voted on the request.
	ErrDuplicateVote = errors.New("signer has already voted on this request")

	// ErrThresholdUnreachable indicates a threshold exceeding the number of
	// currently active signers; such a request could never resolve approved.
	ErrThresholdUnreachable = errors.New("threshold exceeds active signer count")
)

// BlockedError is returned by EnforceApproval when the named request is not
// approved. It carries the current status and vote tally so callers can render
// "N of M approvals" to an operator. A blocked pending request signals a
// legitimate in-flight business decision, not a failure.
type BlockedError struct {
	RequestID    string
	Description  string
	Status       Status
	ApproveCount int
	RejectCount  int
	Threshold    int
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("governance approval not reached for %s: status=%s approvals=%d/%d",
		e.Description, e.Status, e.ApproveCount, e.Threshold)
}
