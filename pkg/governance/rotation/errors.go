package rotation

import "errors"

var (
	// ErrNotFound indicates the rotation ID does not resolve to any record.
	ErrNotFound = errors.New("rotation not found")

	// ErrInvalidState indicates an operation illegal for the rotation's
	// current status, such as executing one that is not yet approved.
	ErrInvalidState = errors.New("invalid rotation state")

	// ErrNoticePeriodNotElapsed indicates execution before the effective date.
	ErrNoticePeriodNotElapsed = errors.New("rotation notice period has not elapsed")

	// ErrDuplicateApproval indicates the signer already endorsed the rotation.
	ErrDuplicateApproval = errors.New("signer has already approved this rotation")
)
