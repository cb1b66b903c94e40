package conversation

import "errors"

// The error taxonomy of the conversation core. The transport layer maps each
// sentinel onto an HTTP status; everything else inside the pipeline stays an
// opaque internal error.
var (
	// ErrValidation marks malformed, too-small, or unsupported caller input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an unknown session, turn, or user.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState marks an illegal state-machine transition, including any
	// mutation attempted after a terminal state.
	ErrInvalidState = errors.New("invalid state")
)
