package store

import "errors"

// Sentinel errors returned by Store methods, checked with errors.Is at the
// tool-handler layer and converted to the tool error envelope there.
var (
	ErrNotFound            = errors.New("not found")
	ErrConversationClosed  = errors.New("conversation is not active")
	ErrAlreadyQueued       = errors.New("message already has a queue entry")
	ErrForbiddenTransition = errors.New("forbidden status transition")
)
