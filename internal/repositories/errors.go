package repositories

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	// ErrNotClaimable means another run holds a live claim on the candidate,
	// or the candidate already reached a terminal state.
	ErrNotClaimable = errors.New("candidate is not claimable")
)
