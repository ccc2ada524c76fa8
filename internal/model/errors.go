package model

import "errors"

// Lookup failures are classified so the resolver can log the kind and skip
// the address without aborting the poll cycle.
var (
	// ErrNotFound indicates an empty address, premise, or account lookup.
	ErrNotFound = errors.New("address not found")

	// ErrAuthFailure indicates the token endpoint returned no access token.
	ErrAuthFailure = errors.New("authentication failed")

	// ErrUpstream indicates a non-success HTTP status from the source.
	ErrUpstream = errors.New("upstream request failed")

	// ErrDecode indicates a malformed upstream payload.
	ErrDecode = errors.New("malformed upstream payload")

	// ErrNoUpcomingDate indicates the search exhausted its budget or the
	// calendar held no date at or after today.
	ErrNoUpcomingDate = errors.New("no upcoming collection date")
)
