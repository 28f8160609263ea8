package domain

import "errors"

var (
	// ErrEmptyQuery indicates a request with a missing or blank query.
	ErrEmptyQuery = errors.New("query must not be empty")
	// ErrCollaboratorTimeout indicates an external collaborator call timed out.
	ErrCollaboratorTimeout = errors.New("collaborator call timed out")
	// ErrCollaboratorFailure indicates a non-timeout collaborator call failure.
	ErrCollaboratorFailure = errors.New("collaborator call failed")
	// ErrMalformedResponse indicates an unparseable collaborator response.
	ErrMalformedResponse = errors.New("malformed collaborator response")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("resource not found")
)
