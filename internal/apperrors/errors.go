// Package apperrors holds the sentinel errors shared between the data layer,
// services and HTTP handlers.
package apperrors

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist, or
	// when the question corpus is empty.
	ErrNotFound = errors.New("record not found")

	// ErrNoMoreQuestions is the terminal state of forward navigation. It is
	// not a failure: the caller walked past the end of the corpus.
	ErrNoMoreQuestions = errors.New("no more questions")

	// ErrRateLimited is returned when too many magic links were requested
	// for one email within the window.
	ErrRateLimited = errors.New("too many requests")

	// Magic-link verification failures. Each maps to a distinct error code
	// on the login redirect.
	ErrInvalidToken = errors.New("invalid magic link")
	ErrTokenExpired = errors.New("magic link expired")
	ErrTokenUsed    = errors.New("magic link already used")
)
