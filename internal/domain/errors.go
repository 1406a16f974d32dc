package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a collaborative session id is unknown or expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidToken is returned when a token matches neither the host nor a participant.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrTestNotFound indicates the named test is absent from the tests mapping.
	ErrTestNotFound = errors.New("test not found")
	// ErrIndexOutOfRange is returned by document operations given a section,
	// question, or choice index outside the document's bounds. Callers treat
	// it as a no-op rather than a fatal condition.
	ErrIndexOutOfRange = errors.New("index out of range")
)
