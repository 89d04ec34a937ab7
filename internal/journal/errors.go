package journal

import "errors"

var (
	// ErrNoSession is returned when recording a message without a session.
	ErrNoSession = errors.New("journal: session id is required")

	// ErrSessionNotFound is returned when ending an unknown session.
	ErrSessionNotFound = errors.New("journal: session not found")
)
