package link

import "errors"

var (
	// ErrTimeout is returned when the link does not come up within the join timeout.
	ErrTimeout = errors.New("link: timed out waiting for connection")

	// ErrNoInterface is returned when no usable network interface exists.
	ErrNoInterface = errors.New("link: no usable network interface")

	// ErrJoinFailed is returned when the join command fails.
	ErrJoinFailed = errors.New("link: join command failed")
)
