package monitor

import "errors"

// ExitLinkTimeout is the process exit code after ErrLinkTimeout.
// The supervisor treats it like any failure and restarts the beacon.
const ExitLinkTimeout = 3

var (
	// ErrLinkTimeout is returned by Setup when the network link does not come up.
	ErrLinkTimeout = errors.New("monitor: network link did not come up")

	// ErrPayloadTooLarge is returned when the formatted time exceeds heartbeat.max_payload.
	ErrPayloadTooLarge = errors.New("monitor: heartbeat payload too large")

	// ErrNotSetUp is returned by Step and Run before Setup has succeeded.
	ErrNotSetUp = errors.New("monitor: Setup has not completed")
)
