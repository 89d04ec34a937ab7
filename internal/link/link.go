package link

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Status is the association state of a link.
type Status int

const (
	StatusIdle Status = iota
	StatusDisconnected
	StatusConnected
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusDisconnected:
		return "disconnected"
	case StatusConnected:
		return "connected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Credentials are the network name and secret used to join.
type Credentials struct {
	SSID     string
	Password string
}

// Link is a network link the beacon joins once and then queries.
type Link interface {
	// Join starts association. It does not wait for the link to come up.
	Join(ctx context.Context, creds Credentials) error

	// Status reports the current association state.
	Status() Status

	// LocalIP returns the link's IPv4 address, or nil when it has none.
	LocalIP() net.IP

	// HardwareAddr returns the link's hardware (MAC) address.
	HardwareAddr() net.HardwareAddr
}

// Await polls l every poll interval until it is connected or timeout passes.
// onPoll, if not nil, is called after every unsuccessful poll.
func Await(ctx context.Context, l Link, poll, timeout time.Duration, onPoll func()) error {
	if l.Status() == StatusConnected {
		return nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for link: %w", ctx.Err())
		case <-deadline.C:
			if l.Status() == StatusConnected {
				return nil
			}
			return fmt.Errorf("%w after %v", ErrTimeout, timeout)
		case <-ticker.C:
			if l.Status() == StatusConnected {
				return nil
			}
			if onPoll != nil {
				onPoll()
			}
		}
	}
}
