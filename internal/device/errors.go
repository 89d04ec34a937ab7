package device

import "errors"

var (
	// ErrNoHardwareAddress is returned when the link has no MAC address.
	ErrNoHardwareAddress = errors.New("device: no hardware address")

	// ErrInvalidLabel is returned when the label cannot form a topic name.
	ErrInvalidLabel = errors.New("device: invalid label")
)
