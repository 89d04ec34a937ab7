package device

import (
	"fmt"
	"net"
	"strings"
)

// maxClientIDLength guards against a misconfigured label. MQTT 3.1.1 only
// guarantees 23 bytes but common brokers accept far longer IDs.
const maxClientIDLength = 128

// Identity is the device's label plus hardware address.
type Identity struct {
	label string
	mac   net.HardwareAddr
}

// NewIdentity builds an identity from a label and a hardware address.
func NewIdentity(label string, mac net.HardwareAddr) (Identity, error) {
	if label == "" || strings.ContainsAny(label, "+#") {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	if len(mac) == 0 {
		return Identity{}, ErrNoHardwareAddress
	}

	id := Identity{label: label, mac: append(net.HardwareAddr(nil), mac...)}
	if len(id.ID()) > maxClientIDLength {
		return Identity{}, fmt.Errorf("%w: identity longer than %d bytes", ErrInvalidLabel, maxClientIDLength)
	}
	return id, nil
}

// ID returns the label with the upper-case MAC appended.
func (i Identity) ID() string {
	return i.label + FormatMAC(i.mac)
}

// Label returns the identity prefix.
func (i Identity) Label() string {
	return i.label
}

// MAC returns the hardware address in upper-case colon notation.
func (i Identity) MAC() string {
	return FormatMAC(i.mac)
}

func (i Identity) String() string {
	return i.ID()
}

// FormatMAC renders a hardware address as AA:BB:CC:DD:EE:FF.
func FormatMAC(mac net.HardwareAddr) string {
	return strings.ToUpper(mac.String())
}
