package mqtt

import "fmt"

// State is a broker connection status code.
//
// The values follow the convention used by embedded MQTT clients so that
// reconnect diagnostics ("failed, rc=-2") read the same across devices.
type State int

// Client-side states are negative; positive values are CONNACK return codes.
const (
	StateConnectionTimeout State = -4
	StateConnectionLost    State = -3
	StateConnectFailed     State = -2
	StateDisconnected      State = -1
	StateConnected         State = 0

	StateBadProtocol    State = 1
	StateBadClientID    State = 2
	StateUnavailable    State = 3
	StateBadCredentials State = 4
	StateUnauthorized   State = 5
)

// String returns a short description of the state.
func (s State) String() string {
	switch s {
	case StateConnectionTimeout:
		return "connection timeout"
	case StateConnectionLost:
		return "connection lost"
	case StateConnectFailed:
		return "connect failed"
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateBadProtocol:
		return "bad protocol"
	case StateBadClientID:
		return "bad client id"
	case StateUnavailable:
		return "server unavailable"
	case StateBadCredentials:
		return "bad credentials"
	case StateUnauthorized:
		return "unauthorized"
	default:
		return fmt.Sprintf("state %d", int(s))
	}
}
