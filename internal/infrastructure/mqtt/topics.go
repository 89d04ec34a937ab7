package mqtt

import (
	"github.com/nerrad567/netbeacon/internal/infrastructure/config"
)

// statusSuffix is appended to the client ID for the retained status topic.
const statusSuffix = "/status"

// Topics provides builders for the beacon's MQTT topics.
// Using these helpers keeps topic naming consistent between the monitor,
// the journal and the development broker.
//
//	topics := mqtt.NewTopics(cfg.Topics)
//	topics.Heartbeat("myDevice_AA:BB:CC:DD:EE:FF")
//	// Returns: "myDevice_AA:BB:CC:DD:EE:FF"
type Topics struct {
	cfg config.TopicsConfig
}

// NewTopics returns a topic builder for the configured topic names.
func NewTopics(cfg config.TopicsConfig) Topics {
	return Topics{cfg: cfg}
}

// Announce returns the topic the connect announcement goes to.
//
// Example: outTopic
func (t Topics) Announce() string {
	return t.cfg.Announce
}

// Inbound returns the topic subscribed on every session.
//
// Example: inTopic
func (t Topics) Inbound() string {
	return t.cfg.Inbound
}

// Heartbeat returns the topic carrying the formatted local time.
// It is the device identity itself.
//
// Example: myDevice_AA:BB:CC:DD:EE:FF
func (t Topics) Heartbeat(deviceID string) string {
	return deviceID
}

// IPAddr returns the topic carrying the device's IP address.
//
// Example: myDevice_AA:BB:CC:DD:EE:FF/IPaddr
func (t Topics) IPAddr(deviceID string) string {
	return deviceID + t.cfg.IPSuffix
}

// StatusTopic returns the retained online/offline status topic for a client.
//
// Example: myDevice_AA:BB:CC:DD:EE:FF/status
func StatusTopic(clientID string) string {
	return clientID + statusSuffix
}
