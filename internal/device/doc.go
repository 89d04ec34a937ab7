// Package device builds the beacon's identity.
//
// The identity is a fixed label with the link's hardware address appended,
// for example "myDevice_AA:BB:CC:DD:EE:FF". It is used as the MQTT client ID
// and as the root of the heartbeat topics, so it is built once at startup
// and never changes.
package device
