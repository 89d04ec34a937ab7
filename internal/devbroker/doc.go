// Package devbroker runs an embedded MQTT broker for local use.
//
// It stands in for the private broker a beacon normally reports to:
// `netbeacon broker` serves it on the configured port, and the tests start
// one on a free port to exercise the real client end to end.
//
// Every publish passing through the broker is handed to registered
// observers, which is how tests assert on heartbeat traffic.
package devbroker
