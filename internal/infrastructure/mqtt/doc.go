// Package mqtt provides the broker session used by the beacon.
//
// This package manages:
//   - A single connect-on-demand session to the broker (no auto-reconnect)
//   - Broker status codes for reconnect diagnostics
//   - Publishing and per-session subscriptions
//   - Queued inbound messages dispatched on the caller's goroutine
//   - Last Will and Testament (LWT) for offline detection
//
// # Why connect-on-demand
//
// The monitor loop decides when to reconnect and must know that a new
// session started, because every session gets an announcement and a fresh
// subscribe. paho's own reconnect would restore the socket behind the
// loop's back, so it is switched off.
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT, identity.String())
//	client.SetMessageHandler(console.MessageArrived)
//	if err := client.Connect(ctx); err != nil {
//	    log.Printf("failed, rc=%d", client.State())
//	}
//	client.Subscribe("inTopic", 0)
//	client.Service() // dispatch queued messages
package mqtt
