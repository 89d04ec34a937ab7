// Package monitor runs the beacon's connectivity monitor loop.
//
// Setup runs once: it joins the network link, starts the time client,
// builds the device identity and creates the broker session. Step runs one
// iteration of the loop:
//
//  1. Reconnect to the broker if the session is down, announcing on
//     every successful connect and marking the inbound subscription pending.
//  2. Subscribe to the inbound topic if the subscription is pending.
//  3. Service the broker, dispatching queued inbound messages to the
//     console on the calling goroutine.
//  4. Publish the heartbeat (local time, then IP address) when more than
//     the heartbeat interval has passed since the last one.
//
// Run repeats Step until its context is cancelled.
//
// # State machine
//
//	Disconnected --connect--> SubscribePending --subscribe--> Subscribed
//	     ^                                                        |
//	     +-------------------- connection lost -------------------+
//
// All state is held by the Monitor; there are no package globals. Every
// collaborator is an interface in Deps so the loop can be driven with fakes.
//
// A link that does not come up within network.join_timeout is fatal:
// Setup returns ErrLinkTimeout and the process exits with ExitLinkTimeout
// so its supervisor restarts it.
package monitor
