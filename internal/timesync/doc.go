// Package timesync keeps a network-corrected clock for heartbeat payloads.
//
// The client queries an NTP server (github.com/beevik/ntp) and remembers the
// offset between the local clock and server time. A sync stays fresh for
// the configured update interval; Update re-queries once it has expired and
// ForceUpdate queries unconditionally. FormattedTime renders the corrected
// time as HH:MM:SS in a fixed UTC offset.
//
// Until the first successful sync the local clock is used uncorrected.
package timesync
