// Package console writes the beacon's operator console.
//
// The console is the human-readable trace a device prints on its serial
// line: the build banner, link progress dots, the local IP, the client ID,
// one dot per heartbeat and a dump of every inbound message. It is kept
// apart from the structured log because inbound payloads are echoed byte
// for byte.
//
// Output goes to the given writer (normally stdout) and, when
// console.serial_port is set, is mirrored to that serial device using
// github.com/tarm/serial.
package console
