// Package link brings up the network link the beacon reports over.
//
// A Link is joined once at startup and then polled until it reports
// StatusConnected or the join timeout passes. Await implements that poll.
// There is no degraded mode: a link that never comes up is fatal and the
// process is restarted by its supervisor.
//
// Host is the Link for a Linux or macOS host. It reads interface state from
// the kernel and can optionally run a join command (nmcli, wpa_cli, iwctl)
// to associate with a wireless network:
//
//	network:
//	  interface: "wlan0"
//	  ssid: "lab"
//	  join_command: ["nmcli", "device", "wifi", "connect", "{ssid}", "password", "{password}", "ifname", "{interface}"]
//	  join_timeout: 10s
//	  poll_interval: 500ms
package link
