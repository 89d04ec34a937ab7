// netbeacon - network connectivity beacon
//
// netbeacon joins a network link, connects to an MQTT broker and then, once
// a second, publishes the local time and its IP address under a topic named
// after the device. Anything received on the inbound topic is echoed to the
// console verbatim.
//
// Commands:
//   - run: the beacon itself
//   - supervise: runs the beacon as a child and restarts it after a failure
//   - broker: an embedded MQTT broker for bench testing
//   - journal: inspects the session and message journal
//   - version: prints build information
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/netbeacon/internal/monitor"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123 -X main.date=2025-04-01"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date, shown in the console banner
)

// defaultConfigPath is used when neither --config nor NETBEACON_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on Ctrl+C and SIGTERM for a graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	cancel()
	os.Exit(exitCode(err))
}

// exitCode maps a command error to the process exit status.
// A link timeout gets its own code so a supervisor can tell it apart.
func exitCode(err error) int {
	if errors.Is(err, monitor.ErrLinkTimeout) {
		return monitor.ExitLinkTimeout
	}
	return 1
}
