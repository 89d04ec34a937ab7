package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/netbeacon/internal/infrastructure/config"
)

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "netbeacon",
		Short: "netbeacon publishes a connectivity heartbeat over MQTT",
		Long: `netbeacon joins a network link, keeps a session open with an MQTT broker
and publishes the local time and its IP address once a second.

Configuration is read from --config, then $NETBEACON_CONFIG, then
configs/config.yaml. NETBEACON_* environment variables override file values.`,
		SilenceUsage:  true,
		SilenceErrors: true, // main prints the error and picks the exit code
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")

	load := func() (*config.Config, string, error) {
		path := getConfigPath(configPath)
		cfg, err := config.Load(path)
		if err != nil {
			return nil, path, fmt.Errorf("loading config: %w", err)
		}
		return cfg, path, nil
	}

	root.AddCommand(
		newRunCmd(load),
		newSuperviseCmd(load),
		newBrokerCmd(load),
		newJournalCmd(load),
		newVersionCmd(),
	)
	return root
}

// configLoader loads the configuration selected by the global flags and
// returns it with the path it came from.
type configLoader func() (*config.Config, string, error)

// getConfigPath returns the configuration file path.
// The flag wins over NETBEACON_CONFIG, which wins over the default.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("NETBEACON_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
