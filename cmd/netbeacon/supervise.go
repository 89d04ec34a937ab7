package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/netbeacon/internal/infrastructure/config"
	"github.com/nerrad567/netbeacon/internal/infrastructure/logging"
	"github.com/nerrad567/netbeacon/internal/monitor"
	"github.com/nerrad567/netbeacon/internal/process"
)

func newSuperviseCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "supervise",
		Short: "Run the beacon and restart it whenever it exits with an error",
		Long: `Supervise starts "netbeacon run" as a child process with the same
configuration and restarts it after supervisor.restart_delay whenever it
exits with a non-zero status, such as a link that never came up.

The child's console output passes straight through.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := load()
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("locating executable: %w", err)
			}
			return supervise(cmd.Context(), cfg, exe, path, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// supervise runs exe as "run" under a process.Manager until ctx is
// cancelled or the restart limit is reached.
func supervise(ctx context.Context, cfg *config.Config, exe, configPath string, stdout, stderr io.Writer) error {
	log := logging.New(cfg.Logging, version).With("component", "supervisor")

	pcfg := process.FromConfig(cfg.Supervisor, exe, []string{"run", "--config", configPath})
	pcfg.Stdout = stdout
	pcfg.Stderr = stderr
	pcfg.OnExit = func(code int, _ error) {
		if code == monitor.ExitLinkTimeout {
			log.Warn("beacon could not join the network, restarting")
		}
	}

	sup := process.NewManager(pcfg)
	sup.SetLogger(log)

	if err := sup.Start(ctx); err != nil {
		return fmt.Errorf("starting beacon: %w", err)
	}
	<-sup.Done()

	stats := sup.Stats()
	log.Info("supervisor stopped",
		"status", stats.Status,
		"restarts", stats.RestartCount,
		"last_exit_code", stats.LastExitCode,
	)

	if stats.Status == process.StatusFailed {
		return fmt.Errorf("beacon gave up after %d restarts: %w", stats.RestartCount, sup.LastError())
	}
	return nil
}
