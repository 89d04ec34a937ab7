package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/netbeacon/internal/infrastructure/config"
	"github.com/nerrad567/netbeacon/internal/infrastructure/console"
	"github.com/nerrad567/netbeacon/internal/infrastructure/database"
	"github.com/nerrad567/netbeacon/internal/infrastructure/influxdb"
	"github.com/nerrad567/netbeacon/internal/infrastructure/logging"
	"github.com/nerrad567/netbeacon/internal/infrastructure/mqtt"
	"github.com/nerrad567/netbeacon/internal/journal"
	"github.com/nerrad567/netbeacon/internal/link"
	"github.com/nerrad567/netbeacon/internal/monitor"
	"github.com/nerrad567/netbeacon/internal/retry"
	"github.com/nerrad567/netbeacon/internal/timesync"
	"github.com/nerrad567/netbeacon/migrations"
)

func newRunCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the beacon",
		Long: `Run joins the network link, connects to the broker and publishes the
heartbeat until interrupted.

If the link does not come up within network.join_timeout the command exits
with status 3; "netbeacon supervise" restarts it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := load()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, path, cmd.OutOrStdout())
		},
	}
}

// run wires the beacon's collaborators and drives the monitor loop.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - cfg: Loaded configuration
//   - configPath: Where cfg came from, for the log
//   - out: Console output
//
// Returns:
//   - error: nil on clean shutdown, wraps monitor.ErrLinkTimeout if the
//     link never came up
func run(ctx context.Context, cfg *config.Config, configPath string, out io.Writer) error {
	log := logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath)

	con, err := console.Open(cfg.Console, out)
	if err != nil {
		return fmt.Errorf("opening console: %w", err)
	}
	defer func() {
		if closeErr := con.Close(); closeErr != nil {
			log.Error("error closing serial console", "error", closeErr)
		}
	}()

	host := link.NewHost(cfg.Network)
	host.SetLogger(log.With("component", "link"))

	deps := monitor.Deps{
		Link:      host,
		Clock:     timesync.New(cfg.NTP),
		NewBroker: brokerFactory(cfg.MQTT, log),
		Console:   con,
		Retry:     retry.New(cfg.MQTT.Reconnect),
		Logger:    log.With("component", "monitor"),
		Build:     monitor.BuildInfo{Version: version, Commit: commit, Date: date},
	}

	// Open journal (optional)
	db, err := openJournal(ctx, cfg.Database, log)
	switch {
	case errors.Is(err, database.ErrDisabled):
		log.Info("journal disabled")
	case err != nil:
		return err
	default:
		defer func() {
			log.Info("closing journal")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing journal", "error", closeErr)
			}
		}()
		deps.Journal = journal.NewSQLiteJournal(db.DB)
	}

	// Connect to InfluxDB (optional)
	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		// Metrics are best effort: the beacon runs without them.
		log.Warn("InfluxDB unavailable, continuing without metrics", "url", cfg.InfluxDB.URL, "error", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		deps.Metrics = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	m := monitor.New(cfg, deps)
	if err := m.Setup(ctx); err != nil {
		return err
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := m.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, entering monitor loop", "client_id", m.Identity().ID())

	if err := m.Run(ctx); err != nil {
		return fmt.Errorf("monitor loop: %w", err)
	}

	log.Info("netbeacon stopped")
	return nil
}

// brokerFactory returns a monitor.BrokerFactory building paho-backed clients.
func brokerFactory(cfg config.MQTTConfig, log *logging.Logger) monitor.BrokerFactory {
	return func(clientID string) monitor.Broker {
		client := mqtt.New(cfg, clientID)
		client.SetLogger(log)
		client.SetOnDisconnect(func(err error) {
			log.Warn("MQTT connection lost", "error", err)
		})
		return client
	}
}

// openJournal opens the SQLite journal, applies migrations and prunes
// entries older than the retention period.
func openJournal(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		if errors.Is(err, database.ErrDisabled) {
			return nil, err
		}
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("journal opened", "path", db.Path())

	if cfg.Retention > 0 {
		pruned, err := journal.NewSQLiteJournal(db.DB).Prune(ctx, cfg.Retention)
		if err != nil {
			log.Warn("journal prune failed", "error", err)
		} else if pruned > 0 {
			log.Info("journal pruned", "messages", pruned, "retention", cfg.Retention)
		}
	}

	return db, nil
}
