package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/netbeacon/internal/devbroker"
	"github.com/nerrad567/netbeacon/internal/infrastructure/config"
	"github.com/nerrad567/netbeacon/internal/infrastructure/logging"
)

func newBrokerCmd(load configLoader) *cobra.Command {
	var port int
	var quiet bool

	cmd := &cobra.Command{
		Use:   "broker",
		Short: "Run an embedded MQTT broker for bench testing",
		Long: `Broker starts an MQTT broker on localhost and prints every publish it
sees, so a beacon can be exercised without external infrastructure.

Anything typed on stdin as "topic payload" is published by the broker.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.DevBroker.Port = port
			}
			var in io.Reader
			if !quiet {
				in = cmd.InOrStdin()
			}
			return serveBroker(cmd.Context(), cfg, in, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 1883, "TCP port to listen on (0 picks a free port)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not read publishes from stdin")
	return cmd
}

// serveBroker runs the development broker until ctx is cancelled.
// Each line read from in is published as "topic payload".
func serveBroker(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	log := logging.New(cfg.Logging, version).With("component", "devbroker")

	b, err := devbroker.New(cfg.DevBroker, log.Logger)
	if err != nil {
		return fmt.Errorf("creating broker: %w", err)
	}

	b.Observe(func(m devbroker.Message) {
		fmt.Fprintf(out, "%s -> [%s] %s\n", m.ClientID, m.Topic, m.Payload) //nolint:errcheck // Trace output
	})

	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("starting broker: %w", err)
	}
	defer func() {
		if stopErr := b.Stop(); stopErr != nil {
			log.Error("error stopping broker", "error", stopErr)
		}
	}()
	fmt.Fprintf(out, "broker listening on %s\n", b.Addr()) //nolint:errcheck

	if in != nil {
		go publishLines(b, in, log)
	}

	<-ctx.Done()
	return nil
}

// publishLines publishes "topic payload" lines until in is exhausted.
func publishLines(b *devbroker.Broker, in io.Reader, log *logging.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		publishLine(b, strings.TrimSpace(scanner.Text()), log)
	}
	if err := scanner.Err(); err != nil {
		log.Warn("reading stdin", "error", err)
	}
}

func publishLine(b *devbroker.Broker, line string, log *logging.Logger) {
	topic, payload, _ := strings.Cut(line, " ")
	if topic == "" {
		return
	}
	if err := b.Publish(topic, []byte(payload), false, 0); err != nil {
		log.Warn("publish failed", "topic", topic, "error", err)
	}
}
