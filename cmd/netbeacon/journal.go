package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/nerrad567/netbeacon/internal/infrastructure/config"
	"github.com/nerrad567/netbeacon/internal/infrastructure/database"
	"github.com/nerrad567/netbeacon/internal/journal"
	"github.com/nerrad567/netbeacon/migrations"
)

// timeLayout is used for journal listings.
const timeLayout = "2006-01-02 15:04:05"

func newJournalCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the session and message journal",
	}

	var limit int
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "List recent broker sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJournal(cmd.Context(), load, func(ctx context.Context, j *journal.SQLiteJournal, _ *database.DB) error {
				list, err := j.Sessions(ctx, limit)
				if err != nil {
					return err
				}
				return printSessions(cmd.OutOrStdout(), list)
			})
		},
	}
	sessions.Flags().IntVarP(&limit, "limit", "n", 20, "number of sessions to show")

	var msgLimit int
	messages := &cobra.Command{
		Use:   "messages",
		Short: "List recent inbound messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJournal(cmd.Context(), load, func(ctx context.Context, j *journal.SQLiteJournal, _ *database.DB) error {
				list, err := j.RecentMessages(ctx, msgLimit)
				if err != nil {
					return err
				}
				return printMessages(cmd.OutOrStdout(), list)
			})
		},
	}
	messages.Flags().IntVarP(&msgLimit, "limit", "n", 20, "number of messages to show")

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete journal entries older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJournal(cmd.Context(), load, func(ctx context.Context, j *journal.SQLiteJournal, _ *database.DB) error {
				n, err := j.Prune(ctx, olderThan)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "pruned %d messages\n", n)
				return err
			})
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "retention period")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			return openAndRun(cmd.Context(), cfg.Database, false, func(ctx context.Context, _ *journal.SQLiteJournal, db *database.DB) error {
				applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "journal: %s\n", db.Path()) //nolint:errcheck
				for _, m := range applied {
					fmt.Fprintf(out, "  applied  %s\n", m.Version) //nolint:errcheck
				}
				for _, m := range pending {
					fmt.Fprintf(out, "  pending  %s_%s\n", m.Version, m.Name) //nolint:errcheck
				}
				return nil
			})
		},
	}

	cmd.AddCommand(sessions, messages, prune, status)
	return cmd
}

// withJournal opens and migrates the configured journal for the duration
// of fn. The journal must be enabled in config.
func withJournal(ctx context.Context, load configLoader, fn journalFunc) error {
	cfg, _, err := load()
	if err != nil {
		return err
	}
	return openAndRun(ctx, cfg.Database, true, fn)
}

type journalFunc func(context.Context, *journal.SQLiteJournal, *database.DB) error

// openAndRun opens the journal database, optionally migrates it, and calls fn.
func openAndRun(ctx context.Context, cfg config.DatabaseConfig, migrate bool, fn journalFunc) error {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer db.Close() //nolint:errcheck // Read-mostly command

	if migrate {
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}
	return fn(ctx, journal.NewSQLiteJournal(db.DB), db)
}

func printSessions(out io.Writer, sessions []journal.Session) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCLIENT\tBROKER\tCONNECTED\tATTEMPTS\tENDED") //nolint:errcheck
	for _, s := range sessions {
		ended := "-"
		if s.EndedAt != nil {
			ended = s.EndedAt.Local().Format(timeLayout)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", //nolint:errcheck
			s.ID, s.ClientID, s.Broker, s.ConnectedAt.Local().Format(timeLayout), s.Attempts, ended)
	}
	return w.Flush()
}

func printMessages(out io.Writer, messages []journal.Message) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RECEIVED\tTOPIC\tPAYLOAD") //nolint:errcheck
	for _, m := range messages {
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.ReceivedAt.Local().Format(timeLayout), m.Topic, displayPayload(m.Payload)) //nolint:errcheck
	}
	return w.Flush()
}

// displayPayload quotes payloads that are not printable UTF-8.
func displayPayload(p []byte) string {
	if utf8.Valid(p) && strconv.CanBackquote(string(p)) {
		return string(p)
	}
	return strconv.Quote(string(p))
}
