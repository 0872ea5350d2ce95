package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"firewatch/events"
)

func newEventsCommand() *cobra.Command {
	var (
		dbPath string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent fire events from the SQLite store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return fmt.Errorf("--db is required")
			}
			store, err := events.NewSQLiteStore(dbPath, "")
			if err != nil {
				return err
			}
			defer store.Close()

			recent, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tPOSITION\tSIZE\tSOURCE")
			for _, ev := range recent {
				b := ev.Box
				fmt.Fprintf(w, "%s\t%s\t%d,%d\t%dx%d\t%s\n",
					ev.ID, ev.Timestamp.Format(time.DateTime), b.Min.X, b.Min.Y, b.Dx(), b.Dy(), ev.Source)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite event store path")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of events to show")
	return cmd
}
