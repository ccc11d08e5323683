package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"lanwatch/internal/store"
)

var eventsLimit int

// eventsCmd represents the events command.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent presence events from the event store",
	Long: `Show recent device arrivals and departures recorded in the sqlite
event store. Requires database.path to be configured.`,
	Example: `  lanwatch events
  lanwatch events --limit 100`,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "maximum number of events to show")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.StoreEnabled() {
		return fmt.Errorf("event history disabled, configure database.path")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := store.Open(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	events, err := st.RecentEvents(ctx, eventsLimit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("no events recorded")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Time", "Device", "Event", "MAC", "Hostname")
	for _, ev := range events {
		name := ev.DisplayName
		if name == "" {
			name = ev.MAC
		}
		_ = table.Append([]string{
			ev.OccurredAt.Local().Format("2006-01-02 15:04:05"),
			name,
			ev.Kind,
			ev.MAC,
			ev.Hostname,
		})
	}
	_ = table.Render()
	return nil
}
