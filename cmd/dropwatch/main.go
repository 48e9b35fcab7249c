// Command dropwatch runs the odds-pattern prediction pipeline: the
// clock-driven scheduler by default, or any single job as a one-shot
// invocation, following the teacher's cobra-rooted CLI layout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ecarrasco/dropwatch/internal/models"
	"github.com/ecarrasco/dropwatch/internal/supervisor"
)

var (
	envFile string
	app     *supervisor.App
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(models.KindCancelled.ExitCode())
		}
		os.Exit(models.AsKinded(err).ExitCode())
	}
}

var rootCmd = &cobra.Command{
	Use:   "dropwatch",
	Short: "Odds-pattern prediction pipeline",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		app, err = supervisor.Boot(context.Background(), envFile)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file to preload before reading the environment")

	rootCmd.AddCommand(
		startCmd,
		discoveryCmd,
		preStartCmd,
		midnightCmd,
		resultsCmd,
		resultsAllCmd,
		finalOddsAllCmd,
		alertsCmd,
		refreshAlertsCmd,
		statusCmd,
		eventsCmd,
	)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, the
// cancellation token one-shot job invocations run under per §5.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the scheduler until terminated",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Run(context.Background())
	},
}

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Run the discovery job once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return app.Scheduler.Discovery(ctx)
	},
}

var preStartCmd = &cobra.Command{
	Use:   "pre-start",
	Short: "Run the pre-start sweep once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return app.Scheduler.PreStart(ctx)
	},
}

var midnightCmd = &cobra.Command{
	Use:   "midnight",
	Short: "Run the midnight result sweep once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return app.Scheduler.Midnight(ctx)
	},
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Run the 24h result sweep once, outside the midnight schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return app.Scheduler.Results(ctx)
	},
}

var resultsAllCmd = &cobra.Command{
	Use:   "results-all",
	Short: "Backfill results for every event lacking one",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return app.Scheduler.ResultsAll(ctx)
	},
}

var finalOddsAllCmd = &cobra.Command{
	Use:   "final-odds-all",
	Short: "Backfill final odds for every started event missing them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return app.Scheduler.FinalOddsAll(ctx)
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Run the matcher over events in the pre-start window without notifying (dry run)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		verdicts, err := app.Scheduler.AlertsDryRun(ctx)
		if err != nil {
			return err
		}
		for _, v := range verdicts {
			fmt.Printf("event %d: %s vs %s — status=%s tier=%s/%s confidence=%d\n",
				v.EventID, v.Home, v.Away, v.Status, v.VariationTier, v.ResultTier, v.Confidence)
		}
		return nil
	},
}

var refreshAlertsCmd = &cobra.Command{
	Use:   "refresh-alerts",
	Short: "Force a refresh of the alert-eligible materialized view",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return app.Scheduler.RefreshAlerts(ctx)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print scheduler state and the next scheduled tick per job",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, st := range app.Scheduler.Status() {
			fmt.Printf("%-16s next=%s\n", st.Job, st.NextRun.Format("2006-01-02T15:04:05Z07:00"))
		}
		return nil
	},
}

var eventsLimit int

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print the N most recent events",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		events, err := app.Events.ListRecent(ctx, eventsLimit)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		for _, e := range events {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 20, "Number of recent events to print")
}
