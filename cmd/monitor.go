package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/baseline-cli/internal/monitoring"
)

var (
	monitorWatch    bool
	monitorInterval time.Duration
	monitorJSON     bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Check mapping quality, approval backlog and run health",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		checker := env.Checker()
		if monitorWatch {
			checker.Run(ctx, monitorInterval)
			return nil
		}

		snap, alerts, err := checker.Check(ctx)
		if err != nil {
			return err
		}
		if monitorJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Snapshot *monitoring.Snapshot `json:"snapshot"`
				Alerts   []monitoring.Alert   `json:"alerts"`
			}{snap, alerts})
		}
		formatSnapshot(os.Stdout, snap, alerts)
		return nil
	},
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorWatch, "watch", false, "keep checking until interrupted")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 5*time.Minute, "check interval with --watch")
	monitorCmd.Flags().BoolVar(&monitorJSON, "json", false, "print the snapshot as JSON")
	rootCmd.AddCommand(monitorCmd)
}

func formatSnapshot(out io.Writer, snap *monitoring.Snapshot, alerts []monitoring.Alert) {
	fmt.Fprintf(out, "Lookback: %dh\n", snap.LookbackHours)
	fmt.Fprintf(out, "Pending approval: %d\n", snap.PendingDepth)
	fmt.Fprintf(out, "Corrections: %d\n", snap.Corrections)
	fmt.Fprintf(out, "Runs: %d (%d complete, %d failed)\n", snap.RunsTotal, snap.RunsComplete, snap.RunsFailed)
	if snap.Reconciliation != "" {
		fmt.Fprintf(out, "Last reconciliation: %s\n", snap.Reconciliation)
	}
	fmt.Fprintln(out)
	formatSuccessRates(out, snap.SuccessRates)

	if len(alerts) == 0 {
		fmt.Fprintln(out, "\nNo alerts.")
		return
	}
	fmt.Fprintf(out, "\n%d alerts:\n", len(alerts))
	for _, a := range alerts {
		fmt.Fprintf(out, "  [%s] %s\n", a.Severity, a.Message)
	}
}
