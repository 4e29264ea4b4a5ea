package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/baseline-cli/internal/ingest"
	"github.com/sells-group/baseline-cli/internal/pipeline"
)

var (
	runInput    string
	runOutput   string
	runOffline  bool
	runSchedule string
	runQuiet    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build the ledger from a directory of vendor spreadsheets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, runOffline)
		if err != nil {
			return err
		}
		defer env.Close()

		var report io.Writer = os.Stdout
		if runQuiet {
			report = io.Discard
		}

		if runSchedule == "" {
			_, err := runBatch(ctx, env, runInput, runOutput, report)
			return err
		}
		return runScheduled(ctx, runSchedule, func(ctx context.Context) {
			if _, err := runBatch(ctx, env, runInput, runOutput, report); err != nil {
				zap.L().Error("scheduled run failed", zap.Error(err))
			}
		})
	},
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "directory of vendor spreadsheets (required)")
	runCmd.Flags().StringVar(&runOutput, "output", "out", "directory for the ledger, audit and report")
	runCmd.Flags().BoolVar(&runOffline, "offline", false, "resolve mappings without the oracle")
	runCmd.Flags().StringVar(&runSchedule, "schedule", "", "cron expression to rerun on (e.g. \"0 6 * * 1\")")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "do not print the markdown report")
	_ = runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}

// runBatch processes every spreadsheet under input, writes the outputs and
// evaluates alerts against the updated registry.
func runBatch(ctx context.Context, env *pipelineEnv, input, output string, report io.Writer) (*pipeline.Result, error) {
	files, err := ingest.Discover(input)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, eris.Errorf("no spreadsheets found in %s", input)
	}
	zap.L().Info("run: files discovered", zap.Int("files", len(files)), zap.String("input", input))

	result, err := env.Pipeline.Run(ctx, files)
	if err != nil {
		return result, eris.Wrap(err, "pipeline run")
	}
	if ferr := result.Err(); ferr != nil {
		zap.L().Warn("run: some files could not be read", zap.Error(ferr))
	}

	written, err := pipeline.WriteOutputs(output, result)
	if err != nil {
		return result, err
	}

	summary := result.Summary()
	zap.L().Info("run complete",
		zap.String("run_id", result.RunID),
		zap.Int("records", summary.RecordsOut),
		zap.Int("quarantined", summary.Quarantined),
		zap.Float64("calculated_total", summary.CalculatedTotal),
		zap.String("reconciliation", string(summary.Reconciliation)),
		zap.Strings("outputs", written),
	)

	if _, alerts, err := env.Checker().Check(ctx); err != nil {
		zap.L().Warn("run: alert check failed", zap.Error(err))
	} else if len(alerts) > 0 {
		zap.L().Warn("run: alerts raised", zap.Int("alerts", len(alerts)))
	}

	_, _ = fmt.Fprint(report, pipeline.FormatReport(result))
	return result, nil
}

// runScheduled calls job on every tick of spec until ctx is cancelled.
// Overlapping ticks are skipped while a run is in progress.
func runScheduled(ctx context.Context, spec string, job func(context.Context)) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	id, err := c.AddFunc(spec, func() { job(ctx) })
	if err != nil {
		return eris.Wrapf(err, "parse schedule %q", spec)
	}

	c.Start()
	zap.L().Info("run: scheduler started",
		zap.String("schedule", spec),
		zap.Time("next", c.Entry(id).Next),
	)

	<-ctx.Done()
	<-c.Stop().Done()
	zap.L().Info("run: scheduler stopped")
	return nil
}
