package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/baseline-cli/internal/config"
)

var (
	cfg *config.Config

	configPath     string
	storeURL       string
	logLevel       string
	rateCardPath   string
	manualApproval bool
)

var rootCmd = &cobra.Command{
	Use:   "baseline-cli",
	Short: "Vendor transaction ledger with adaptive schema mapping",
	Long:  "Reads vendor interpreting spreadsheets, learns how their columns map to the canonical ledger, enforces data quality and reconciles against invoice totals.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadFile(configPath)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		applyRootFlags(cmd, c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&configPath, "config", "", "config file (default ./config.yaml)")
	f.StringVar(&storeURL, "db", "", "registry and run store location, overrides store.database_url")
	f.StringVar(&logLevel, "log-level", "", "log level, overrides log.level")
	f.StringVar(&rateCardPath, "rate-card", "", "contracted rate card CSV, overrides cost.rate_card_file")
	f.BoolVar(&manualApproval, "manual-approval", false, "queue mappings below the auto-approve bar for review")
}

// applyRootFlags copies explicitly set root flags over the loaded config.
func applyRootFlags(cmd *cobra.Command, c *config.Config) {
	changed := cmd.Flags().Changed
	if changed("db") {
		c.Store.DatabaseURL = storeURL
	}
	if changed("log-level") {
		c.Log.Level = logLevel
	}
	if changed("rate-card") {
		c.Cost.RateCardFile = rateCardPath
	}
	if changed("manual-approval") {
		c.Schema.RequireManualApproval = manualApproval
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
