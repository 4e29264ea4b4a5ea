package main

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/baseline-cli/internal/cost"
)

var rateCardFile string

var ratecardCmd = &cobra.Command{
	Use:   "ratecard",
	Short: "Inspect the contracted rate card",
}

var ratecardShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the rate card",
	RunE: func(cmd *cobra.Command, _ []string) error {
		card, err := loadRateCard()
		if err != nil {
			return err
		}
		formatRateCard(os.Stdout, card)
		return nil
	},
}

var ratecardNormalizeCmd = &cobra.Command{
	Use:   "normalize <out.csv>",
	Short: "Rewrite the rate card sorted and deduplicated",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		card, err := loadRateCard()
		if err != nil {
			return err
		}
		if err := cost.WriteRateCard(args[0], card); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote %d rates to %s\n", card.Len(), args[0])
		return nil
	},
}

func init() {
	ratecardCmd.PersistentFlags().StringVar(&rateCardFile, "file", "", "rate card CSV (default cost.rate_card_file)")
	ratecardCmd.AddCommand(ratecardShowCmd, ratecardNormalizeCmd)
	rootCmd.AddCommand(ratecardCmd)
}

func loadRateCard() (*cost.RateCard, error) {
	path := rateCardFile
	if path == "" {
		path = cfg.Cost.RateCardFile
	}
	if path == "" {
		return nil, eris.New("no rate card configured (--file or BASELINE_COST_RATE_CARD_FILE)")
	}
	return cost.LoadRateCard(path)
}

func formatRateCard(out io.Writer, card *cost.RateCard) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Vendor", "Modality", "Language", "Per Minute"})
	table.SetBorder(false)
	for _, r := range card.Rates() {
		table.Append([]string{r.Vendor, r.Modality, r.Language, fmt.Sprintf("$%.2f", r.PerMinute)})
	}
	table.Render()
}
