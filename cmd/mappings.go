package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/baseline-cli/internal/model"
)

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Review, approve and correct learned column mappings",
}

// -- mappings list --

var mappingsListApproved bool

var mappingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mappings awaiting approval",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if mappingsListApproved {
			entries, err := env.Registry.Entries(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(os.Stderr, "No approved mappings.")
				return nil
			}
			formatEntries(os.Stdout, entries)
			return nil
		}

		pending, err := env.Registry.ListPending(ctx)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Fprintln(os.Stderr, "No mappings pending approval.")
			return nil
		}
		formatPending(os.Stdout, pending)
		return nil
	},
}

// -- mappings show --

var mappingsShowCmd = &cobra.Command{
	Use:   "show <pending-id>",
	Short: "Show a pending mapping in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		p, err := env.Registry.GetPending(ctx, args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

// -- mappings approve --

var mappingsApproveCmd = &cobra.Command{
	Use:   "approve <pending-id>",
	Short: "Approve a pending mapping as proposed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		entry, err := env.Registry.Approve(ctx, args[0], nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Approved %s mapping: %s\n", entry.Vendor, describeMapping(entry.Mapping))
		return nil
	},
}

// -- mappings correct --

var mappingsCorrectSet []string

var mappingsCorrectCmd = &cobra.Command{
	Use:   "correct <pending-id>",
	Short: "Correct a pending mapping and approve it",
	Long:  "Reassigns fields with --set field=column (an empty column unmaps the field). The edit is recorded as a correction and the vendor's preferences are learned from it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		p, err := env.Registry.GetPending(ctx, args[0])
		if err != nil {
			return err
		}
		edited, err := applyAssignments(p.Mapping, mappingsCorrectSet)
		if err != nil {
			return err
		}
		if err := edited.Validate(p.Columns); err != nil {
			return eris.Wrap(err, "mappings correct")
		}

		entry, err := env.Registry.Approve(ctx, p.ID, &edited)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Corrected %s mapping: %s\n", entry.Vendor, describeMapping(entry.Mapping))
		return nil
	},
}

// -- mappings reject --

var mappingsRejectCmd = &cobra.Command{
	Use:   "reject <pending-id>",
	Short: "Drop a pending mapping without approving it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Registry.RemovePending(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "Pending mapping removed.")
		return nil
	},
}

// -- mappings approve-all / auto-approve --

var mappingsApproveAllCmd = &cobra.Command{
	Use:   "approve-all",
	Short: "Approve every pending mapping as proposed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Registry.ApproveAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Approved %d mappings.\n", n)
		return nil
	},
}

var mappingsAutoApproveCmd = &cobra.Command{
	Use:   "auto-approve",
	Short: "Approve pending mappings that clear the auto-approve confidence bar",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Registry.AutoApprovePending(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Auto-approved %d mappings.\n", n)
		return nil
	},
}

// -- mappings stats / history --

var mappingsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how often mappings from each source were corrected",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rates, err := env.Registry.SuccessRates(ctx)
		if err != nil {
			return err
		}
		pending, err := env.Registry.ListPending(ctx)
		if err != nil {
			return err
		}
		formatSuccessRates(os.Stdout, rates)
		fmt.Fprintf(os.Stdout, "\nPending approval: %d\n", len(pending))
		return nil
	},
}

var (
	historyVendor string
	historyLimit  int
)

var mappingsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded corrections, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		history, err := env.Registry.CorrectionHistory(ctx, historyVendor, historyLimit)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			fmt.Fprintln(os.Stderr, "No corrections recorded.")
			return nil
		}
		formatHistory(os.Stdout, history)
		return nil
	},
}

// -- mappings import / export --

var mappingsImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Load approved mappings from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Registry.Import(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Imported %d mappings.\n", n)
		return nil
	},
}

var mappingsExportCmd = &cobra.Command{
	Use:   "export <file.json>",
	Short: "Write approved mappings to a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Registry.Export(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Exported %d mappings.\n", n)
		return nil
	},
}

func init() {
	mappingsListCmd.Flags().BoolVar(&mappingsListApproved, "approved", false, "list approved registry entries instead of the pending queue")
	mappingsCorrectCmd.Flags().StringArrayVar(&mappingsCorrectSet, "set", nil, "field=column assignment (repeatable)")
	_ = mappingsCorrectCmd.MarkFlagRequired("set")
	mappingsHistoryCmd.Flags().StringVar(&historyVendor, "vendor", "", "only corrections for this vendor")
	mappingsHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "max number of corrections to show")

	mappingsCmd.AddCommand(
		mappingsListCmd,
		mappingsShowCmd,
		mappingsApproveCmd,
		mappingsCorrectCmd,
		mappingsRejectCmd,
		mappingsApproveAllCmd,
		mappingsAutoApproveCmd,
		mappingsStatsCmd,
		mappingsHistoryCmd,
		mappingsImportCmd,
		mappingsExportCmd,
	)
	rootCmd.AddCommand(mappingsCmd)
}

// applyAssignments returns base with each "field=column" assignment applied.
// Every assigned field is cleared first so columns can be swapped between
// fields in one call.
func applyAssignments(base model.FieldMapping, sets []string) (model.FieldMapping, error) {
	type assignment struct {
		field  model.CanonicalField
		column string
	}
	parsed := make([]assignment, 0, len(sets))
	for _, s := range sets {
		name, column, ok := strings.Cut(s, "=")
		if !ok {
			return base, eris.Errorf("invalid assignment %q, want field=column", s)
		}
		f, err := model.ParseField(name)
		if err != nil {
			return base, err
		}
		parsed = append(parsed, assignment{field: f, column: strings.TrimSpace(column)})
	}

	out := base
	for _, a := range parsed {
		out.Clear(a.field)
	}
	for _, a := range parsed {
		if a.column == "" {
			continue
		}
		if !out.Set(a.field, a.column) {
			return base, eris.Errorf("column %q is already assigned to another field", a.column)
		}
	}
	return out, nil
}

// describeMapping renders a mapping as "field=column" pairs in field order.
func describeMapping(m model.FieldMapping) string {
	fields := m.Fields()
	if len(fields) == 0 {
		return "(empty)"
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s=%s", f, m.Get(f)))
	}
	return strings.Join(parts, ", ")
}

func pct(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 0, 64) + "%"
}

func formatPending(out io.Writer, pending []model.PendingEntry) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Vendor", "Source", "Field", "Data", "Mapping", "Queued"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, p := range pending {
		table.Append([]string{
			truncateID(p.ID),
			p.Vendor,
			string(p.Source),
			pct(p.FieldConfidence),
			pct(p.DataConfidence),
			describeMapping(p.Mapping),
			humanize.Time(p.CreatedAt),
		})
	}
	table.Render()
}

func formatEntries(out io.Writer, entries []model.RegistryEntry) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Vendor", "Signature", "Source", "Field", "Data", "Mapping", "Updated"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, e := range entries {
		table.Append([]string{
			e.Vendor,
			truncateID(e.Signature),
			string(e.Source),
			pct(e.FieldConfidence),
			pct(e.DataConfidence),
			describeMapping(e.Mapping),
			humanize.Time(e.UpdatedAt),
		})
	}
	table.Render()
}

func formatSuccessRates(out io.Writer, rates map[model.MappingSource]model.SourceStats) {
	sources := make([]string, 0, len(rates))
	for s := range rates {
		sources = append(sources, string(s))
	}
	sort.Strings(sources)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Source", "Mappings", "Corrected", "Success"})
	table.SetBorder(false)
	for _, s := range sources {
		st := rates[model.MappingSource(s)]
		table.Append([]string{
			s,
			humanize.Comma(int64(st.Total)),
			humanize.Comma(int64(st.Corrected)),
			fmt.Sprintf("%.1f%%", st.SuccessRate()*100),
		})
	}
	table.Render()
}

func formatHistory(out io.Writer, history []model.CorrectionEntry) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"When", "Vendor", "Source", "Changes"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, c := range history {
		changes := make([]string, 0, len(c.Diffs))
		for _, d := range c.Diffs {
			from, to := d.From, d.To
			if from == "" {
				from = "-"
			}
			if to == "" {
				to = "-"
			}
			changes = append(changes, fmt.Sprintf("%s: %s -> %s", d.Field, from, to))
		}
		table.Append([]string{
			c.Timestamp.Format("2006-01-02 15:04"),
			c.Vendor,
			string(c.Source),
			strings.Join(changes, "; "),
		})
	}
	table.Render()
}
