package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmynk/tabsplit/internal/calculator"
	"github.com/mmynk/tabsplit/internal/money"
	"github.com/mmynk/tabsplit/internal/receiptfile"
)

func computeCmd() *cobra.Command {
	var asJSON bool

	c := &cobra.Command{
		Use:   "compute FILE",
		Short: "Print what each participant owes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := receiptfile.Load(args[0])
			if err != nil {
				return err
			}
			d, err := r.Draft()
			if err != nil {
				return err
			}

			result, err := d.Compute()
			if err != nil {
				return err
			}
			slog.Debug("Receipt computed", "file", args[0], "cache_key", d.CacheKey())

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			return printResult(out, r, result)
		},
	}

	c.Flags().BoolVar(&asJSON, "json", false, "print the full allocation as JSON")
	return c
}

func printResult(w io.Writer, r *receiptfile.Receipt, result *calculator.AllocationResult) error {
	if r.Name != "" {
		fmt.Fprintf(w, "%s\n\n", r.Name)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "PARTICIPANT\tOWES\t")
	for _, p := range result.Participants {
		name := p.Name
		if p.ParticipantID == r.PayerID {
			name += " (paid)"
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", name, money.FormatNumber(p.Amount, r.Currency))
	}
	fmt.Fprintf(tw, "TOTAL\t%s\t\n", money.FormatNumber(result.GrandTotal, r.Currency))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tMODE\tTOTAL\tSHARES")
	for _, it := range result.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.Name, it.Mode, money.FormatNumber(it.Total, r.Currency), formatShares(it, r.Currency))
	}
	return tw.Flush()
}

func formatShares(it calculator.ItemAllocation, c money.Currency) string {
	if len(it.Shares) == 0 {
		return "-"
	}
	s := ""
	for i, sh := range it.Shares {
		if i > 0 {
			s += ", "
		}
		if it.Mode == calculator.SplitCount {
			s += fmt.Sprintf("%s x%d %s", sh.ParticipantID, sh.Units, money.FormatNumber(sh.Amount, c))
		} else {
			s += fmt.Sprintf("%s %s", sh.ParticipantID, money.FormatNumber(sh.Amount, c))
		}
	}
	return s
}
