package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmynk/tabsplit/internal/receiptfile"
	"github.com/mmynk/tabsplit/internal/session"
)

func validateCmd() *cobra.Command {
	var allowPartial bool

	c := &cobra.Command{
		Use:   "validate FILE",
		Short: "Check that a receipt is ready to finalize",
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

			policy := session.DefaultPolicy()
			policy.RequireFullClaims = !allowPartial
			valid, err := d.Validate(policy)
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "OK %s\n", valid.Digest())
				return nil
			}
			issues := session.Issues(err)
			if len(issues) == 0 {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ITEM\tPARTICIPANT\tKIND\tPROBLEM")
			for _, is := range issues {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", dash(is.ItemID), dash(is.ParticipantID), is.Kind(), is.Err)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			return fmt.Errorf("%d issue(s) found", len(issues))
		},
	}

	c.Flags().BoolVar(&allowPartial, "allow-partial", false, "accept count splits with unclaimed units")
	return c
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
