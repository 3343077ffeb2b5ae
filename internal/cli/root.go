// Package cli implements splitcalc, an offline calculator for receipt files.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mmynk/tabsplit/pkg/logging"
)

func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:          "splitcalc",
		Short:        "Split a receipt between participants",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if logLevel == "" {
				logging.Setup()
				return
			}
			logging.SetupWithLevel(logging.ParseLevel(logLevel))
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")
	cmd.AddCommand(computeCmd(), validateCmd())
	return cmd
}
