package cmd

import (
	"github.com/spf13/cobra"
	"tia.dev/pkg/tia/internal/domain"
)

const instrumentLongDescription = `Instrument the selected modules and load their rewritten form. Rewritten
module documents are written under <output>/modules.

` + pathPatternsHelp

var instrumentDiffFlag bool

// instrumentCmd represents the instrument command.
var instrumentCmd = newInstrumentCmd()

func newInstrumentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instrument [paths...]",
		Short: "Instrument modules with coverage probes",
		Long:  instrumentLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.Instrument(cmd.Context(), domain.InstrumentArgs{
				ListArgs: listArgs(args),
				Diff:     instrumentDiffFlag,
			})
		},
	}

	cmd.Flags().BoolVar(&instrumentDiffFlag, diffFlagName, false, "print a unified diff of each rewritten module")

	return cmd
}

func init() {
	rootCmd.AddCommand(instrumentCmd)
}
