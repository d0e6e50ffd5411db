package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"tia.dev/pkg/tia/internal/domain"
	m "tia.dev/pkg/tia/internal/model"
)

const checkLongDescription = `Verify the recorded coverage against minimum percentages.

Each threshold lists line, segment, path and data minimums:
  - "80,70,50,60"                 totals over all modules
  - "perFile:50,40,0,0"           every module on its own
  - "internal/coverage:90,80,0,0" modules under a prefix

A failing check creates coverage.check.failed in the output directory and
exits non-zero; a passing check removes it.`

var thresholdFlags []string

// checkCmd represents the check command.
var checkCmd = newCheckCmd()

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check coverage against minimum percentages",
		Long:  checkLongDescription,
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return workflow.Check(cmd.Context(), domain.CheckArgs{
				Output:     m.Path(viper.GetString(outputFlagName)),
				Thresholds: viper.GetStringSlice(thresholdsConfigKey),
			})
		},
	}

	cmd.Flags().StringArrayVarP(&thresholdFlags, thresholdFlagName, "t", viper.GetStringSlice(thresholdsConfigKey), "minimum percentages (can be repeated)")
	bindFlagToConfig(cmd.Flags().Lookup(thresholdFlagName), thresholdsConfigKey)

	return cmd
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
