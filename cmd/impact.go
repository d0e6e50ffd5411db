package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"tia.dev/pkg/tia/internal/domain"
	m "tia.dev/pkg/tia/internal/model"
)

var impactRebuildFlag bool

// impactCmd represents the impact command.
var impactCmd = newImpactCmd()

func newImpactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "impact [tests...]",
		Short: "Show which tests would run",
		Long: `Show, for each test with a record (or the named tests), whether it would run
and why. Tests are named <test file>#<test function>.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.Impact(cmd.Context(), domain.ImpactArgs{
				Output:  m.Path(viper.GetString(outputFlagName)),
				Tests:   args,
				Rebuild: impactRebuildFlag,
			})
		},
	}

	cmd.Flags().BoolVar(&impactRebuildFlag, rebuildFlagName, false, "rebuild the records from the call points of the coverage file")

	return cmd
}

func init() {
	rootCmd.AddCommand(impactCmd)
}
