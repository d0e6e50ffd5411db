package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"tia.dev/pkg/tia/internal/coverage"
	"tia.dev/pkg/tia/internal/domain"
	m "tia.dev/pkg/tia/internal/model"
)

const replayLongDescription = `Replay the tests of a trace file through the instrumented modules.

Tests whose modules did not change since they last passed are skipped. The
coverage is merged with the previous run and saved with the test impact
records in the output directory.

` + pathPatternsHelp

var callPointsFlag string
var maxCallPointsFlag int

// replayCmd represents the replay command.
var replayCmd = newReplayCmd()

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <trace.yaml> [paths...]",
		Short: "Replay recorded tests under coverage",
		Long:  replayLongDescription,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := coverage.ParseCallPointMode(viper.GetString(callPointsConfigKey))
			if err != nil {
				return err
			}

			return workflow.Replay(cmd.Context(), domain.ReplayArgs{
				ListArgs:      listArgs(args[1:]),
				Trace:         m.Path(args[0]),
				NoCache:       viper.GetBool(noCacheFlagName),
				CallPoints:    mode,
				MaxCallPoints: viper.GetInt(maxCallPointsConfigKey),
			})
		},
	}

	configureReplayFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func configureReplayFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&callPointsFlag, callPointsFlagName, viper.GetString(callPointsConfigKey), "call points recorded per line and segment: off, first or all")
	bindFlagToConfig(cmd.Flags().Lookup(callPointsFlagName), callPointsConfigKey)

	cmd.Flags().IntVar(&maxCallPointsFlag, maxCallPointsFlagName, viper.GetInt(maxCallPointsConfigKey), "call points kept per line and segment in 'all' mode")
	bindFlagToConfig(cmd.Flags().Lookup(maxCallPointsFlagName), maxCallPointsConfigKey)
}
