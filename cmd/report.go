package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"tia.dev/pkg/tia/internal/domain"
	m "tia.dev/pkg/tia/internal/model"
)

// reportCmd represents the report command.
var reportCmd = newReportCmd()

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the recorded coverage",
		Long:  "Show line, segment, path and data coverage per module from the coverage file in the output directory.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return workflow.Report(cmd.Context(), domain.ReportArgs{Output: m.Path(viper.GetString(outputFlagName))})
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
