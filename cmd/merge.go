package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"tia.dev/pkg/tia/internal/domain"
	m "tia.dev/pkg/tia/internal/model"
)

// mergeCmd represents the merge command.
var mergeCmd = newMergeCmd()

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <files...>",
		Short: "Merge coverage files into the output directory",
		Long: `Merge coverage files into <output>/coverage.gob. The first file is the newest
generation; older files only contribute modules and lines the newer ones lack.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.Merge(cmd.Context(), domain.MergeArgs{
				Files:  parsePaths(args),
				Output: m.Path(viper.GetString(outputFlagName)),
			})
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
